package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"go.datawiz.dev/etl/config"
)

// s3Store serves one tenant bucket over the S3 wire protocol. MinIO and the
// GCS interoperability endpoint go through the same client with a custom
// base endpoint and path-style addressing.
type s3Store struct {
	client *s3.Client
	bucket string
}

func newS3Store(ctx context.Context, tenant *config.TenantContext, endpoint string) (*s3Store, error) {
	storage := tenant.Doc.Storage

	region := storage.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	accessKey := tenant.Env("AWS_ACCESS_KEY_ID")
	if accessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				accessKey, tenant.Env("AWS_SECRET_ACCESS_KEY"), "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Store{
		client: client,
		bucket: storage.Container,
	}, nil
}

func (s *s3Store) List(ctx context.Context, prefix string) ([]Descriptor, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var out []Descriptor

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrList, classifyS3(err))
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			size := int64(-1)
			if obj.Size != nil {
				size = *obj.Size
			}

			out = append(out, Descriptor{Name: *obj.Key, Size: size})
		}
	}

	return out, nil
}

func (s *s3Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDownload, name, classifyS3(err))
	}

	return resp.Body, nil
}

// classifyS3 maps API error codes onto package sentinels.
func classifyS3(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	default:
		return err
	}
}
