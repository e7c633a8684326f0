package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"go.datawiz.dev/etl/config"
)

// azureStore serves one tenant container through the Azure Blob service.
type azureStore struct {
	client    *azblob.Client
	container string
}

// newAzureStore builds a client from the tenant's credential env. It accepts,
// in order of preference, a full connection string, an account shared key, or
// a SAS token.
func newAzureStore(tenant *config.TenantContext) (*azureStore, error) {
	storage := tenant.Doc.Storage

	suffix := storage.Suffix
	if suffix == "" {
		suffix = "core.windows.net"
	}

	serviceURL := fmt.Sprintf("https://%s.blob.%s", storage.Account, suffix)

	var (
		client *azblob.Client
		err    error
	)

	switch {
	case tenant.Env("AZURE_STORAGE_CONNECTION_STRING") != "":
		client, err = azblob.NewClientFromConnectionString(
			tenant.Env("AZURE_STORAGE_CONNECTION_STRING"), nil)
	case tenant.Env("AZURE_STORAGE_ACCOUNT_KEY") != "":
		var cred *azblob.SharedKeyCredential

		cred, err = azblob.NewSharedKeyCredential(
			storage.Account, tenant.Env("AZURE_STORAGE_ACCOUNT_KEY"))
		if err == nil {
			client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		}
	case tenant.Env("AZURE_STORAGE_SAS_TOKEN") != "":
		client, err = azblob.NewClientWithNoCredential(
			serviceURL+"?"+tenant.Env("AZURE_STORAGE_SAS_TOKEN"), nil)
	default:
		return nil, fmt.Errorf("%w: tenant %s has no azure credential", ErrAccessDenied, tenant.Slug)
	}

	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStore{
		client:    client,
		container: storage.Container,
	}, nil
}

func (s *azureStore) List(ctx context.Context, prefix string) ([]Descriptor, error) {
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	var out []Descriptor

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrList, classifyAzure(err))
		}

		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}

			size := int64(-1)
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}

			out = append(out, Descriptor{Name: *item.Name, Size: size})
		}
	}

	return out, nil
}

func (s *azureStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDownload, name, classifyAzure(err))
	}

	return resp.Body, nil
}

// classifyAzure maps service response codes onto package sentinels.
func classifyAzure(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}

	switch respErr.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	default:
		return err
	}
}
