package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.datawiz.dev/etl/config"
)

// Sentinel errors returned by object-store operations.
var (
	// ErrNotFound indicates a missing container or object.
	ErrNotFound = errors.New("object not found")
	// ErrAccessDenied indicates rejected credentials or permissions.
	// Retrying cannot fix it.
	ErrAccessDenied = errors.New("access denied")
	// ErrList indicates a listing failure other than the above.
	ErrList = errors.New("list objects")
	// ErrDownload indicates a download failure other than the above.
	ErrDownload = errors.New("download object")
	// ErrIntegrity indicates a downloaded file whose size does not match
	// the listing.
	ErrIntegrity = errors.New("size mismatch")
)

// Descriptor identifies one remote object within a tenant's container.
type Descriptor struct {
	// Name is the object key relative to the container root.
	Name string
	// Size is the object length in bytes as reported by the listing, or -1
	// when the provider does not report one.
	Size int64
}

// Store lists and streams objects from one tenant's container. Implementations
// wrap provider errors in the package sentinels so callers can distinguish
// permanent failures from transient ones.
type Store interface {
	// List returns descriptors for every object under prefix.
	List(ctx context.Context, prefix string) ([]Descriptor, error)
	// Open streams one object by key. The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// NewStore builds the [Store] for the tenant's declared provider. The s3,
// minio and gcs variants all speak the S3 wire protocol; gcs goes through
// its interoperability endpoint.
func NewStore(ctx context.Context, tenant *config.TenantContext) (Store, error) {
	storage := tenant.Doc.Storage

	switch storage.Provider {
	case "azure":
		return newAzureStore(tenant)
	case "s3", "minio":
		return newS3Store(ctx, tenant, storage.Endpoint)
	case "gcs":
		endpoint := storage.Endpoint
		if endpoint == "" {
			endpoint = "https://storage.googleapis.com"
		}

		return newS3Store(ctx, tenant, endpoint)
	case "local":
		return newLocalStore(storage.Container)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedProvider, storage.Provider)
	}
}
