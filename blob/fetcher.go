package blob

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"

	"go.datawiz.dev/etl/config"
)

// ErrNoTablePath indicates a table with no declared storage path segment.
var ErrNoTablePath = errors.New("no storage path for table")

// FetchResult reports what one table-level fetch produced.
type FetchResult struct {
	// Files are the local paths of every object downloaded, in listing order.
	Files []string
	// Bytes is the total compressed size transferred.
	Bytes int64
	// Failed counts objects that exhausted their retries. Non-zero only
	// when fail_fast is off.
	Failed int
}

// Fetcher downloads a tenant's source objects to the local working
// directory. Downloads are sequential; object stores throttle per-connection
// and the pipeline is disk-bound past two streams anyway.
type Fetcher struct {
	store  Store
	tenant *config.TenantContext
	logger *slog.Logger
}

// NewFetcher returns a fetcher over store for tenant.
func NewFetcher(store Store, tenant *config.TenantContext, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		store:  store,
		tenant: tenant,
		logger: logger,
	}
}

// Fetch downloads the source objects under the table's declared path into
// destDir, in lexicographic listing order; objects without an ingestible
// suffix are skipped.
// Each file lands atomically: bytes stream into a .part neighbor which is
// fsynced and renamed only after the size check passes. Objects ending in
// .gz are decompressed in flight.
//
// An empty listing is not an error; the caller decides whether no new data
// means "done" or "warn".
func (f *Fetcher) Fetch(ctx context.Context, table, destDir string) (*FetchResult, error) {
	segment, ok := f.tenant.Doc.Storage.Tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTablePath, table)
	}

	prefix := joinPrefix(f.tenant.Doc.Storage.Prefix, segment)

	listed, err := f.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	descriptors := selectSources(listed)

	if skipped := len(listed) - len(descriptors); skipped > 0 {
		f.logger.InfoContext(ctx, "skipped non-source objects",
			slog.String("table", table),
			slog.Int("skipped", skipped),
		)
	}

	if len(descriptors) == 0 {
		f.logger.InfoContext(ctx, "no objects under prefix",
			slog.String("table", table),
			slog.String("prefix", prefix),
		)

		return &FetchResult{}, nil
	}

	download := f.tenant.Doc.Download
	result := &FetchResult{}

	var errs error

	for i, desc := range descriptors {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		local, err := f.fetchOne(ctx, desc, destDir, download.MaxAttempts)
		if err != nil {
			if download.FailFast {
				return result, err
			}

			f.logger.ErrorContext(ctx, "object failed, continuing",
				slog.String("object", desc.Name),
				slog.Any("error", err),
			)

			result.Failed++
			errs = multierror.Append(errs, err)

			continue
		}

		result.Files = append(result.Files, local)
		if desc.Size > 0 {
			result.Bytes += desc.Size
		}

		if (i+1)%download.ProgressEvery == 0 || i == len(descriptors)-1 {
			f.logger.InfoContext(ctx, "download progress",
				slog.String("table", table),
				slog.Int("done", i+1),
				slog.Int("total", len(descriptors)),
			)
		}
	}

	return result, errs
}

// fetchOne downloads a single object with retries. Missing objects and
// rejected credentials are permanent; everything else retries with
// exponential backoff.
func (f *Fetcher) fetchOne(ctx context.Context, desc Descriptor, destDir string, maxAttempts int) (string, error) {
	local := filepath.Join(destDir, localName(desc.Name))

	op := func() error {
		err := f.downloadTo(ctx, desc, local)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccessDenied) {
			return backoff.Permanent(err)
		}

		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxAttempts-1)), ctx)

	err := backoff.Retry(op, policy)
	if err != nil {
		return "", err
	}

	return local, nil
}

func (f *Fetcher) downloadTo(ctx context.Context, desc Descriptor, local string) (err error) {
	body, err := f.store.Open(ctx, desc.Name)
	if err != nil {
		return err
	}
	defer closeQuietly(body, &err)

	part := local + ".part"

	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}

	counted := &countingReader{r: body}

	var src io.Reader = counted

	if strings.HasSuffix(desc.Name, ".gz") {
		gz, err := gzip.NewReader(counted)
		if err != nil {
			out.Close()
			os.Remove(part)

			return fmt.Errorf("%w: %s: %w", ErrDownload, desc.Name, err)
		}
		defer gz.Close()

		src = gz
	}

	_, err = io.Copy(out, src)
	if err == nil {
		err = out.Sync()
	}

	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(part)

		return fmt.Errorf("%w: %s: %w", ErrDownload, desc.Name, err)
	}

	if desc.Size >= 0 && counted.n != desc.Size {
		os.Remove(part)

		return fmt.Errorf("%w: %s: got %d bytes, listing said %d",
			ErrIntegrity, desc.Name, counted.n, desc.Size)
	}

	err = os.Rename(part, local)
	if err != nil {
		os.Remove(part)

		return fmt.Errorf("%w: %w", ErrDownload, err)
	}

	return nil
}

// sourceSuffixes are the extract formats the converter ingests. Anything
// else under the prefix (marker blobs, sidecar metadata) is not a source
// file and must not fail the table.
var sourceSuffixes = []string{".csv", ".txt", ".tsv", ".xlsx", ".xlsm", ".parquet"}

// selectSources filters the listing down to ingestible objects, sorted
// lexicographically so multi-part extracts load in their numbered order.
func selectSources(listed []Descriptor) []Descriptor {
	out := make([]Descriptor, 0, len(listed))

	for _, desc := range listed {
		name := strings.ToLower(strings.TrimSuffix(desc.Name, ".gz"))
		for _, suffix := range sourceSuffixes {
			if strings.HasSuffix(name, suffix) {
				out = append(out, desc)
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// localName flattens an object key to a bare filename, dropping the .gz
// suffix for objects decompressed in flight.
func localName(key string) string {
	name := key
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	return strings.TrimSuffix(name, ".gz")
}

func joinPrefix(parts ...string) string {
	var nonEmpty []string

	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	if len(nonEmpty) == 0 {
		return ""
	}

	return strings.Join(nonEmpty, "/") + "/"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)

	return n, err
}

func closeQuietly(c io.Closer, err *error) {
	closeErr := c.Close()
	if *err == nil && closeErr != nil {
		*err = closeErr
	}
}
