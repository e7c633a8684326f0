// Package blob lists and downloads tenant source objects from object
// storage.
//
// A [Store] abstracts one tenant's container; Azure Blob, S3 (including
// MinIO and the GCS interoperability endpoint) and plain directories are
// supported. [Fetcher] drives downloads: sequential, retried with
// exponential backoff, written atomically via a .part rename, with sizes
// verified against the listing.
package blob
