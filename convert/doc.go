// Package convert turns downloaded source files into bronze parquet.
//
// CSV, TSV and Excel inputs become all-string frames so malformed cells
// survive until the transform stage can apply per-column cast policies.
// Parquet inputs pass through unchanged.
package convert
