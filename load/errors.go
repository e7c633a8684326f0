package load

import "errors"

// Sentinel errors returned by the load stage.
var (
	// ErrSchemaFetch indicates the live table schema could not be read.
	ErrSchemaFetch = errors.New("fetch live schema")
	// ErrMissingColumn indicates a non-nullable destination column absent
	// from the silver frame.
	ErrMissingColumn = errors.New("missing required column")
	// ErrTypeMismatch indicates a frame column whose kind cannot feed the
	// destination column's type.
	ErrTypeMismatch = errors.New("column type mismatch")
	// ErrValueTooWide indicates a string value exceeding the destination
	// varchar width with widening disabled or capped out.
	ErrValueTooWide = errors.New("value exceeds column width")
	// ErrValueRange indicates a numeric value outside the destination
	// type's range.
	ErrValueRange = errors.New("value out of range")
	// ErrWiden indicates a failed column-widening DDL statement.
	ErrWiden = errors.New("widen column")
	// ErrTruncate indicates a failed pre-refresh truncate.
	ErrTruncate = errors.New("truncate table")
	// ErrLoadFailed indicates a chunk the database rejected after all
	// retries.
	ErrLoadFailed = errors.New("bulk load failed")
	// ErrRowCount indicates a post-load row-count check that did not add up.
	ErrRowCount = errors.New("row count mismatch")
)
