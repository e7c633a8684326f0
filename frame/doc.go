// Package frame implements the columnar data model exchanged between
// pipeline stages.
//
// A [Frame] is an ordered set of named, typed, nullable columns with a
// shared row count. Stages treat frames as immutable: each stage builds and
// returns a new frame, possibly sharing column storage with its input.
//
// The package also provides the two on-disk forms a frame takes during a
// run: parquet for the bronze and silver layers ([WriteParquet],
// [ReadParquet]) and the header-less row-delimited text payload posted to
// the bulk-load endpoint ([Frame.WriteChunkCSV]). The payload uses a rare
// single-byte field separator (SOH, 0x01) so embedded commas and tabs in
// text fields need no quoting.
package frame
