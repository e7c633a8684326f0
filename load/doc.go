// Package load validates silver frames against the live destination schema
// and bulk loads them over HTTP.
//
// The bulk-load protocol binds CSV fields to columns by position, so the
// loader refetches the destination's column order on every run and projects
// each frame into it before serializing. [Reconciler] fills absent nullable
// columns with typed nulls, drops columns the destination lacks, and widens
// varchar columns in place when values outgrow them. [StreamLoader] sends
// chunked transactions with deterministic labels; a replayed label is
// acknowledged by the database and treated as already loaded.
package load
