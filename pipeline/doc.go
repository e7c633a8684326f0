// Package pipeline orchestrates tenant ETL runs.
//
// A [Runner] executes a named [Job] for one or many tenants: download from
// object storage, convert to bronze parquet, transform to silver, bulk load.
// Tenants fan out under the registry's concurrency cap with a deadline each;
// tables within a tenant run sequentially and fail independently, so one
// broken extract never blocks the rest of the warehouse.
package pipeline
