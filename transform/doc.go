// Package transform turns bronze frames into silver frames.
//
// A [Transformer] applies the tenant's column mapping (rename, type, clean,
// default), then computed-column rules in dependency order, then declared
// row filters. Individual cells that fail their casts follow the mapping's
// per-column policy and are counted in [Stats]; only structural problems
// abort a table.
package transform
