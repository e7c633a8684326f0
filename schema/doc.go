// Package schema loads the declarative artifacts that drive a tenant's
// pipeline: destination table schemas ([Table]), ordered column mappings
// ([Mapping]), computed-column rules ([Rule]), and row filters ([Filter]).
//
// Rules are tagged variants: each [RuleKind] selects an explicit parameter
// struct rather than a free-form map. Rule sets are validated at load time;
// a cyclic dependency between rule targets fails with [ErrRuleCycle] before
// any file I/O happens downstream.
package schema
