// Package constants fetches per-tenant business constants from one of
// three backends: a shared relational store, a table in the tenant's own
// warehouse, or prefixed keys in the tenant's .env layer.
//
// Constant names are namespaced by [EnvPrefix], derived from the tenant ID,
// so two tenants sharing an .env file cannot read each other's values.
package constants
