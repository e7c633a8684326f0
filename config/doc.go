// Package config resolves multi-tenant configuration from a layered
// directory tree into immutable [TenantContext] values.
//
// Layers merge most specific last: shared defaults, database tuning,
// shared business rules, then the tenant's own overrides. Maps merge
// key-wise and lists replace wholesale, so a tenant overriding a filter
// list replaces it rather than appending to it. String leaves may carry
// the {tenant_slug} placeholder, which is substituted after merging.
//
// Credentials never appear in YAML. Any non-empty leaf under a reserved
// key name (password, secret, token and friends) fails resolution with
// [ErrSecretInYAML]; secrets belong in the tenant's .env file and are
// exposed only through [TenantContext.Env].
package config
