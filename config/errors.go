package config

import "errors"

// Sentinel errors returned by configuration resolution.
var (
	// ErrInvalidTenant indicates a registry entry or merged document missing
	// required identity fields, or a lookup for a tenant that does not exist.
	ErrInvalidTenant = errors.New("invalid tenant")
	// ErrParse indicates malformed YAML or .env content.
	ErrParse = errors.New("parse config")
	// ErrUnsupportedProvider indicates an unknown storage provider variant.
	ErrUnsupportedProvider = errors.New("unsupported storage provider")
	// ErrSecretInYAML indicates a credential value found in a YAML layer.
	// Credentials live only in the per-tenant .env map.
	ErrSecretInYAML = errors.New("secret in yaml")
	// ErrValidate indicates the merged document failed schema validation.
	ErrValidate = errors.New("validate config")
)
