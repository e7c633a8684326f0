package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
)

// RegistryEntry is one tenant's row in the tenant registry. Entries are
// created manually and never mutated by the engine.
type RegistryEntry struct {
	TenantID         string `yaml:"tenant_id"`
	TenantSlug       string `yaml:"tenant_slug"`
	TenantName       string `yaml:"tenant_name"`
	Enabled          bool   `yaml:"enabled"`
	DatabaseName     string `yaml:"database_name"`
	Provider         string `yaml:"provider"`
	ConstantsBackend string `yaml:"constants_backend"`
	SchedulePriority int    `yaml:"schedule_priority"`
}

// GlobalConfig holds registry-level orchestration settings shared by all
// tenants.
type GlobalConfig struct {
	MaxConcurrentTenants int  `yaml:"max_concurrent_tenants"`
	TenantTimeoutSeconds int  `yaml:"tenant_timeout_seconds"`
	FailFast             bool `yaml:"fail_fast"`
}

// Registry is the parsed tenant registry document.
type Registry struct {
	Tenants []RegistryEntry `yaml:"tenants"`
	Global  GlobalConfig    `yaml:"global_config"`
}

// loadRegistry reads and validates tenant_registry.yaml under root.
func loadRegistry(root string) (*Registry, error) {
	path := filepath.Join(root, "tenant_registry.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	var reg Registry

	err = yaml.Unmarshal(data, &reg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	if reg.Global.MaxConcurrentTenants < 1 {
		reg.Global.MaxConcurrentTenants = 1
	}

	if reg.Global.TenantTimeoutSeconds < 1 {
		reg.Global.TenantTimeoutSeconds = 7200
	}

	seen := make(map[string]string, len(reg.Tenants))

	for i, entry := range reg.Tenants {
		if entry.TenantID == "" || entry.TenantSlug == "" {
			return nil, fmt.Errorf("%w: registry entry %d missing tenant_id or tenant_slug",
				ErrInvalidTenant, i)
		}

		_, err = uuid.Parse(entry.TenantID)
		if err != nil {
			return nil, fmt.Errorf("%w: tenant %q: tenant_id is not a UUID: %w",
				ErrInvalidTenant, entry.TenantSlug, err)
		}

		if prev, ok := seen[entry.TenantSlug]; ok {
			return nil, fmt.Errorf("%w: slug %q used by tenants %s and %s",
				ErrInvalidTenant, entry.TenantSlug, prev, entry.TenantID)
		}

		seen[entry.TenantSlug] = entry.TenantID
	}

	return &reg, nil
}

// find returns the registry entry matching either identifier.
func (r *Registry) find(slugOrID string) (RegistryEntry, bool) {
	for _, entry := range r.Tenants {
		if entry.TenantSlug == slugOrID || entry.TenantID == slugOrID {
			return entry, true
		}
	}

	return RegistryEntry{}, false
}
