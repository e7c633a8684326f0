package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"go.datawiz.dev/etl/schema"
)

// supportedProviders are the object-store variants a tenant may declare.
var supportedProviders = map[string]bool{
	"azure": true,
	"s3":    true,
	"gcs":   true,
	"minio": true,
	"local": true,
}

// Resolver loads tenant configuration from a layered directory tree. The
// shared layers sit beside the registry; each tenant owns a directory with
// its overrides, credentials, schemas, mappings and seeds.
type Resolver struct {
	root     string
	registry *Registry
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// NewResolver reads the tenant registry under root and returns a resolver
// for it.
func NewResolver(root string, opts ...ResolverOption) (*Resolver, error) {
	reg, err := loadRegistry(root)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		root:     root,
		registry: reg,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Global returns registry-level orchestration settings.
func (r *Resolver) Global() GlobalConfig {
	return r.registry.Global
}

// ListTenants returns registry entries ordered by schedule priority, then
// slug. Disabled tenants are excluded unless includeDisabled is set.
func (r *Resolver) ListTenants(includeDisabled bool) []RegistryEntry {
	entries := make([]RegistryEntry, 0, len(r.registry.Tenants))

	for _, entry := range r.registry.Tenants {
		if !entry.Enabled && !includeDisabled {
			continue
		}

		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].SchedulePriority != entries[j].SchedulePriority {
			return entries[i].SchedulePriority < entries[j].SchedulePriority
		}

		return entries[i].TenantSlug < entries[j].TenantSlug
	})

	return entries
}

// Get resolves one tenant by slug or ID into a full [TenantContext]. The
// merged document is scanned for credential leaves, interpolated, validated
// and decoded; the tenant's schema artifacts are loaded alongside.
func (r *Resolver) Get(slugOrID string) (*TenantContext, error) {
	entry, ok := r.registry.find(slugOrID)
	if !ok {
		return nil, fmt.Errorf("%w: %q not in registry", ErrInvalidTenant, slugOrID)
	}

	merged, err := r.mergeLayers(entry.TenantSlug)
	if err != nil {
		return nil, err
	}

	if path, found := findSecretLeaf(merged, ""); found {
		return nil, fmt.Errorf("%w: %s (move it to the tenant .env file)", ErrSecretInYAML, path)
	}

	interpolated, _ := interpolate(merged, entry.TenantSlug).(map[string]any)

	err = validateDocument(interpolated)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", entry.TenantSlug, err)
	}

	doc, err := decodeDocument(interpolated)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", entry.TenantSlug, err)
	}

	if entry.DatabaseName != "" {
		doc.Database.Name = entry.DatabaseName
	}

	if doc.Storage.Provider == "" {
		doc.Storage.Provider = entry.Provider
	}

	if !supportedProviders[doc.Storage.Provider] {
		return nil, fmt.Errorf("%w: tenant %s: %q", ErrUnsupportedProvider,
			entry.TenantSlug, doc.Storage.Provider)
	}

	env, err := r.loadEnv(entry.TenantSlug)
	if err != nil {
		return nil, err
	}

	tenantDir := filepath.Join(r.root, "tenants", entry.TenantSlug)

	tables, err := schema.LoadTables(filepath.Join(tenantDir, "schemas", "tables"), schema.KindTable)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", entry.TenantSlug, err)
	}

	views, err := schema.LoadTables(filepath.Join(tenantDir, "schemas", "views"), schema.KindView)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", entry.TenantSlug, err)
	}

	matViews, err := schema.LoadTables(
		filepath.Join(tenantDir, "schemas", "matviews"), schema.KindMatView)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", entry.TenantSlug, err)
	}

	mappings, err := schema.LoadMappings(filepath.Join(tenantDir, "column_mappings"))
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", entry.TenantSlug, err)
	}

	rules, err := schema.LoadRules(filepath.Join(tenantDir, "computed_columns.yaml"))
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", entry.TenantSlug, err)
	}

	return &TenantContext{
		ID:               entry.TenantID,
		Slug:             entry.TenantSlug,
		Name:             entry.TenantName,
		DatabaseName:     doc.Database.Name,
		Provider:         doc.Storage.Provider,
		ConstantsBackend: entry.ConstantsBackend,
		Priority:         entry.SchedulePriority,
		Enabled:          entry.Enabled,
		Doc:              doc,
		Paths:            Paths{Root: filepath.Join(doc.DataPaths.Base, entry.TenantSlug)},
		Tables:           tables,
		Views:            views,
		MatViews:         matViews,
		Mappings:         mappings,
		Rules:            rules,
		SeedsDir:         filepath.Join(tenantDir, "seeds"),
		env:              env,
	}, nil
}

// mergeLayers folds the configuration layers for slug, most specific last.
func (r *Resolver) mergeLayers(slug string) (map[string]any, error) {
	merged := map[string]any{}

	layers := []struct {
		path string
		key  string
	}{
		{filepath.Join(r.root, "shared", "default_config.yaml"), ""},
		{filepath.Join(r.root, "starrocks", "connection_pool.yaml"), "connection_pool"},
		{filepath.Join(r.root, "starrocks", "stream_load_defaults.yaml"), "stream_load"},
		{filepath.Join(r.root, "shared", "common_business_rules.yaml"), "business_rules"},
		{filepath.Join(r.root, "tenants", slug, "config.yaml"), ""},
	}

	for _, layer := range layers {
		tree, err := readYAMLMap(layer.path)
		if err != nil {
			return nil, err
		}

		if tree == nil {
			continue
		}

		if layer.key != "" {
			tree = map[string]any{layer.key: tree}
		}

		merged = deepMerge(merged, tree)
	}

	return merged, nil
}

// loadEnv reads the tenant's .env file. A missing file yields an empty map
// so tenants without credentials still resolve.
func (r *Resolver) loadEnv(slug string) (map[string]string, error) {
	path := filepath.Join(r.root, "tenants", slug, ".env")

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	return env, nil
}

// readYAMLMap parses path into a generic map. Missing files are not an
// error; optional layers simply contribute nothing.
func readYAMLMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	var tree map[string]any

	err = yaml.Unmarshal(data, &tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	return tree, nil
}
