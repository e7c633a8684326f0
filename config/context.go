package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.datawiz.dev/etl/schema"
)

// LoadMode selects which half of a tenant's data directory a run works in.
type LoadMode string

const (
	// Incremental runs append recent extracts.
	Incremental LoadMode = "incremental"
	// Historical runs rebuild from full extracts.
	Historical LoadMode = "historical"
)

// Paths holds the per-tenant working directories. Each load mode owns a
// source_files, raw_parquet and cleaned_parquet subtree.
type Paths struct {
	Root string
}

// Source returns the download target directory for mode.
func (p Paths) Source(mode LoadMode) string {
	return filepath.Join(p.Root, string(mode), "source_files")
}

// Raw returns the bronze parquet directory for mode.
func (p Paths) Raw(mode LoadMode) string {
	return filepath.Join(p.Root, string(mode), "raw_parquet")
}

// Cleaned returns the silver parquet directory for mode.
func (p Paths) Cleaned(mode LoadMode) string {
	return filepath.Join(p.Root, string(mode), "cleaned_parquet")
}

// Ensure creates every working directory that does not yet exist.
func (p Paths) Ensure() error {
	for _, mode := range []LoadMode{Incremental, Historical} {
		for _, dir := range []string{p.Source(mode), p.Raw(mode), p.Cleaned(mode)} {
			err := os.MkdirAll(dir, 0o755)
			if err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	return nil
}

// TenantContext is the fully resolved execution context for one tenant. It
// is immutable once built; pipeline stages read from it and never write.
type TenantContext struct {
	ID               string
	Slug             string
	Name             string
	DatabaseName     string
	Provider         string
	ConstantsBackend string
	Priority         int
	Enabled          bool

	Doc   *Document
	Paths Paths

	Tables   []schema.Table
	Views    []schema.Table
	MatViews []schema.Table
	Mappings map[string]schema.Mapping
	Rules    map[string][]schema.Rule

	SeedsDir string

	env map[string]string
}

// NewStaticContext builds a context directly from its parts, bypassing the
// layered resolver. Intended for tools and tests that already hold a
// resolved document.
func NewStaticContext(id, slug string, doc *Document, env map[string]string) *TenantContext {
	if doc == nil {
		doc = &Document{}
		doc.applyDefaults()
	}

	if env == nil {
		env = map[string]string{}
	}

	return &TenantContext{
		ID:           id,
		Slug:         slug,
		DatabaseName: doc.Database.Name,
		Provider:     doc.Storage.Provider,
		Enabled:      true,
		Doc:          doc,
		Paths:        Paths{Root: filepath.Join(doc.DataPaths.Base, slug)},
		Mappings:     map[string]schema.Mapping{},
		Rules:        map[string][]schema.Rule{},
		env:          env,
	}
}

// Env returns the named credential or setting from the tenant's .env layer.
// Values returned here must never be logged.
func (t *TenantContext) Env(key string) string {
	return t.env[key]
}

// EnvKeys returns the key names present in the tenant's .env layer, in no
// particular order.
func (t *TenantContext) EnvKeys() []string {
	keys := make([]string, 0, len(t.env))
	for k := range t.env {
		keys = append(keys, k)
	}

	return keys
}

// LookupEnv reports whether key is present in the tenant's .env layer.
func (t *TenantContext) LookupEnv(key string) (string, bool) {
	v, ok := t.env[key]

	return v, ok
}

// Timeout returns the per-tenant run deadline from the registry.
func (t *TenantContext) Timeout(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// Mapping returns the column mapping for table, if declared.
func (t *TenantContext) Mapping(table string) (schema.Mapping, bool) {
	m, ok := t.Mappings[table]

	return m, ok
}

// TableRules returns the computed-column rules for table in dependency order.
func (t *TenantContext) TableRules(table string) []schema.Rule {
	return t.Rules[table]
}

// Filters returns the tenant-declared row filters for table.
func (t *TenantContext) Filters(table string) []schema.Filter {
	return t.Doc.BusinessRules.Filters[table]
}
