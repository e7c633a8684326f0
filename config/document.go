package config

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/google/jsonschema-go/jsonschema"

	"go.datawiz.dev/etl/schema"
)

// DatabaseConfig holds the OLAP database connection parameters. The
// password is never part of the document; it comes from the tenant env map.
type DatabaseConfig struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	HTTPPort int    `yaml:"http_port"`
	User     string `yaml:"user"`
}

// PoolConfig holds per-tenant connection-pool settings.
type PoolConfig struct {
	MaxOpen        int  `yaml:"max_open"`
	MaxIdle        int  `yaml:"max_idle"`
	RecycleSeconds int  `yaml:"recycle_seconds"`
	PrePing        bool `yaml:"pre_ping"`
}

// StreamLoadConfig holds bulk-load tuning for one tenant.
type StreamLoadConfig struct {
	ChunkSize      int     `yaml:"chunk_size"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxFilterRatio float64 `yaml:"max_filter_ratio"`
	MaxAttempts    int     `yaml:"max_attempts"`
	AutoWiden      bool    `yaml:"auto_widen"`
	WidenCap       int     `yaml:"widen_cap"`
}

// StorageConfig holds the object-store location for one tenant. Tables maps
// each destination table onto its provider path segment; the segment is
// declared, never derived from the table name.
type StorageConfig struct {
	Provider  string            `yaml:"provider"`
	Container string            `yaml:"container"`
	Prefix    string            `yaml:"prefix"`
	Endpoint  string            `yaml:"endpoint"`
	Region    string            `yaml:"region"`
	Account   string            `yaml:"account"`
	Suffix    string            `yaml:"suffix"`
	Tables    map[string]string `yaml:"tables"`
}

// DownloadConfig holds blob download behavior.
type DownloadConfig struct {
	MaxAttempts   int  `yaml:"max_attempts"`
	ProgressEvery int  `yaml:"progress_every"`
	FailFast      bool `yaml:"fail_fast"`
}

// DataPaths holds the filesystem root under which tenant directories nest.
type DataPaths struct {
	Base string `yaml:"base"`
}

// JobsConfig declares which tables each named job covers.
type JobsConfig struct {
	Dimensions []string `yaml:"dimensions"`
	Facts      []string `yaml:"facts"`
}

// BusinessRules holds tenant-declared row filters per table.
type BusinessRules struct {
	Filters map[string][]schema.Filter `yaml:"filters"`
}

// Document is the typed view of a tenant's merged configuration layers.
type Document struct {
	Database       DatabaseConfig   `yaml:"database"`
	ConnectionPool PoolConfig       `yaml:"connection_pool"`
	StreamLoad     StreamLoadConfig `yaml:"stream_load"`
	Storage        StorageConfig    `yaml:"storage"`
	Download       DownloadConfig   `yaml:"download"`
	DataPaths      DataPaths        `yaml:"data_paths"`
	BusinessRules  BusinessRules    `yaml:"business_rules"`
	Jobs           JobsConfig       `yaml:"jobs"`
}

// applyDefaults fills unset tuning values with engine defaults.
func (d *Document) applyDefaults() {
	if d.Database.Host == "" {
		d.Database.Host = "127.0.0.1"
	}

	if d.Database.Port == 0 {
		d.Database.Port = 9030
	}

	if d.Database.HTTPPort == 0 {
		d.Database.HTTPPort = 8040
	}

	if d.ConnectionPool.MaxOpen == 0 {
		d.ConnectionPool.MaxOpen = 10
	}

	if d.ConnectionPool.MaxIdle == 0 {
		d.ConnectionPool.MaxIdle = 5
	}

	if d.ConnectionPool.RecycleSeconds == 0 {
		d.ConnectionPool.RecycleSeconds = 3600
	}

	if d.StreamLoad.ChunkSize == 0 {
		d.StreamLoad.ChunkSize = 8192
	}

	if d.StreamLoad.TimeoutSeconds == 0 {
		d.StreamLoad.TimeoutSeconds = 900
	}

	if d.StreamLoad.MaxAttempts == 0 {
		d.StreamLoad.MaxAttempts = 3
	}

	if d.StreamLoad.WidenCap == 0 {
		d.StreamLoad.WidenCap = 65533
	}

	if d.Download.MaxAttempts == 0 {
		d.Download.MaxAttempts = 3
	}

	if d.Download.ProgressEvery == 0 {
		d.Download.ProgressEvery = 5
	}

	if d.DataPaths.Base == "" {
		d.DataPaths.Base = "data"
	}
}

// decodeDocument converts the merged YAML tree into a typed [Document].
func decodeDocument(merged map[string]any) (*Document, error) {
	data, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var doc Document

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	doc.applyDefaults()

	return &doc, nil
}

// documentSchema is the JSON Schema the merged tenant document must satisfy
// before it is decoded. It constrains section shapes while leaving room for
// tenant-specific extensions.
func documentSchema() *jsonschema.Schema {
	intType := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "integer"} }
	strType := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"database": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"name":      strType(),
					"host":      strType(),
					"port":      intType(),
					"http_port": intType(),
					"user":      strType(),
				},
			},
			"connection_pool": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"max_open":        intType(),
					"max_idle":        intType(),
					"recycle_seconds": intType(),
					"pre_ping":        {Type: "boolean"},
				},
			},
			"stream_load": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"chunk_size":       intType(),
					"timeout_seconds":  intType(),
					"max_filter_ratio": {Type: "number"},
					"max_attempts":     intType(),
					"auto_widen":       {Type: "boolean"},
					"widen_cap":        intType(),
				},
			},
			"storage": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"provider":  strType(),
					"container": strType(),
					"prefix":    strType(),
					"endpoint":  strType(),
					"region":    strType(),
					"account":   strType(),
					"suffix":    strType(),
					"tables": {
						Type:                 "object",
						AdditionalProperties: strType(),
					},
				},
			},
			"download": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"max_attempts":   intType(),
					"progress_every": intType(),
					"fail_fast":      {Type: "boolean"},
				},
			},
			"data_paths": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"base": strType(),
				},
			},
			"jobs": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"dimensions": {Type: "array", Items: strType()},
					"facts":      {Type: "array", Items: strType()},
				},
			},
		},
	}
}

// validateDocument checks the merged tree against [documentSchema]. The
// tree is normalized through JSON first so YAML integer widths do not leak
// into validation.
func validateDocument(merged map[string]any) error {
	resolved, err := documentSchema().Resolve(nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidate, err)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidate, err)
	}

	var instance any

	err = json.Unmarshal(data, &instance)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidate, err)
	}

	err = resolved.Validate(instance)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidate, err)
	}

	return nil
}
