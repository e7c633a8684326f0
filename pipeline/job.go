package pipeline

import (
	"sort"

	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/load"
)

// Job is one named pipeline entry point. Jobs differ in which tables they
// cover, which half of the data directory they read, and how the load
// treats existing rows.
type Job struct {
	Name     string
	Mode     config.LoadMode
	Strategy load.Strategy
	// Tables selects the destination tables from the tenant's job config.
	Tables func(*config.TenantContext) []string
	// SeedsOnly marks jobs that load reference data instead of extracts.
	SeedsOnly bool
}

// jobs are the named entry points the scheduler invokes.
var jobs = map[string]Job{
	"evening_dimension_refresh": {
		Name:     "evening_dimension_refresh",
		Mode:     config.Incremental,
		Strategy: load.FullRefresh,
		Tables:   func(t *config.TenantContext) []string { return t.Doc.Jobs.Dimensions },
	},
	"morning_dimension_incremental": {
		Name:     "morning_dimension_incremental",
		Mode:     config.Incremental,
		Strategy: load.Append,
		Tables:   func(t *config.TenantContext) []string { return t.Doc.Jobs.Dimensions },
	},
	"morning_fact_incremental": {
		Name:     "morning_fact_incremental",
		Mode:     config.Incremental,
		Strategy: load.Append,
		Tables:   func(t *config.TenantContext) []string { return t.Doc.Jobs.Facts },
	},
	"historical_rebuild": {
		Name:     "historical_rebuild",
		Mode:     config.Historical,
		Strategy: load.FullRefresh,
		Tables: func(t *config.TenantContext) []string {
			return append(append([]string{}, t.Doc.Jobs.Dimensions...), t.Doc.Jobs.Facts...)
		},
	},
	"seed_load": {
		Name:      "seed_load",
		SeedsOnly: true,
		Tables:    func(*config.TenantContext) []string { return nil },
	},
}

// JobByName resolves a scheduler entry point.
func JobByName(name string) (Job, bool) {
	j, ok := jobs[name]

	return j, ok
}

// JobNames lists the entry points, for CLI help and completion.
func JobNames() []string {
	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
