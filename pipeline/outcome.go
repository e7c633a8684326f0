package pipeline

import (
	"time"

	"go.datawiz.dev/etl/load"
	"go.datawiz.dev/etl/transform"
)

// Stage names the pipeline step a table reached.
type Stage string

// Pipeline stages in execution order.
const (
	StageDiscover  Stage = "discover"
	StageDownload  Stage = "download"
	StageConvert   Stage = "convert"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
	StageDone      Stage = "done"
)

// TableOutcome is the result of one table's run. Err, when set, belongs to
// the recorded stage; every earlier stage completed.
type TableOutcome struct {
	Table   string
	Stage   Stage
	Err     error
	Skipped bool

	Files     int
	Stats     *transform.Stats
	Report    *load.Report
	Elapsed   time.Duration
}

// Failed reports whether the table run ended in an error.
func (o TableOutcome) Failed() bool { return o.Err != nil }

// TenantOutcome aggregates one tenant's table outcomes.
type TenantOutcome struct {
	Slug    string
	Tables  []TableOutcome
	Err     error
	Elapsed time.Duration
}

// FailedTables counts tables that ended in an error.
func (o TenantOutcome) FailedTables() int {
	n := 0

	for _, t := range o.Tables {
		if t.Failed() {
			n++
		}
	}

	return n
}

// RunOutcome aggregates a whole job invocation across tenants.
type RunOutcome struct {
	Job     string
	Tenants []TenantOutcome
	Elapsed time.Duration
}

// Failed reports whether any tenant ended in an error.
func (o RunOutcome) Failed() bool {
	for _, t := range o.Tenants {
		if t.Err != nil || t.FailedTables() > 0 {
			return true
		}
	}

	return false
}
