package load

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/frame"
)

// Strategy selects how a table load treats existing rows.
type Strategy string

const (
	// FullRefresh truncates the destination before loading. Used for
	// dimension rebuilds.
	FullRefresh Strategy = "full_refresh"
	// Append loads on top of existing rows. Used for incremental facts.
	Append Strategy = "append"
)

// Report is the outcome of one table load.
type Report struct {
	Table     string
	Strategy  Strategy
	Reconcile *ReconcileReport
	Summary   *LoadSummary
	// RowsBefore and RowsAfter bracket the destination row count.
	RowsBefore int64
	RowsAfter  int64
}

// Loader validates silver frames against the live destination and bulk
// loads them.
type Loader struct {
	db     *sqlx.DB
	stream *StreamLoader
	tenant *config.TenantContext
	logger *slog.Logger
}

// NewLoader returns a loader over an open tenant database handle.
func NewLoader(db *sqlx.DB, tenant *config.TenantContext, logger *slog.Logger) *Loader {
	return &Loader{
		db:     db,
		stream: NewStreamLoader(tenant, logger),
		tenant: tenant,
		logger: logger,
	}
}

// LoadTable validates, reorders and loads one silver frame.
//
// Validation and any widening happen before the strategy touches existing
// rows, so a frame that cannot load never empties a dimension. After a full
// refresh the destination count must match what the database acknowledged.
// Appends rely on the destination's primary-key merge semantics: reloading
// rows it already holds keeps the count flat, so the count is only reported,
// never enforced.
func (l *Loader) LoadTable(ctx context.Context, table string, f *frame.Frame, strategy Strategy) (*Report, error) {
	live, err := FetchLiveSchema(ctx, l.db, l.tenant.DatabaseName, table)
	if err != nil {
		return nil, err
	}

	reconciler := NewReconciler(l.db, l.tenant.Doc.StreamLoad, l.logger)

	ordered, reconcile, err := reconciler.Reconcile(ctx, table, f, live)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Table:     table,
		Strategy:  strategy,
		Reconcile: reconcile,
	}

	report.RowsBefore, err = countRows(ctx, l.db, table)
	if err != nil {
		return nil, err
	}

	if strategy == FullRefresh {
		_, err = l.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE `%s`", table))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTruncate, table, err)
		}

		report.RowsBefore = 0
	}

	report.Summary, err = l.stream.LoadFrame(ctx, table, ordered)
	if err != nil {
		return report, err
	}

	report.RowsAfter, err = countRows(ctx, l.db, table)
	if err != nil {
		return report, err
	}

	expected := report.RowsBefore + report.Summary.LoadedRows
	if report.RowsAfter != expected {
		if strategy == FullRefresh {
			return report, fmt.Errorf("%w: %s: expected %d rows, destination has %d",
				ErrRowCount, table, expected, report.RowsAfter)
		}

		l.logger.InfoContext(ctx, "destination merged duplicate keys",
			slog.String("table", table),
			slog.Int64("acknowledged", report.Summary.LoadedRows),
			slog.Int64("rows_before", report.RowsBefore),
			slog.Int64("rows_after", report.RowsAfter),
		)
	}

	return report, nil
}
