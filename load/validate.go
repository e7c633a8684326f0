package load

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jmoiron/sqlx"

	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/frame"
)

// ReconcileReport records what reconciliation changed to make the silver
// frame loadable.
type ReconcileReport struct {
	// AddedNull lists nullable destination columns absent from the frame.
	AddedNull []string
	// DroppedExtra lists frame columns the destination does not have.
	DroppedExtra []string
	// Widened maps destination columns to their new varchar width.
	Widened map[string]int
}

// Reconciler validates a silver frame against the live destination schema
// and reorders it into positional column order.
type Reconciler struct {
	db     *sqlx.DB
	cfg    config.StreamLoadConfig
	logger *slog.Logger
}

// NewReconciler returns a reconciler using db for widening DDL.
func NewReconciler(db *sqlx.DB, cfg config.StreamLoadConfig, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// Reconcile checks every live column against the frame and returns the frame
// projected into the destination's positional order. Nullable destination
// columns missing from the frame are filled with typed nulls; frame columns
// the destination lacks are dropped with a warning. String columns wider
// than their varchar destination trigger an in-place widen when enabled,
// each column at most once per run.
func (r *Reconciler) Reconcile(ctx context.Context, table string, f *frame.Frame, live []LiveColumn) (*frame.Frame, *ReconcileReport, error) {
	report := &ReconcileReport{}
	rows := f.NumRows()
	ordered := frame.New()
	inDest := make(map[string]bool, len(live))

	for _, dest := range live {
		inDest[dest.Name] = true

		col, ok := f.Column(dest.Name)
		if !ok {
			if !dest.Nullable() {
				return nil, nil, fmt.Errorf("%w: %s.%s is NOT NULL and absent from the data",
					ErrMissingColumn, table, dest.Name)
			}

			report.AddedNull = append(report.AddedNull, dest.Name)

			err := ordered.AddColumn(frame.NewNullColumn(dest.Name, kindForLiveType(dest.DataType), rows))
			if err != nil {
				return nil, nil, err
			}

			continue
		}

		err := r.checkColumn(ctx, table, col, dest, report)
		if err != nil {
			return nil, nil, err
		}

		err = ordered.AddColumn(col)
		if err != nil {
			return nil, nil, err
		}
	}

	for _, name := range f.Names() {
		if !inDest[name] {
			report.DroppedExtra = append(report.DroppedExtra, name)
		}
	}

	if len(report.DroppedExtra) > 0 {
		r.logger.WarnContext(ctx, "dropping columns the destination lacks",
			slog.String("table", table),
			slog.Any("columns", report.DroppedExtra),
		)
	}

	return ordered, report, nil
}

// checkColumn verifies kind compatibility, varchar width and integer range
// for one matched column.
func (r *Reconciler) checkColumn(ctx context.Context, table string, col *frame.Column, dest LiveColumn, report *ReconcileReport) error {
	if !kindFeeds(col.Kind(), dest.DataType) {
		return fmt.Errorf("%w: %s.%s: frame %v cannot feed %s",
			ErrTypeMismatch, table, dest.Name, col.Kind(), dest.ColumnType)
	}

	if col.Kind() == frame.String && dest.CharMaxLen.Valid {
		widest := maxByteLen(col)
		if int64(widest) > dest.CharMaxLen.Int64 {
			err := r.widen(ctx, table, dest, widest, report)
			if err != nil {
				return err
			}
		}
	}

	if col.Kind() == frame.Int {
		err := checkIntRange(table, col, dest)
		if err != nil {
			return err
		}
	}

	return nil
}

// widen grows a varchar destination to the next power of two covering the
// widest value, bounded by the configured cap.
func (r *Reconciler) widen(ctx context.Context, table string, dest LiveColumn, widest int, report *ReconcileReport) error {
	if !r.cfg.AutoWiden {
		return fmt.Errorf("%w: %s.%s: widest value is %d bytes, column is %s",
			ErrValueTooWide, table, dest.Name, widest, dest.ColumnType)
	}

	newLen := nextPowerOfTwo(widest)
	if newLen > r.cfg.WidenCap {
		newLen = r.cfg.WidenCap
	}

	if widest > newLen {
		return fmt.Errorf("%w: %s.%s: widest value is %d bytes, cap is %d",
			ErrValueTooWide, table, dest.Name, widest, r.cfg.WidenCap)
	}

	stmt := fmt.Sprintf("ALTER TABLE `%s` MODIFY COLUMN `%s` VARCHAR(%d)", table, dest.Name, newLen)

	_, err := r.db.ExecContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %w", ErrWiden, table, dest.Name, err)
	}

	r.logger.InfoContext(ctx, "widened varchar column",
		slog.String("table", table),
		slog.String("column", dest.Name),
		slog.Int64("old_len", dest.CharMaxLen.Int64),
		slog.Int("new_len", newLen),
	)

	if report.Widened == nil {
		report.Widened = make(map[string]int)
	}

	report.Widened[dest.Name] = newLen

	return nil
}

// intRanges bounds the destination integer types an Int column can feed.
var intRanges = map[string][2]int64{
	"tinyint":  {math.MinInt8, math.MaxInt8},
	"smallint": {math.MinInt16, math.MaxInt16},
	"int":      {math.MinInt32, math.MaxInt32},
}

func checkIntRange(table string, col *frame.Column, dest LiveColumn) error {
	bounds, ok := intRanges[dest.DataType]
	if !ok {
		return nil
	}

	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			continue
		}

		v := col.IntAt(i)
		if v < bounds[0] || v > bounds[1] {
			return fmt.Errorf("%w: %s.%s: %d does not fit %s",
				ErrValueRange, table, dest.Name, v, dest.ColumnType)
		}
	}

	return nil
}

// kindFeeds reports whether a frame column kind can load into the
// destination type. Upgrades only; anything lossy is rejected.
func kindFeeds(kind frame.Kind, dataType string) bool {
	switch kind {
	case frame.String:
		switch dataType {
		case "varchar", "char", "string", "text", "json":
			return true
		}
	case frame.Int:
		switch dataType {
		case "tinyint", "smallint", "int", "bigint", "largeint",
			"float", "double", "decimal", "decimalv2", "decimal64", "decimal128":
			return true
		}
	case frame.Float:
		switch dataType {
		case "float", "double", "decimal", "decimalv2", "decimal64", "decimal128":
			return true
		}
	case frame.Bool:
		switch dataType {
		case "boolean", "tinyint":
			return true
		}
	case frame.Date:
		switch dataType {
		case "date", "datetime":
			return true
		}
	case frame.Datetime:
		return dataType == "datetime"
	}

	return false
}

// kindForLiveType picks the frame kind for a null column injected to cover
// an absent nullable destination.
func kindForLiveType(dataType string) frame.Kind {
	switch dataType {
	case "tinyint", "smallint", "int", "bigint", "largeint":
		return frame.Int
	case "float", "double", "decimal", "decimalv2", "decimal64", "decimal128":
		return frame.Float
	case "boolean":
		return frame.Bool
	case "date":
		return frame.Date
	case "datetime":
		return frame.Datetime
	default:
		return frame.String
	}
}

func maxByteLen(col *frame.Column) int {
	widest := 0

	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			continue
		}

		if n := len(col.StringAt(i)); n > widest {
			widest = n
		}
	}

	return widest
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
