package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/frame"
	"go.datawiz.dev/etl/schema"
)

// Sentinel errors returned by the transform stage.
var (
	// ErrNoMapping indicates a table with no column mapping on file.
	ErrNoMapping = errors.New("no mapping for table")
	// ErrMissingSource indicates a non-nullable target whose source column
	// is absent from the bronze frame.
	ErrMissingSource = errors.New("missing source column")
	// ErrCoerce indicates a source column that cannot be coerced at all,
	// as opposed to individual cells failing their casts.
	ErrCoerce = errors.New("coerce column")
	// ErrRule indicates a computed-column rule that cannot be evaluated.
	ErrRule = errors.New("computed rule")
	// ErrFilter indicates a row filter that cannot be evaluated.
	ErrFilter = errors.New("row filter")
)

// Stats summarizes what one table transform did to the data.
type Stats struct {
	Table        string
	RowsIn       int
	RowsOut      int
	RowsFiltered int
	// AddedNull lists nullable targets whose source was absent and came
	// out as typed nulls.
	AddedNull []string
	// DroppedSource lists bronze columns no mapping entry consumed.
	DroppedSource []string
	// CastFailures counts cells per target column that failed coercion.
	CastFailures map[string]int
}

func (s *Stats) countCastFailure(col string) {
	if s.CastFailures == nil {
		s.CastFailures = make(map[string]int)
	}

	s.CastFailures[col]++
}

// Transformer turns bronze frames into silver frames: mapped, typed,
// computed and filtered per the tenant's declarations.
type Transformer struct {
	tenant *config.TenantContext
	logger *slog.Logger
}

// New returns a transformer for tenant.
func New(tenant *config.TenantContext, logger *slog.Logger) *Transformer {
	return &Transformer{
		tenant: tenant,
		logger: logger,
	}
}

// Table transforms one bronze frame for the named destination table. The
// mapping declares target order; computed columns append after the mapped
// set, and row filters run last so they can reference rule targets.
func (t *Transformer) Table(ctx context.Context, table string, src *frame.Frame) (*frame.Frame, *Stats, error) {
	mapping, ok := t.tenant.Mapping(table)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoMapping, table)
	}

	stats := &Stats{
		Table:  table,
		RowsIn: src.NumRows(),
	}

	out, err := t.applyMapping(src, mapping, stats)
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: %w", table, err)
	}

	for _, rule := range t.tenant.TableRules(table) {
		err = applyRule(out, rule)
		if err != nil {
			return nil, nil, fmt.Errorf("table %s: %w", table, err)
		}
	}

	out, filtered, err := applyFilters(out, t.tenant.Filters(table))
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: %w", table, err)
	}

	stats.RowsFiltered = filtered
	stats.RowsOut = out.NumRows()

	t.logger.InfoContext(ctx, "transformed table",
		slog.String("table", table),
		slog.Int("rows_in", stats.RowsIn),
		slog.Int("rows_out", stats.RowsOut),
		slog.Int("rows_filtered", stats.RowsFiltered),
		slog.Int("cast_failures", totalFailures(stats.CastFailures)),
	)

	return out, stats, nil
}

// applyMapping builds the mapped, typed frame in declared target order.
// Absent nullable sources become typed null columns; absent non-nullable
// sources abort the table.
func (t *Transformer) applyMapping(src *frame.Frame, mapping schema.Mapping, stats *Stats) (*frame.Frame, error) {
	rows := src.NumRows()
	out := frame.New()
	consumed := make(map[string]bool, len(mapping.Columns))

	for _, entry := range mapping.Columns {
		col, ok := src.Column(entry.Source)
		if !ok {
			if !entry.Nullable {
				return nil, fmt.Errorf("%w: %s (target %s)",
					ErrMissingSource, entry.Source, entry.Target)
			}

			stats.AddedNull = append(stats.AddedNull, entry.Target)

			err := out.AddColumn(frame.NewNullColumn(entry.Target, entry.Type.FrameKind(), rows))
			if err != nil {
				return nil, err
			}

			continue
		}

		consumed[entry.Source] = true

		typed, err := coerceColumn(col, entry, stats)
		if err != nil {
			return nil, err
		}

		err = out.AddColumn(typed)
		if err != nil {
			return nil, err
		}
	}

	for _, name := range src.Names() {
		if !consumed[name] {
			stats.DroppedSource = append(stats.DroppedSource, name)
		}
	}

	return out, nil
}

func totalFailures(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}

	return n
}
