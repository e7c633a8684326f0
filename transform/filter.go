package transform

import (
	"fmt"
	"strconv"

	"go.datawiz.dev/etl/frame"
	"go.datawiz.dev/etl/schema"
)

// applyFilters evaluates the declared row filters and returns the surviving
// frame plus the number of rows removed. A null cell fails every predicate.
func applyFilters(f *frame.Frame, filters []schema.Filter) (*frame.Frame, int, error) {
	if len(filters) == 0 {
		return f, 0, nil
	}

	rows := f.NumRows()
	keep := make([]bool, rows)

	for i := range keep {
		keep[i] = true
	}

	for _, filter := range filters {
		col, ok := f.Column(filter.Column)
		if !ok {
			return nil, 0, fmt.Errorf("%w: filter references unknown column %s",
				ErrFilter, filter.Column)
		}

		for i := 0; i < rows; i++ {
			if !keep[i] {
				continue
			}

			ok, err := matchFilter(col, i, filter)
			if err != nil {
				return nil, 0, err
			}

			keep[i] = ok
		}
	}

	removed := 0

	for _, k := range keep {
		if !k {
			removed++
		}
	}

	if removed == 0 {
		return f, 0, nil
	}

	filtered, err := f.Filter(keep)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrFilter, err)
	}

	return filtered, removed, nil
}

func matchFilter(col *frame.Column, i int, filter schema.Filter) (bool, error) {
	if col.IsNull(i) {
		return false, nil
	}

	cell := renderCell(col, i)

	switch filter.Op {
	case schema.FilterIn:
		for _, v := range filter.Values {
			if cell == v {
				return true, nil
			}
		}

		return false, nil
	case schema.FilterEq:
		return cell == filter.Value, nil
	case schema.FilterNe:
		return cell != filter.Value, nil
	case schema.FilterGe, schema.FilterLe:
		cmp, err := compareCell(col, i, cell, filter.Value)
		if err != nil {
			return false, fmt.Errorf("%w: column %s: %w", ErrFilter, filter.Column, err)
		}

		if filter.Op == schema.FilterGe {
			return cmp >= 0, nil
		}

		return cmp <= 0, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrFilter, filter.Op)
	}
}

// compareCell orders the cell against the filter operand. Numeric columns
// compare numerically; everything else compares lexically, which is correct
// for the ISO layouts temporal cells render to.
func compareCell(col *frame.Column, i int, cell, operand string) (int, error) {
	switch col.Kind() {
	case frame.Int, frame.Float:
		bound, err := strconv.ParseFloat(operand, 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric bound %q", operand)
		}

		var v float64
		if col.Kind() == frame.Int {
			v = float64(col.IntAt(i))
		} else {
			v = col.FloatAt(i)
		}

		switch {
		case v < bound:
			return -1, nil
		case v > bound:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		switch {
		case cell < operand:
			return -1, nil
		case cell > operand:
			return 1, nil
		default:
			return 0, nil
		}
	}
}
