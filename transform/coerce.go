package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.datawiz.dev/etl/frame"
	"go.datawiz.dev/etl/schema"
)

// dateLayouts are tried in order when a mapping declares no date_format.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02.01.2006",
	"01/02/2006",
	"20060102",
}

// truthy values accepted when coercing to boolean, lowercased.
var truthy = map[string]bool{
	"1": true, "true": true, "yes": true, "y": true, "t": true,
	"0": false, "false": false, "no": false, "n": false, "f": false,
}

// clean applies the entry's cleaning steps to a raw cell.
func clean(v string, steps []string) string {
	for _, step := range steps {
		switch step {
		case "trim":
			v = strings.TrimSpace(v)
		case "uppercase":
			v = strings.ToUpper(v)
		case "lowercase":
			v = strings.ToLower(v)
		case "collapse_spaces":
			v = strings.Join(strings.Fields(v), " ")
		case "strip_leading_zeros":
			trimmed := strings.TrimLeft(v, "0")
			if trimmed == "" && v != "" {
				trimmed = "0"
			}

			v = trimmed
		}
	}

	return v
}

// coerceColumn converts an all-string source column to the entry's semantic
// type. Failed casts follow the entry's on_error policy and are counted in
// stats; empty strings become null for every non-varchar type.
func coerceColumn(src *frame.Column, entry schema.MappingEntry, stats *Stats) (*frame.Column, error) {
	kind := entry.Type.FrameKind()

	if src.Kind() != frame.String {
		// Parquet passthrough sources may already be typed.
		if src.Kind() == kind {
			return src.WithName(entry.Target), nil
		}

		return nil, fmt.Errorf("%w: column %s is %v, cannot coerce to %s",
			ErrCoerce, entry.Source, src.Kind(), entry.Type)
	}

	out := frame.NewColumn(entry.Target, kind)

	for i := 0; i < src.Len(); i++ {
		if src.IsNull(i) {
			appendDefaultOrNull(out, entry)
			continue
		}

		raw := clean(src.StringAt(i), entry.Clean)

		if raw == "" && kind != frame.String {
			appendDefaultOrNull(out, entry)
			continue
		}

		ok := appendCoerced(out, raw, entry)
		if !ok {
			stats.countCastFailure(entry.Target)

			switch entry.OnError {
			case schema.CastZero:
				appendZeroValue(out, kind)
			case schema.CastKeep:
				// Only meaningful for varchar targets; typed targets
				// cannot carry the original string, so null it is.
				if kind == frame.String {
					out.AppendString(raw)
				} else {
					out.AppendNull()
				}
			default:
				out.AppendNull()
			}
		}
	}

	return out, nil
}

func appendDefaultOrNull(out *frame.Column, entry schema.MappingEntry) {
	if entry.Default != nil {
		if appendCoerced(out, *entry.Default, entry) {
			return
		}
	}

	out.AppendNull()
}

// appendCoerced parses raw into the column's kind. Reports false when the
// value does not parse.
func appendCoerced(out *frame.Column, raw string, entry schema.MappingEntry) bool {
	switch out.Kind() {
	case frame.String:
		out.AppendString(raw)

		return true
	case frame.Int:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			// Spreadsheet exports render integers as "123.0".
			f, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if ferr != nil || f != math.Trunc(f) {
				return false
			}

			n = int64(f)
		}

		out.AppendInt(n)

		return true
	case frame.Float:
		raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")

		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false
		}

		if entry.Precision != nil {
			shift := math.Pow10(*entry.Precision)
			f = math.Round(f*shift) / shift
		}

		out.AppendFloat(f)

		return true
	case frame.Bool:
		b, ok := truthy[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			return false
		}

		out.AppendBool(b)

		return true
	case frame.Date, frame.Datetime:
		t, ok := parseTime(strings.TrimSpace(raw), entry.DateFormat)
		if !ok {
			return false
		}

		out.AppendTime(t)

		return true
	default:
		return false
	}
}

func parseTime(raw, layout string) (time.Time, bool) {
	if layout != "" {
		t, err := time.Parse(layout, raw)

		return t, err == nil
	}

	for _, l := range dateLayouts {
		t, err := time.Parse(l, raw)
		if err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func appendZeroValue(out *frame.Column, kind frame.Kind) {
	switch kind {
	case frame.Int:
		out.AppendInt(0)
	case frame.Float:
		out.AppendFloat(0)
	case frame.Bool:
		out.AppendBool(false)
	case frame.String:
		out.AppendString("")
	default:
		out.AppendNull()
	}
}
