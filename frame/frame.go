package frame

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by frame operations.
var (
	ErrColumnExists   = errors.New("column exists")
	ErrColumnMissing  = errors.New("column missing")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrKindMismatch   = errors.New("kind mismatch")
)

// Kind is the semantic type of a column's values.
type Kind uint8

const (
	// String holds UTF-8 text.
	String Kind = iota
	// Int holds 64-bit signed integers.
	Int
	// Float holds 64-bit floats.
	Float
	// Bool holds booleans, serialized as 1/0.
	Bool
	// Date holds calendar dates, serialized as 2006-01-02.
	Date
	// Datetime holds timestamps, serialized as 2006-01-02 15:04:05.
	Datetime
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Date:
		return "date"
	case Datetime:
		return "datetime"
	default:
		return "string"
	}
}

// Column is a named, typed, nullable vector of values.
//
// A Column stores its values in one dense slice per kind plus a validity
// mask. Append* methods grow the column; accessors read it. Columns are
// treated as immutable once added to a [Frame]; stages derive new columns
// instead of mutating shared ones.
type Column struct {
	name   string
	kind   Kind
	strs   []string
	ints   []int64
	floats []float64
	bools  []bool
	times  []time.Time
	valid  []bool
}

// NewColumn creates an empty column with the given name and kind.
func NewColumn(name string, kind Kind) *Column {
	return &Column{name: name, kind: kind}
}

// NewNullColumn creates a column of n typed nulls.
func NewNullColumn(name string, kind Kind, n int) *Column {
	c := NewColumn(name, kind)
	for range n {
		c.AppendNull()
	}

	return c
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the column kind.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of values including nulls.
func (c *Column) Len() int { return len(c.valid) }

// IsNull reports whether the value at row i is null.
func (c *Column) IsNull(i int) bool { return !c.valid[i] }

// WithName returns a copy of the column under a new name. The value storage
// is shared with the receiver.
func (c *Column) WithName(name string) *Column {
	cp := *c
	cp.name = name

	return &cp
}

// AppendNull appends a null value.
func (c *Column) AppendNull() {
	c.valid = append(c.valid, false)
	c.appendZero()
}

func (c *Column) appendZero() {
	switch c.kind {
	case Int:
		c.ints = append(c.ints, 0)
	case Float:
		c.floats = append(c.floats, 0)
	case Bool:
		c.bools = append(c.bools, false)
	case Date, Datetime:
		c.times = append(c.times, time.Time{})
	default:
		c.strs = append(c.strs, "")
	}
}

// AppendString appends a string value. The column kind must be [String].
func (c *Column) AppendString(v string) {
	c.valid = append(c.valid, true)
	c.strs = append(c.strs, v)
}

// AppendInt appends an integer value. The column kind must be [Int].
func (c *Column) AppendInt(v int64) {
	c.valid = append(c.valid, true)
	c.ints = append(c.ints, v)
}

// AppendFloat appends a float value. The column kind must be [Float].
func (c *Column) AppendFloat(v float64) {
	c.valid = append(c.valid, true)
	c.floats = append(c.floats, v)
}

// AppendBool appends a boolean value. The column kind must be [Bool].
func (c *Column) AppendBool(v bool) {
	c.valid = append(c.valid, true)
	c.bools = append(c.bools, v)
}

// AppendTime appends a date or datetime value. The column kind must be
// [Date] or [Datetime].
func (c *Column) AppendTime(v time.Time) {
	c.valid = append(c.valid, true)
	c.times = append(c.times, v)
}

// StringAt returns the string value at row i. Only valid for [String]
// columns and non-null rows.
func (c *Column) StringAt(i int) string { return c.strs[i] }

// IntAt returns the integer value at row i.
func (c *Column) IntAt(i int) int64 { return c.ints[i] }

// FloatAt returns the float value at row i.
func (c *Column) FloatAt(i int) float64 { return c.floats[i] }

// BoolAt returns the boolean value at row i.
func (c *Column) BoolAt(i int) bool { return c.bools[i] }

// TimeAt returns the time value at row i.
func (c *Column) TimeAt(i int) time.Time { return c.times[i] }

// Frame is an ordered set of equally sized named columns.
//
// Frames are the unit of exchange between pipeline stages. Each stage
// returns a new Frame; column storage may be shared between input and
// output frames, so callers must not mutate columns in place.
type Frame struct {
	cols   []*Column
	byName map[string]int
}

// New creates an empty frame.
func New() *Frame {
	return &Frame{byName: make(map[string]int)}
}

// AddColumn appends a column to the frame. The column must have a unique
// name and match the row count of any existing columns.
func (f *Frame) AddColumn(c *Column) error {
	if _, ok := f.byName[c.name]; ok {
		return fmt.Errorf("%w: %q", ErrColumnExists, c.name)
	}

	if len(f.cols) > 0 && c.Len() != f.NumRows() {
		return fmt.Errorf("%w: column %q has %d rows, frame has %d",
			ErrLengthMismatch, c.name, c.Len(), f.NumRows())
	}

	f.byName[c.name] = len(f.cols)
	f.cols = append(f.cols, c)

	return nil
}

// Column returns the column with the given name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.byName[name]
	if !ok {
		return nil, false
	}

	return f.cols[i], true
}

// ColumnAt returns the column at position i.
func (f *Frame) ColumnAt(i int) *Column { return f.cols[i] }

// Names returns the column names in frame order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.name
	}

	return names
}

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.cols) }

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}

	return f.cols[0].Len()
}

// Project returns a new frame containing exactly the named columns, in the
// given order. Column storage is shared with the receiver.
func (f *Frame) Project(names []string) (*Frame, error) {
	out := New()

	for _, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnMissing, name)
		}

		err := out.AddColumn(c)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Filter returns a new frame containing only the rows where keep is true.
// len(keep) must equal the frame's row count.
func (f *Frame) Filter(keep []bool) (*Frame, error) {
	if len(keep) != f.NumRows() {
		return nil, fmt.Errorf("%w: mask has %d entries, frame has %d rows",
			ErrLengthMismatch, len(keep), f.NumRows())
	}

	out := New()

	for _, c := range f.cols {
		nc := NewColumn(c.name, c.kind)
		for i := range keep {
			if !keep[i] {
				continue
			}

			appendValue(nc, c, i)
		}

		err := out.AddColumn(nc)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Concat concatenates frames row-wise. All frames must share the same
// column names and kinds; column order follows the first frame.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return New(), nil
	}

	out := New()

	for _, c := range frames[0].cols {
		nc := NewColumn(c.name, c.kind)

		for _, f := range frames {
			src, ok := f.Column(c.name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrColumnMissing, c.name)
			}

			if src.kind != c.kind {
				return nil, fmt.Errorf("%w: column %q is %s and %s",
					ErrKindMismatch, c.name, c.kind, src.kind)
			}

			for i := range src.Len() {
				appendValue(nc, src, i)
			}
		}

		err := out.AddColumn(nc)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// appendValue copies the value at src row i onto dst. The columns must share
// a kind.
func appendValue(dst, src *Column, i int) {
	if src.IsNull(i) {
		dst.AppendNull()
		return
	}

	switch src.kind {
	case Int:
		dst.AppendInt(src.ints[i])
	case Float:
		dst.AppendFloat(src.floats[i])
	case Bool:
		dst.AppendBool(src.bools[i])
	case Date, Datetime:
		dst.AppendTime(src.times[i])
	default:
		dst.AppendString(src.strs[i])
	}
}
