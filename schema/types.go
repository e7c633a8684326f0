package schema

import (
	"errors"

	"go.datawiz.dev/etl/frame"
)

// Sentinel errors returned by schema loading.
var (
	ErrParse       = errors.New("parse schema")
	ErrInvalid     = errors.New("invalid schema")
	ErrRuleCycle   = errors.New("computed rule cycle")
	ErrUnknownType = errors.New("unknown semantic type")
)

// ObjectKind distinguishes the destination object a schema file declares.
type ObjectKind string

const (
	// KindTable is a plain table.
	KindTable ObjectKind = "TABLE"
	// KindView is a logical view.
	KindView ObjectKind = "VIEW"
	// KindMatView is a materialized view.
	KindMatView ObjectKind = "MATVIEW"
)

// Table declares one destination table, view, or materialized view.
//
// The ordinal orders creation and (reversed) drop; it never influences
// runtime loads.
type Table struct {
	Name     string            `yaml:"name"`
	Kind     ObjectKind        `yaml:"kind"`
	DDL      string            `yaml:"ddl"`
	Comments map[string]string `yaml:"comments"`
	Ordinal  int               `yaml:"-"`
}

// SemanticType is the declared type of a target column.
type SemanticType string

// Semantic types understood by the transformer and loader.
const (
	TypeVarchar  SemanticType = "varchar"
	TypeInt      SemanticType = "int"
	TypeBigint   SemanticType = "bigint"
	TypeDouble   SemanticType = "double"
	TypeDecimal  SemanticType = "decimal"
	TypeDate     SemanticType = "date"
	TypeDatetime SemanticType = "datetime"
	TypeBoolean  SemanticType = "boolean"
)

// FrameKind maps the semantic type onto the frame column kind that carries
// it between stages.
func (t SemanticType) FrameKind() frame.Kind {
	switch t {
	case TypeInt, TypeBigint:
		return frame.Int
	case TypeDouble, TypeDecimal:
		return frame.Float
	case TypeBoolean:
		return frame.Bool
	case TypeDate:
		return frame.Date
	case TypeDatetime:
		return frame.Datetime
	default:
		return frame.String
	}
}

// CastPolicy decides what happens to a value that fails type coercion.
type CastPolicy string

const (
	// CastNull replaces failed casts with null. This is the default.
	CastNull CastPolicy = "null"
	// CastZero replaces failed casts with the type's zero value.
	CastZero CastPolicy = "zero"
	// CastKeep keeps the original string and flags the column.
	CastKeep CastPolicy = "keep"
)

// MappingEntry maps one source column onto one target column.
type MappingEntry struct {
	Source     string       `yaml:"source"`
	Target     string       `yaml:"target"`
	Type       SemanticType `yaml:"type"`
	Nullable   bool         `yaml:"nullable"`
	Default    *string      `yaml:"default"`
	Clean      []string     `yaml:"clean"`
	Precision  *int         `yaml:"precision"`
	DateFormat string       `yaml:"date_format"`
	OnError    CastPolicy   `yaml:"on_error"`
}

// Mapping is the ordered column mapping for one table.
type Mapping struct {
	Table   string         `yaml:"table"`
	Columns []MappingEntry `yaml:"columns"`
}

// Entry returns the mapping entry for the given target column.
func (m Mapping) Entry(target string) (MappingEntry, bool) {
	for _, e := range m.Columns {
		if e.Target == target {
			return e, true
		}
	}

	return MappingEntry{}, false
}

// RuleKind is the computed-column rule variant.
type RuleKind string

const (
	// RuleConcat joins source columns with a separator.
	RuleConcat RuleKind = "concatenation"
	// RuleArithmetic evaluates an operand tree over columns.
	RuleArithmetic RuleKind = "arithmetic"
	// RuleLookup joins against a small in-memory table.
	RuleLookup RuleKind = "lookup"
	// RuleTransform applies a named function to a source column.
	RuleTransform RuleKind = "transformation"
)

// ConcatParams configures a [RuleConcat] rule. Null inputs render as the
// literal string NULL inside the concatenated value, keeping composite keys
// stable across runs.
type ConcatParams struct {
	Columns   []string `yaml:"columns"`
	Separator string   `yaml:"separator"`
}

// Operand is one node of an arithmetic expression tree. Exactly one of
// Column, Const, or Op must be set; Op nodes carry Left and Right.
type Operand struct {
	Column string   `yaml:"column"`
	Const  *float64 `yaml:"const"`
	Op     string   `yaml:"op"`
	Left   *Operand `yaml:"left"`
	Right  *Operand `yaml:"right"`
}

// columns appends the column names referenced by the operand tree.
func (o *Operand) columns(out []string) []string {
	if o == nil {
		return out
	}

	if o.Column != "" {
		out = append(out, o.Column)
	}

	out = o.Left.columns(out)

	return o.Right.columns(out)
}

// LookupParams configures a [RuleLookup] rule.
type LookupParams struct {
	On      string            `yaml:"on"`
	Table   map[string]string `yaml:"table"`
	Default *string           `yaml:"default"`
}

// TransformParams configures a [RuleTransform] rule.
type TransformParams struct {
	Source   string `yaml:"source"`
	Function string `yaml:"function"`
}

// Rule is one computed-column rule. The kind selects which parameter struct
// applies.
type Rule struct {
	Target     string           `yaml:"target"`
	Kind       RuleKind         `yaml:"kind"`
	Type       SemanticType     `yaml:"type"`
	Primary    bool             `yaml:"primary"`
	Concat     *ConcatParams    `yaml:"concat"`
	Arithmetic *Operand         `yaml:"arithmetic"`
	Lookup     *LookupParams    `yaml:"lookup"`
	Transform  *TransformParams `yaml:"transform"`
}

// Inputs returns the column names the rule reads.
func (r Rule) Inputs() []string {
	switch r.Kind {
	case RuleConcat:
		if r.Concat != nil {
			return r.Concat.Columns
		}
	case RuleArithmetic:
		return r.Arithmetic.columns(nil)
	case RuleLookup:
		if r.Lookup != nil {
			return []string{r.Lookup.On}
		}
	case RuleTransform:
		if r.Transform != nil {
			return []string{r.Transform.Source}
		}
	}

	return nil
}

// FilterOp is a row-filter comparison operator.
type FilterOp string

// Supported filter operators.
const (
	FilterIn FilterOp = "in"
	FilterEq FilterOp = "eq"
	FilterNe FilterOp = "ne"
	FilterGe FilterOp = "ge"
	FilterLe FilterOp = "le"
)

// Filter is a declarative row-level predicate. Filters run after computed
// columns so they may reference rule targets.
type Filter struct {
	Column string   `yaml:"column"`
	Op     FilterOp `yaml:"op"`
	Values []string `yaml:"values"`
	Value  string   `yaml:"value"`
}
