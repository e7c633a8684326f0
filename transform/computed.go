package transform

import (
	"fmt"
	"strconv"
	"strings"

	"go.datawiz.dev/etl/frame"
	"go.datawiz.dev/etl/schema"
)

// concatNull is how a null input renders inside a concatenated value.
// Composite keys must be stable, so null cannot collapse to empty string.
const concatNull = "NULL"

// applyRule evaluates one computed-column rule and appends the result column
// to f. Rules run in the dependency order established at load time, so an
// input that is itself a rule target already exists.
func applyRule(f *frame.Frame, rule schema.Rule) error {
	inputs := make(map[string]*frame.Column, 2)

	for _, name := range rule.Inputs() {
		col, ok := f.Column(name)
		if !ok {
			return fmt.Errorf("%w: rule %s reads unknown column %s",
				ErrRule, rule.Target, name)
		}

		inputs[name] = col
	}

	rows := f.NumRows()

	var (
		out *frame.Column
		err error
	)

	switch rule.Kind {
	case schema.RuleConcat:
		out = evalConcat(rule, inputs, rows)
	case schema.RuleArithmetic:
		out, err = evalArithmetic(rule, inputs, rows)
	case schema.RuleLookup:
		out = evalLookup(rule, inputs, rows)
	case schema.RuleTransform:
		out, err = evalTransform(rule, inputs, rows)
	default:
		return fmt.Errorf("%w: rule %s has unknown kind %q", ErrRule, rule.Target, rule.Kind)
	}

	if err != nil {
		return err
	}

	return f.AddColumn(out)
}

func evalConcat(rule schema.Rule, inputs map[string]*frame.Column, rows int) *frame.Column {
	out := frame.NewColumn(rule.Target, frame.String)
	parts := make([]string, len(rule.Concat.Columns))

	for i := 0; i < rows; i++ {
		for j, name := range rule.Concat.Columns {
			col := inputs[name]
			if col.IsNull(i) {
				parts[j] = concatNull
			} else {
				parts[j] = renderCell(col, i)
			}
		}

		out.AppendString(strings.Join(parts, rule.Concat.Separator))
	}

	return out
}

func evalArithmetic(rule schema.Rule, inputs map[string]*frame.Column, rows int) (*frame.Column, error) {
	kind := frame.Float
	if rule.Type != "" {
		kind = rule.Type.FrameKind()
	}

	if kind != frame.Float && kind != frame.Int {
		return nil, fmt.Errorf("%w: rule %s: arithmetic target must be numeric",
			ErrRule, rule.Target)
	}

	out := frame.NewColumn(rule.Target, kind)

	for i := 0; i < rows; i++ {
		v, ok := evalOperand(rule.Arithmetic, inputs, i)
		if !ok {
			out.AppendNull()
			continue
		}

		if kind == frame.Int {
			out.AppendInt(int64(v))
		} else {
			out.AppendFloat(v)
		}
	}

	return out, nil
}

// evalOperand computes one tree node for row i. A null input or a division
// by zero poisons the whole expression to null.
func evalOperand(op *schema.Operand, inputs map[string]*frame.Column, i int) (float64, bool) {
	switch {
	case op == nil:
		return 0, false
	case op.Const != nil:
		return *op.Const, true
	case op.Column != "":
		return numericAt(inputs[op.Column], i)
	}

	left, ok := evalOperand(op.Left, inputs, i)
	if !ok {
		return 0, false
	}

	right, ok := evalOperand(op.Right, inputs, i)
	if !ok {
		return 0, false
	}

	switch op.Op {
	case "add":
		return left + right, true
	case "sub":
		return left - right, true
	case "mul":
		return left * right, true
	case "div":
		if right == 0 {
			return 0, false
		}

		return left / right, true
	default:
		return 0, false
	}
}

func numericAt(col *frame.Column, i int) (float64, bool) {
	if col == nil || col.IsNull(i) {
		return 0, false
	}

	switch col.Kind() {
	case frame.Int:
		return float64(col.IntAt(i)), true
	case frame.Float:
		return col.FloatAt(i), true
	case frame.Bool:
		if col.BoolAt(i) {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}

func evalLookup(rule schema.Rule, inputs map[string]*frame.Column, rows int) *frame.Column {
	out := frame.NewColumn(rule.Target, frame.String)
	src := inputs[rule.Lookup.On]

	for i := 0; i < rows; i++ {
		if src.IsNull(i) {
			appendLookupMiss(out, rule.Lookup)
			continue
		}

		mapped, ok := rule.Lookup.Table[renderCell(src, i)]
		if !ok {
			appendLookupMiss(out, rule.Lookup)
			continue
		}

		out.AppendString(mapped)
	}

	return out
}

func appendLookupMiss(out *frame.Column, params *schema.LookupParams) {
	if params.Default != nil {
		out.AppendString(*params.Default)
	} else {
		out.AppendNull()
	}
}

// transformFuncs are the named single-column functions a transformation rule
// may apply. Each receives the rendered cell and returns the new value.
var transformFuncs = map[string]func(string) string{
	"uppercase": strings.ToUpper,
	"lowercase": strings.ToLower,
	"trim":      strings.TrimSpace,
	"length": func(v string) string {
		return strconv.Itoa(len(v))
	},
	"year": func(v string) string {
		if len(v) >= 4 {
			return v[:4]
		}

		return v
	},
	"first_char": func(v string) string {
		if v == "" {
			return v
		}

		return v[:1]
	},
}

func evalTransform(rule schema.Rule, inputs map[string]*frame.Column, rows int) (*frame.Column, error) {
	fn, ok := transformFuncs[rule.Transform.Function]
	if !ok {
		return nil, fmt.Errorf("%w: rule %s: unknown function %q",
			ErrRule, rule.Target, rule.Transform.Function)
	}

	out := frame.NewColumn(rule.Target, frame.String)
	src := inputs[rule.Transform.Source]

	for i := 0; i < rows; i++ {
		if src.IsNull(i) {
			out.AppendNull()
			continue
		}

		out.AppendString(fn(renderCell(src, i)))
	}

	return out, nil
}

// renderCell formats a non-null cell for string contexts. Numeric values use
// their shortest round-trip form; temporal values use ISO layouts.
func renderCell(col *frame.Column, i int) string {
	switch col.Kind() {
	case frame.String:
		return col.StringAt(i)
	case frame.Int:
		return strconv.FormatInt(col.IntAt(i), 10)
	case frame.Float:
		return strconv.FormatFloat(col.FloatAt(i), 'f', -1, 64)
	case frame.Bool:
		if col.BoolAt(i) {
			return "1"
		}

		return "0"
	case frame.Date:
		return col.TimeAt(i).Format("2006-01-02")
	case frame.Datetime:
		return col.TimeAt(i).Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}
