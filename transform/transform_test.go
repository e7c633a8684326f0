package transform_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/frame"
	"go.datawiz.dev/etl/schema"
	"go.datawiz.dev/etl/transform"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTenant(t *testing.T, mapping schema.Mapping, rules []schema.Rule, filters []schema.Filter) *config.TenantContext {
	t.Helper()

	tenant := config.NewStaticContext("1b671a64-40d5-491e-99b0-da01ff1f3341", "acme", nil, nil)
	tenant.Mappings[mapping.Table] = mapping
	tenant.Rules[mapping.Table] = rules
	tenant.Doc.BusinessRules.Filters = map[string][]schema.Filter{
		mapping.Table: filters,
	}

	return tenant
}

func stringColumn(name string, values ...string) *frame.Column {
	c := frame.NewColumn(name, frame.String)
	for _, v := range values {
		c.AppendString(v)
	}

	return c
}

func newBronze(t *testing.T, cols ...*frame.Column) *frame.Frame {
	t.Helper()

	f := frame.New()
	for _, c := range cols {
		require.NoError(t, f.AddColumn(c))
	}

	return f
}

func TestTableMapsAndCoerces(t *testing.T) {
	t.Parallel()

	mapping := schema.Mapping{
		Table: "dim_customer",
		Columns: []schema.MappingEntry{
			{Source: "CustomerNo", Target: "customer_id", Type: schema.TypeBigint, OnError: schema.CastNull},
			{Source: "Name", Target: "customer_name", Type: schema.TypeVarchar, Clean: []string{"trim"}, OnError: schema.CastNull},
			{Source: "Discount", Target: "discount", Type: schema.TypeDouble, Precision: ptr(2), OnError: schema.CastNull},
			{Source: "Missing", Target: "segment", Type: schema.TypeVarchar, Nullable: true, OnError: schema.CastNull},
		},
	}

	tenant := newTenant(t, mapping, nil, nil)
	bronze := newBronze(t,
		stringColumn("CustomerNo", "1001", "oops", "1003"),
		stringColumn("Name", "  Alpha GmbH ", "Beta", "Gamma"),
		stringColumn("Discount", "0.125", "1,5", ""),
		stringColumn("Unmapped", "x", "y", "z"),
	)

	silver, stats, err := transform.New(tenant, discardLogger()).Table(t.Context(), "dim_customer", bronze)
	require.NoError(t, err)

	assert.Equal(t, []string{"customer_id", "customer_name", "discount", "segment"}, silver.Names())

	id, _ := silver.Column("customer_id")
	assert.Equal(t, frame.Int, id.Kind())
	assert.Equal(t, int64(1001), id.IntAt(0))
	assert.True(t, id.IsNull(1))

	name, _ := silver.Column("customer_name")
	assert.Equal(t, "Alpha GmbH", name.StringAt(0))

	discount, _ := silver.Column("discount")
	assert.InDelta(t, 0.13, discount.FloatAt(0), 1e-9)
	// Decimal commas normalize before parsing.
	assert.InDelta(t, 1.5, discount.FloatAt(1), 1e-9)
	assert.True(t, discount.IsNull(2))

	segment, _ := silver.Column("segment")
	assert.True(t, segment.IsNull(0))

	assert.Equal(t, 3, stats.RowsIn)
	assert.Equal(t, 3, stats.RowsOut)
	assert.Equal(t, 1, stats.CastFailures["customer_id"])
	assert.Equal(t, []string{"segment"}, stats.AddedNull)
	assert.Equal(t, []string{"Unmapped"}, stats.DroppedSource)
}

func TestTableMissingRequiredSource(t *testing.T) {
	t.Parallel()

	mapping := schema.Mapping{
		Table: "dim_customer",
		Columns: []schema.MappingEntry{
			{Source: "CustomerNo", Target: "customer_id", Type: schema.TypeBigint},
		},
	}

	tenant := newTenant(t, mapping, nil, nil)
	bronze := newBronze(t, stringColumn("Other", "1"))

	_, _, err := transform.New(tenant, discardLogger()).Table(t.Context(), "dim_customer", bronze)
	assert.ErrorIs(t, err, transform.ErrMissingSource)
}

func TestTableNoMapping(t *testing.T) {
	t.Parallel()

	tenant := newTenant(t, schema.Mapping{Table: "other"}, nil, nil)

	_, _, err := transform.New(tenant, discardLogger()).Table(t.Context(), "dim_customer", frame.New())
	assert.ErrorIs(t, err, transform.ErrNoMapping)
}

func TestCastPolicies(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		entry     schema.MappingEntry
		input     string
		wantNull  bool
		wantValue any
	}{
		"null policy": {
			entry:    schema.MappingEntry{Source: "V", Target: "v", Type: schema.TypeInt, OnError: schema.CastNull},
			input:    "abc",
			wantNull: true,
		},
		"zero policy": {
			entry:     schema.MappingEntry{Source: "V", Target: "v", Type: schema.TypeInt, OnError: schema.CastZero},
			input:     "abc",
			wantValue: int64(0),
		},
		"spreadsheet float integer": {
			entry:     schema.MappingEntry{Source: "V", Target: "v", Type: schema.TypeInt, OnError: schema.CastNull},
			input:     "123.0",
			wantValue: int64(123),
		},
		"boolean yes": {
			entry:     schema.MappingEntry{Source: "V", Target: "v", Type: schema.TypeBoolean, OnError: schema.CastNull},
			input:     "Yes",
			wantValue: true,
		},
		"default fills empty": {
			entry:     schema.MappingEntry{Source: "V", Target: "v", Type: schema.TypeInt, Default: ptrStr("42"), OnError: schema.CastNull},
			input:     "",
			wantValue: int64(42),
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mapping := schema.Mapping{Table: "t", Columns: []schema.MappingEntry{tc.entry}}
			tenant := newTenant(t, mapping, nil, nil)
			bronze := newBronze(t, stringColumn("V", tc.input))

			silver, _, err := transform.New(tenant, discardLogger()).Table(t.Context(), "t", bronze)
			require.NoError(t, err)

			col, ok := silver.Column("v")
			require.True(t, ok)

			if tc.wantNull {
				assert.True(t, col.IsNull(0))
				return
			}

			switch want := tc.wantValue.(type) {
			case int64:
				assert.Equal(t, want, col.IntAt(0))
			case bool:
				assert.Equal(t, want, col.BoolAt(0))
			case string:
				assert.Equal(t, want, col.StringAt(0))
			}
		})
	}
}

func TestDateCoercion(t *testing.T) {
	t.Parallel()

	mapping := schema.Mapping{
		Table: "t",
		Columns: []schema.MappingEntry{
			{Source: "D", Target: "d", Type: schema.TypeDate, OnError: schema.CastNull},
			{Source: "F", Target: "f", Type: schema.TypeDate, DateFormat: "02-Jan-2006", OnError: schema.CastNull},
		},
	}

	tenant := newTenant(t, mapping, nil, nil)
	bronze := newBronze(t,
		stringColumn("D", "2024-03-01", "01/02/2024", "garbage"),
		stringColumn("F", "05-Mar-2024", "2024-03-05", "x"),
	)

	silver, stats, err := transform.New(tenant, discardLogger()).Table(t.Context(), "t", bronze)
	require.NoError(t, err)

	d, _ := silver.Column("d")
	assert.Equal(t, "2024-03-01", d.TimeAt(0).Format("2006-01-02"))
	assert.Equal(t, "2024-01-02", d.TimeAt(1).Format("2006-01-02"))
	assert.True(t, d.IsNull(2))

	// A declared format disables the fallback layouts.
	f, _ := silver.Column("f")
	assert.Equal(t, "2024-03-05", f.TimeAt(0).Format("2006-01-02"))
	assert.True(t, f.IsNull(1))

	assert.Equal(t, 1, stats.CastFailures["d"])
	assert.Equal(t, 2, stats.CastFailures["f"])
}

func TestComputedConcatRendersNullSentinel(t *testing.T) {
	t.Parallel()

	mapping := schema.Mapping{
		Table: "t",
		Columns: []schema.MappingEntry{
			{Source: "A", Target: "a", Type: schema.TypeVarchar, OnError: schema.CastNull},
			{Source: "B", Target: "b", Type: schema.TypeBigint, OnError: schema.CastNull},
		},
	}
	rules := []schema.Rule{
		{
			Target: "composite_key",
			Kind:   schema.RuleConcat,
			Concat: &schema.ConcatParams{Columns: []string{"a", "b"}, Separator: "|"},
		},
	}

	tenant := newTenant(t, mapping, rules, nil)
	bronze := newBronze(t,
		stringColumn("A", "x", "y"),
		stringColumn("B", "1", ""),
	)

	silver, _, err := transform.New(tenant, discardLogger()).Table(t.Context(), "t", bronze)
	require.NoError(t, err)

	key, ok := silver.Column("composite_key")
	require.True(t, ok)
	assert.Equal(t, "x|1", key.StringAt(0))
	assert.Equal(t, "y|NULL", key.StringAt(1))
}

func TestComputedArithmetic(t *testing.T) {
	t.Parallel()

	mapping := schema.Mapping{
		Table: "t",
		Columns: []schema.MappingEntry{
			{Source: "Net", Target: "net", Type: schema.TypeDouble, OnError: schema.CastNull},
			{Source: "Qty", Target: "qty", Type: schema.TypeBigint, OnError: schema.CastNull},
		},
	}
	rules := []schema.Rule{
		{
			Target: "unit_price",
			Kind:   schema.RuleArithmetic,
			Arithmetic: &schema.Operand{
				Op:    "div",
				Left:  &schema.Operand{Column: "net"},
				Right: &schema.Operand{Column: "qty"},
			},
		},
	}

	tenant := newTenant(t, mapping, rules, nil)
	bronze := newBronze(t,
		stringColumn("Net", "10", "5", ""),
		stringColumn("Qty", "4", "0", "2"),
	)

	silver, _, err := transform.New(tenant, discardLogger()).Table(t.Context(), "t", bronze)
	require.NoError(t, err)

	price, ok := silver.Column("unit_price")
	require.True(t, ok)
	assert.InDelta(t, 2.5, price.FloatAt(0), 1e-9)
	// Division by zero and null inputs poison to null.
	assert.True(t, price.IsNull(1))
	assert.True(t, price.IsNull(2))
}

func TestComputedLookupAndChaining(t *testing.T) {
	t.Parallel()

	fallback := "UNKNOWN"
	mapping := schema.Mapping{
		Table: "t",
		Columns: []schema.MappingEntry{
			{Source: "Country", Target: "country", Type: schema.TypeVarchar, OnError: schema.CastNull},
		},
	}
	rules := []schema.Rule{
		{
			Target: "region_tag",
			Kind:   schema.RuleConcat,
			Concat: &schema.ConcatParams{Columns: []string{"region", "country"}, Separator: ":"},
		},
		{
			Target: "region",
			Kind:   schema.RuleLookup,
			Lookup: &schema.LookupParams{
				On:      "country",
				Table:   map[string]string{"DE": "EMEA", "US": "AMER"},
				Default: &fallback,
			},
		},
	}

	tenant := newTenant(t, mapping, rules, nil)
	// Load-time ordering runs the lookup before the concat that reads it.
	tenant.Rules["t"] = mustOrder(t, rules)

	bronze := newBronze(t, stringColumn("Country", "DE", "BR"))

	silver, _, err := transform.New(tenant, discardLogger()).Table(t.Context(), "t", bronze)
	require.NoError(t, err)

	tag, ok := silver.Column("region_tag")
	require.True(t, ok)
	assert.Equal(t, "EMEA:DE", tag.StringAt(0))
	assert.Equal(t, "UNKNOWN:BR", tag.StringAt(1))
}

func TestRowFilters(t *testing.T) {
	t.Parallel()

	mapping := schema.Mapping{
		Table: "t",
		Columns: []schema.MappingEntry{
			{Source: "Status", Target: "status", Type: schema.TypeVarchar, OnError: schema.CastNull},
			{Source: "Amount", Target: "amount", Type: schema.TypeDouble, OnError: schema.CastNull},
		},
	}
	filters := []schema.Filter{
		{Column: "status", Op: schema.FilterIn, Values: []string{"open", "closed"}},
		{Column: "amount", Op: schema.FilterGe, Value: "10"},
	}

	tenant := newTenant(t, mapping, nil, filters)
	bronze := newBronze(t,
		stringColumn("Status", "open", "void", "closed", "open"),
		stringColumn("Amount", "15", "99", "9.5", ""),
	)

	silver, stats, err := transform.New(tenant, discardLogger()).Table(t.Context(), "t", bronze)
	require.NoError(t, err)

	require.Equal(t, 1, silver.NumRows())

	status, _ := silver.Column("status")
	assert.Equal(t, "open", status.StringAt(0))
	assert.Equal(t, 3, stats.RowsFiltered)
}

func TestFilterUnknownColumn(t *testing.T) {
	t.Parallel()

	mapping := schema.Mapping{
		Table: "t",
		Columns: []schema.MappingEntry{
			{Source: "A", Target: "a", Type: schema.TypeVarchar, OnError: schema.CastNull},
		},
	}
	filters := []schema.Filter{{Column: "absent", Op: schema.FilterEq, Value: "x"}}

	tenant := newTenant(t, mapping, nil, filters)
	bronze := newBronze(t, stringColumn("A", "x"))

	_, _, err := transform.New(tenant, discardLogger()).Table(t.Context(), "t", bronze)
	assert.ErrorIs(t, err, transform.ErrFilter)
}

func mustOrder(t *testing.T, rules []schema.Rule) []schema.Rule {
	t.Helper()

	// Dependency ordering normally happens at rule load time; these two
	// just need swapping.
	return []schema.Rule{rules[1], rules[0]}
}

func ptr(v int) *int { return &v }

func ptrStr(v string) *string { return &v }
