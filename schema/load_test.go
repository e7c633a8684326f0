package schema_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.datawiz.dev/etl/schema"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadTablesOrdersByPrefix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "20_fact_sales.yaml"), `
name: fact_sales
ddl: CREATE TABLE IF NOT EXISTS fact_sales (id BIGINT)
`)
	writeFile(t, filepath.Join(dir, "10_dim_customer.yaml"), `
name: dim_customer
ddl: CREATE TABLE IF NOT EXISTS dim_customer (id BIGINT)
`)
	writeFile(t, filepath.Join(dir, "unprefixed.yaml"), `
name: dim_misc
ddl: CREATE TABLE IF NOT EXISTS dim_misc (id BIGINT)
`)

	tables, err := schema.LoadTables(dir, schema.KindTable)
	require.NoError(t, err)
	require.Len(t, tables, 3)

	assert.Equal(t, "dim_customer", tables[0].Name)
	assert.Equal(t, "fact_sales", tables[1].Name)
	// Unprefixed files sort last.
	assert.Equal(t, "dim_misc", tables[2].Name)
	assert.Equal(t, schema.KindTable, tables[0].Kind)
}

func TestLoadTablesMissingDir(t *testing.T) {
	t.Parallel()

	tables, err := schema.LoadTables(filepath.Join(t.TempDir(), "absent"), schema.KindView)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestLoadTablesRejectsMissingName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "10_bad.yaml"), "ddl: CREATE TABLE x (id INT)\n")

	_, err := schema.LoadTables(dir, schema.KindTable)
	assert.ErrorIs(t, err, schema.ErrInvalid)
}

func TestLoadMappingsDefaultsOnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dim_customer.yaml"), `
table: dim_customer
columns:
  - source: CustomerNo
    target: customer_id
    type: bigint
  - source: Name
    target: customer_name
    type: varchar
    on_error: keep
`)

	mappings, err := schema.LoadMappings(dir)
	require.NoError(t, err)
	require.Contains(t, mappings, "dim_customer")

	m := mappings["dim_customer"]
	require.Len(t, m.Columns, 2)
	assert.Equal(t, schema.CastNull, m.Columns[0].OnError)
	assert.Equal(t, schema.CastKeep, m.Columns[1].OnError)

	entry, ok := m.Entry("customer_id")
	require.True(t, ok)
	assert.Equal(t, "CustomerNo", entry.Source)
}

func TestLoadRulesOrdersByDependency(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "computed_columns.yaml")
	writeFile(t, path, `
dim_customer:
  - target: region_key
    kind: concatenation
    concat:
      columns: [country_code, branch_code]
      separator: "-"
  - target: branch_code
    kind: transformation
    transform:
      source: branch_name
      function: uppercase
`)

	rules, err := schema.LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules["dim_customer"], 2)

	// branch_code must evaluate before the concat that reads it.
	assert.Equal(t, "branch_code", rules["dim_customer"][0].Target)
	assert.Equal(t, "region_key", rules["dim_customer"][1].Target)
}

func TestLoadRulesRejectsCycle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "computed_columns.yaml")
	writeFile(t, path, `
dim_customer:
  - target: a
    kind: transformation
    transform:
      source: b
      function: trim
  - target: b
    kind: transformation
    transform:
      source: a
      function: trim
`)

	_, err := schema.LoadRules(path)
	assert.ErrorIs(t, err, schema.ErrRuleCycle)
}

func TestLoadRulesMissingFile(t *testing.T) {
	t.Parallel()

	rules, err := schema.LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRuleInputs(t *testing.T) {
	t.Parallel()

	half := 0.5

	tcs := map[string]struct {
		rule schema.Rule
		want []string
	}{
		"concat": {
			rule: schema.Rule{
				Kind:   schema.RuleConcat,
				Concat: &schema.ConcatParams{Columns: []string{"a", "b"}},
			},
			want: []string{"a", "b"},
		},
		"arithmetic tree": {
			rule: schema.Rule{
				Kind: schema.RuleArithmetic,
				Arithmetic: &schema.Operand{
					Op:    "mul",
					Left:  &schema.Operand{Column: "net"},
					Right: &schema.Operand{Const: &half},
				},
			},
			want: []string{"net"},
		},
		"lookup": {
			rule: schema.Rule{
				Kind:   schema.RuleLookup,
				Lookup: &schema.LookupParams{On: "code"},
			},
			want: []string{"code"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.rule.Inputs())
		})
	}
}
