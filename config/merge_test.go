package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		base     map[string]any
		override map[string]any
		want     map[string]any
	}{
		"disjoint keys": {
			base:     map[string]any{"a": 1},
			override: map[string]any{"b": 2},
			want:     map[string]any{"a": 1, "b": 2},
		},
		"override wins on scalars": {
			base:     map[string]any{"a": 1},
			override: map[string]any{"a": 2},
			want:     map[string]any{"a": 2},
		},
		"nested maps merge": {
			base: map[string]any{
				"database": map[string]any{"host": "db1", "port": 9030},
			},
			override: map[string]any{
				"database": map[string]any{"host": "db2"},
			},
			want: map[string]any{
				"database": map[string]any{"host": "db2", "port": 9030},
			},
		},
		"lists replace wholesale": {
			base: map[string]any{
				"filters": []any{"a", "b"},
			},
			override: map[string]any{
				"filters": []any{"c"},
			},
			want: map[string]any{
				"filters": []any{"c"},
			},
		},
		"map replaces scalar": {
			base:     map[string]any{"a": 1},
			override: map[string]any{"a": map[string]any{"b": 2}},
			want:     map[string]any{"a": map[string]any{"b": 2}},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := deepMerge(tc.base, tc.override)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeepMergeDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	base := map[string]any{
		"database": map[string]any{"host": "db1"},
	}
	override := map[string]any{
		"database": map[string]any{"host": "db2"},
	}

	_ = deepMerge(base, override)

	assert.Equal(t, "db1", base["database"].(map[string]any)["host"])
}

func TestInterpolate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		node any
		want any
	}{
		"string leaf": {
			node: "data/{tenant_slug}/incoming",
			want: "data/acme/incoming",
		},
		"nested map": {
			node: map[string]any{
				"prefix": "{tenant_slug}/exports",
				"port":   9030,
			},
			want: map[string]any{
				"prefix": "acme/exports",
				"port":   9030,
			},
		},
		"list elements": {
			node: []any{"{tenant_slug}", "static"},
			want: []any{"acme", "static"},
		},
		"unknown placeholder untouched": {
			node: "{other_var}/x",
			want: "{other_var}/x",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, interpolate(tc.node, "acme"))
		})
	}
}

func TestFindSecretLeaf(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		node     map[string]any
		wantPath string
		wantHit  bool
	}{
		"clean tree": {
			node: map[string]any{
				"database": map[string]any{"host": "db1", "user": "loader"},
			},
		},
		"password leaf": {
			node: map[string]any{
				"database": map[string]any{"password": "hunter2"},
			},
			wantPath: "database.password",
			wantHit:  true,
		},
		"nested connection string": {
			node: map[string]any{
				"storage": map[string]any{
					"azure": map[string]any{"connection_string": "DefaultEndpoints..."},
				},
			},
			wantPath: "storage.azure.connection_string",
			wantHit:  true,
		},
		"empty secret value ignored": {
			node: map[string]any{
				"database": map[string]any{"password": ""},
			},
		},
		"fragment match on longer key": {
			node: map[string]any{
				"api_token_name": "tok",
			},
			wantPath: "api_token_name",
			wantHit:  true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path, hit := findSecretLeaf(tc.node, "")
			assert.Equal(t, tc.wantHit, hit)

			if tc.wantHit {
				assert.Equal(t, tc.wantPath, path)
			}
		})
	}
}
