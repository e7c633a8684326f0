package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// LoadTables reads every NN_<Name>.yaml schema file under dir, in ordinal
// order. The two-digit prefix becomes the object's ordinal. Missing
// directories yield an empty slice so tenants may omit views or matviews.
func LoadTables(dir string, kind ObjectKind) ([]Table, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, dir, err)
	}

	var tables []Table

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		path := filepath.Join(dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}

		var t Table

		err = yaml.Unmarshal(data, &t)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}

		if t.Name == "" {
			return nil, fmt.Errorf("%w: %s: missing name", ErrInvalid, path)
		}

		if t.Kind == "" {
			t.Kind = kind
		}

		t.Ordinal = fileOrdinal(name)
		tables = append(tables, t)
	}

	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].Ordinal < tables[j].Ordinal
	})

	return tables, nil
}

// LoadMappings reads every column-mapping file under dir, keyed by table
// name.
func LoadMappings(dir string) (map[string]Mapping, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]Mapping{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, dir, err)
	}

	mappings := make(map[string]Mapping)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		path := filepath.Join(dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}

		var m Mapping

		err = yaml.Unmarshal(data, &m)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}

		if m.Table == "" {
			return nil, fmt.Errorf("%w: %s: missing table", ErrInvalid, path)
		}

		for i := range m.Columns {
			if m.Columns[i].OnError == "" {
				m.Columns[i].OnError = CastNull
			}
		}

		mappings[m.Table] = m
	}

	return mappings, nil
}

// LoadRules reads the computed-column rule file, keyed by table name, and
// rejects rule sets whose dependency graph has a cycle. Rule order within a
// table is rewritten to a valid evaluation order.
func LoadRules(path string) (map[string][]Rule, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string][]Rule{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	var raw map[string][]Rule

	err = yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	for table, rules := range raw {
		ordered, err := orderRules(rules)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}

		raw[table] = ordered
	}

	return raw, nil
}

// orderRules topologically sorts rules by their dependencies on other rule
// targets. Returns [ErrRuleCycle] if the graph has a cycle.
func orderRules(rules []Rule) ([]Rule, error) {
	byTarget := make(map[string]int, len(rules))
	for i, r := range rules {
		byTarget[r.Target] = i
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	state := make([]int, len(rules))
	ordered := make([]Rule, 0, len(rules))

	var visit func(i int) error

	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: involving %q", ErrRuleCycle, rules[i].Target)
		}

		state[i] = visiting

		for _, input := range rules[i].Inputs() {
			dep, ok := byTarget[input]
			if !ok {
				continue
			}

			err := visit(dep)
			if err != nil {
				return err
			}
		}

		state[i] = done
		ordered = append(ordered, rules[i])

		return nil
	}

	for i := range rules {
		err := visit(i)
		if err != nil {
			return nil, err
		}
	}

	return ordered, nil
}

// fileOrdinal extracts the NN_ prefix of a schema filename, defaulting to a
// large value so unprefixed files sort last.
func fileOrdinal(name string) int {
	idx := strings.Index(name, "_")
	if idx <= 0 {
		return 1 << 20
	}

	n, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 1 << 20
	}

	return n
}
