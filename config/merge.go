package config

import "strings"

// deepMerge recursively merges override into base and returns the result.
// Maps merge key-wise; any other value, including lists, is replaced by the
// override. Neither input is mutated.
func deepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		bv, ok := result[k]
		if !ok {
			result[k] = v
			continue
		}

		bm, baseIsMap := bv.(map[string]any)

		om, overrideIsMap := v.(map[string]any)
		if baseIsMap && overrideIsMap {
			result[k] = deepMerge(bm, om)
		} else {
			result[k] = v
		}
	}

	return result
}

// interpolate walks the tree and substitutes {tenant_slug} in string leaves.
// No other template syntax is supported.
func interpolate(node any, slug string) any {
	switch v := node.(type) {
	case string:
		return strings.ReplaceAll(v, "{tenant_slug}", slug)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = interpolate(child, slug)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = interpolate(child, slug)
		}

		return out
	default:
		return node
	}
}

// secretKeyFragments are the reserved key names that must never carry a
// value in a YAML layer.
var secretKeyFragments = []string{
	"password",
	"secret",
	"token",
	"connection_string",
	"account_key",
	"credential",
	"uri",
}

// findSecretLeaf walks the tree and returns the dotted path of the first
// non-empty string leaf whose key matches a reserved secret name.
func findSecretLeaf(node map[string]any, prefix string) (string, bool) {
	for k, v := range node {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		switch child := v.(type) {
		case map[string]any:
			found, ok := findSecretLeaf(child, path)
			if ok {
				return found, true
			}
		case string:
			if child == "" {
				continue
			}

			lower := strings.ToLower(k)
			for _, frag := range secretKeyFragments {
				if strings.Contains(lower, frag) {
					return path, true
				}
			}
		}
	}

	return "", false
}
