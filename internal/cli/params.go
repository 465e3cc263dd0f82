package cli

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseParams turns KEY=VALUE pairs into job parameters. Values are read as
// YAML scalars or flow sequences, so "limit=20" is an int,
// "render_js=true" a bool and "patterns=[/blog/*, /news/*]" a list.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected KEY=VALUE", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		if _, isMap := v.(map[string]any); isMap {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}
