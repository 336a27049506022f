// Package template resolves ${path.into.results} placeholders against the
// nested result map accumulated during a run.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{([^}]*)\}`)

// Interpolate replaces every ${dot.separated.path} in tmpl with the value
// resolved from results. A missing path (any absent segment) substitutes the
// literal "[missing <path>]" so log and notify text stays renderable on a
// typo. Structured values render as compact JSON, scalars via their natural
// string form. An empty template yields an empty string.
//
// The same function serves plain-text templates and raw JSON payload
// templates; a placeholder may sit inside a JSON string or numeric literal.
func Interpolate(tmpl string, results map[string]any) string {
	if tmpl == "" {
		return ""
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])

		value, ok := Lookup(results, path)
		if !ok {
			return "[missing " + path + "]"
		}

		return formatValue(value)
	})
}

// Lookup walks results along a dot-separated path. The second return value
// is false when any segment is absent or a non-map value is traversed.
func Lookup(results map[string]any, path string) (any, bool) {
	if results == nil || path == "" {
		return nil, false
	}

	var current any = results

	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
