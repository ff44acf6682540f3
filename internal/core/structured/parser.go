// Package structured extracts a JSON object from free-form model text and
// validates it against a declared set of required fields. The contract is
// two-phase on purpose: a structural parse failure means the model produced
// garbage, a missing required field means the model dropped content, and a
// missing optional field just takes its default. Collapsing the phases would
// lose that distinction.
package structured

import (
	"encoding/json"
	"strings"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

// Parse strips Markdown code fences, parses the remaining text as a JSON
// object, verifies every required field is present, and fills defaults for
// absent optional fields without overwriting present values.
func Parse(raw string, required []string, defaults map[string]any) (map[string]any, error) {
	cleaned := stripFences(raw)

	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, &domain.SchemaValidationError{Raw: raw, Cause: err}
	}

	for _, field := range required {
		if _, ok := out[field]; !ok {
			return nil, &domain.SchemaValidationError{Field: field, Raw: raw}
		}
	}

	for key, value := range defaults {
		if _, ok := out[key]; !ok {
			out[key] = value
		}
	}

	return out, nil
}

// stripFences removes a leading ```json or ``` marker and a trailing ```.
// Model output routinely wraps JSON in Markdown fences; that is tolerated,
// not treated as malformed.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(cleaned, "```json"):
		cleaned = cleaned[len("```json"):]
	case strings.HasPrefix(cleaned, "```"):
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")

	return strings.TrimSpace(cleaned)
}

// StringList coerces a parsed JSON value into a list of strings, dropping
// non-string members.
func StringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// IntOr coerces a parsed JSON number into an int, returning fallback for
// anything that is not numeric.
func IntOr(value any, fallback int) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return fallback
}

// StringOr coerces a parsed JSON value into a string.
func StringOr(value any, fallback string) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fallback
}

// ObjectOr coerces a parsed JSON value into a map.
func ObjectOr(value any, fallback map[string]any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return fallback
}
