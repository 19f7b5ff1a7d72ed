package steps

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Oracle output is untrusted text. These errors classify how a chunk's
// response failed to yield a usable JSON value; all of them count as that
// chunk's parse failure, nothing more.
var (
	ErrNoJSON     = errors.New("oracle output contains no JSON value")
	ErrBadJSON    = errors.New("oracle output JSON span does not decode")
	ErrWrongShape = errors.New("oracle output JSON has an unexpected shape")
)

// ExtractJSONObject finds the first top-level JSON value in raw and decodes
// it, requiring an object.
func ExtractJSONObject(raw string) (map[string]any, error) {
	val, err := extractJSONValue(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: want object, got %T", ErrWrongShape, val)
	}
	return obj, nil
}

// ExtractJSONArray finds the first top-level JSON value in raw and decodes it
// as an array of objects. A bare object is tolerated and wrapped into a
// one-element array.
func ExtractJSONArray(raw string) ([]map[string]any, error) {
	val, err := extractJSONValue(raw)
	if err != nil {
		return nil, err
	}
	switch v := val.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				// non-object array members carry nothing usable
				continue
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: want array or object, got %T", ErrWrongShape, val)
	}
}

func extractJSONValue(raw string) (any, error) {
	span, ok := firstJSONSpan(stripCodeFences(raw))
	if !ok {
		return nil, ErrNoJSON
	}
	var val any
	if err := json.Unmarshal([]byte(span), &val); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return val, nil
}

func stripCodeFences(raw string) string {
	// Models often wrap output in ```json fences; the fence markers would
	// otherwise sit inside the located span.
	raw = strings.ReplaceAll(raw, "```json", "\n")
	raw = strings.ReplaceAll(raw, "```", "\n")
	return raw
}

// firstJSONSpan locates the first balanced top-level {...} or [...] span,
// honoring string literals and escapes.
func firstJSONSpan(raw string) (string, bool) {
	start := -1
	for i := 0; i < len(raw); i++ {
		if raw[i] == '{' || raw[i] == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
