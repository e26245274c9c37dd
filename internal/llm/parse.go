package llm

import (
	"encoding/json"
	"strings"
)

// ParseError reports AI output that could not be turned into a JSON object.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse ai response: " + e.Reason
}

const (
	reasonNotObject   = "not an object"
	reasonInvalidJSON = "invalid json"
)

// ParseObject extracts a JSON object from raw model output.
// Markdown code fences around the payload are tolerated. Prose around the object is not.
func ParseObject(raw string) (map[string]any, error) {
	for _, text := range []string{raw, stripFences(raw)} {
		val, ok := decode(text)
		if !ok {
			continue
		}
		obj, isObj := val.(map[string]any)
		if !isObj {
			return nil, &ParseError{Reason: reasonNotObject}
		}
		return obj, nil
	}
	return nil, &ParseError{Reason: reasonInvalidJSON}
}

func decode(text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	var val any
	if err := json.Unmarshal([]byte(text), &val); err != nil {
		return nil, false
	}
	return val, true
}

// stripFences removes a leading ``` or ```json line and a trailing ``` line.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
