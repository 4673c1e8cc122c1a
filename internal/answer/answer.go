// Package answer parses the structured JSON answers returned by providers.
//
// Parsing is a two-stage contract: the raw text is first decoded strictly as
// a JSON object. If that fails, the first balanced {...} substring is
// extracted and decoded. If both fail the caller classifies the result as a
// parse error.
package answer

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Answer is a parsed structured answer. Its shape depends on the question's
// analysis type.
type Answer map[string]any

// Strategy records which parsing stage produced an Answer.
type Strategy string

const (
	StrategyStrict         Strategy = "strict"
	StrategyBraceExtracted Strategy = "brace_extraction"
)

// ErrNoJSON is returned when neither stage finds a JSON object.
var ErrNoJSON = eris.New("answer: no JSON object found")

// Parse decodes raw into an Answer using strict parsing first and balanced
// brace extraction second.
func Parse(raw string) (Answer, Strategy, error) {
	if a, err := Strict(raw); err == nil {
		return a, StrategyStrict, nil
	}

	candidate, ok := ExtractObject(raw)
	if !ok {
		return nil, "", ErrNoJSON
	}
	a, err := Strict(candidate)
	if err != nil {
		return nil, "", eris.Wrap(ErrNoJSON, err.Error())
	}
	return a, StrategyBraceExtracted, nil
}

// Strict decodes s as a single JSON object. Arrays and scalars are rejected.
func Strict(s string) (Answer, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, eris.New("answer: not a JSON object")
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var a Answer
	if err := dec.Decode(&a); err != nil {
		return nil, eris.Wrap(err, "answer: decode")
	}
	if dec.More() {
		return nil, eris.New("answer: trailing data after object")
	}
	return normalizeNumbers(a).(Answer), nil
}

// ExtractObject returns the first balanced {...} substring of s. Braces inside
// JSON string literals are ignored.
func ExtractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start != -1 {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// normalizeNumbers converts json.Number values to float64 so validators see a
// single numeric type.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case Answer:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// String returns a string field, or "" when absent or not a string.
func (a Answer) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Number returns a numeric field and whether it was present as a number.
func (a Answer) Number(key string) (float64, bool) {
	f, ok := a[key].(float64)
	return f, ok
}

// Bool returns a boolean field and whether it was present as a bool.
func (a Answer) Bool(key string) (bool, bool) {
	b, ok := a[key].(bool)
	return b, ok
}

// Slice returns an array field and whether it was present as an array.
func (a Answer) Slice(key string) ([]any, bool) {
	s, ok := a[key].([]any)
	return s, ok
}
