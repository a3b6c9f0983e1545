// Package llmjson decodes JSON that a language model embedded in free text.
//
// Models often wrap structured replies in markdown code fences or surround
// them with a sentence of prose. StripFences removes both; Decode strips and
// unmarshals in one step.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned by Decode when the reply does not contain valid JSON.
var ErrMalformed = errors.New("malformed JSON in model reply")

// StripFences returns the JSON payload of a model reply: leading ```json or
// ``` fences and the trailing ``` fence are removed, as is any text before
// the first '[' or '{' and after the last ']' or '}'.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop the language tag on the opening fence line.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			tag := strings.TrimSpace(s[:nl])
			if tag == "" || isLangTag(tag) {
				s = s[nl+1:]
			}
		} else {
			s = strings.TrimPrefix(s, "json")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	end := strings.LastIndexAny(s, "]}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func isLangTag(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// Decode strips fences from raw and unmarshals the result into v.
// Any failure wraps ErrMalformed.
func Decode(raw string, v any) error {
	return decode(raw, 0, v)
}

// DecodeObject is Decode restricted to a JSON object payload. A bare null,
// scalar or array is rejected with ErrMalformed.
func DecodeObject(raw string, v any) error {
	return decode(raw, '{', v)
}

// DecodeArray is Decode restricted to a JSON array payload.
func DecodeArray(raw string, v any) error {
	return decode(raw, '[', v)
}

func decode(raw string, open byte, v any) error {
	payload := StripFences(raw)
	if payload == "" {
		return fmt.Errorf("%w: empty reply", ErrMalformed)
	}
	if open != 0 && payload[0] != open {
		return fmt.Errorf("%w: want %c payload", ErrMalformed, open)
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
