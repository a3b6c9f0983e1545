package llmjson

import (
	"errors"
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"single line fence", "```json [] ```", `[]`},
		{"prose around", "Sure! Here it is:\n{\"shouldSave\": false}\nHope that helps.", `{"shouldSave": false}`},
		{"whitespace", "  \n {\"a\":1} \n", `{"a":1}`},
		{"no json", "not json", "not json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFences(tc.raw); got != tc.want {
				t.Errorf("StripFences(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestDecode_FencedArray(t *testing.T) {
	var pairs []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	raw := "```json\n[{\"question\":\"Q1\",\"answer\":\"A1\"}]\n```"
	if err := Decode(raw, &pairs); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Question != "Q1" || pairs[0].Answer != "A1" {
		t.Errorf("pairs = %+v", pairs)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{"not json", "", "```json\n```", "[{]"} {
		var v []any
		if err := Decode(raw, &v); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q) err = %v, want ErrMalformed", raw, err)
		}
	}
}

func TestDecode_ShapeMismatch(t *testing.T) {
	var v []any
	if err := Decode(`{"question":"Q"}`, &v); !errors.Is(err, ErrMalformed) {
		t.Errorf("object into slice: err = %v, want ErrMalformed", err)
	}
}

func TestDecodeObject_RejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"null", "true", "42", `"text"`, `[{"a":1}]`} {
		var v struct{ A int }
		if err := DecodeObject(raw, &v); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeObject(%q) err = %v, want ErrMalformed", raw, err)
		}
	}
	var v struct {
		A int `json:"a"`
	}
	if err := DecodeObject("```json\n{\"a\":1}\n```", &v); err != nil || v.A != 1 {
		t.Errorf("DecodeObject(fenced) = %+v, %v", v, err)
	}
}

func TestDecodeArray_RejectsNonArrays(t *testing.T) {
	for _, raw := range []string{"null", `{"a":1}`} {
		var v []any
		if err := DecodeArray(raw, &v); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeArray(%q) err = %v, want ErrMalformed", raw, err)
		}
	}
}
