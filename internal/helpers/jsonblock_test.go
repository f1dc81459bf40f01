package helpers

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":[1,2]}\n```", `{"a":[1,2]}`},
		{"tilde fence", "~~~\n[1]\n~~~", `[1]`},
		{"prose around", `Here you go: {"q":"x"} hope that helps`, `{"q":"x"}`},
		{"brace in string", `{"q":"a } b"}`, `{"q":"a } b"}`},
		{"escaped quote", `{"q":"say \"}\""}`, `{"q":"say \"}\""}`},
		{"bom", "\uFEFF{\"a\":1}", `{"a":1}`},
		{"skips broken opener", `{"a":] then {"b":2}`, `{"b":2}`},
	}
	for _, tc := range cases {
		got, err := ExtractJSON(tc.in)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestExtractJSONNone(t *testing.T) {
	for _, in := range []string{"", "no json here", `{"a":1`} {
		if _, err := ExtractJSON(in); !errors.Is(err, ErrNoJSON) {
			t.Fatalf("%q: expected ErrNoJSON, got %v", in, err)
		}
	}
}
