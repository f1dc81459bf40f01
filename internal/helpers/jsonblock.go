package helpers

import (
	"errors"
	"strings"
)

// ErrNoJSON is returned when no balanced JSON object or array is present.
var ErrNoJSON = errors.New("no balanced JSON object or array found")

// ExtractJSON returns the first balanced JSON object or array in s. A leading
// BOM and a surrounding ``` or ~~~ fence (with optional language tag) are
// ignored. Brackets inside strings do not count.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	if inner, ok := unfence(s); ok {
		s = strings.TrimSpace(inner)
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		if end := balancedEnd(s, i); end > 0 {
			return s[i:end], nil
		}
	}
	return "", ErrNoJSON
}

func unfence(s string) (string, bool) {
	for _, fence := range []string{"```", "~~~"} {
		rest, ok := strings.CutPrefix(s, fence)
		if !ok {
			continue
		}
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return "", false
		}
		rest = rest[nl+1:]
		end := strings.Index(rest, fence)
		if end < 0 {
			return "", false
		}
		return rest[:end], true
	}
	return "", false
}

// balancedEnd returns the index just past the value opened at s[start], or
// -1 when it never closes or closes with the wrong bracket.
func balancedEnd(s string, start int) int {
	var stack []byte
	inString, escaped := false, false
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}
