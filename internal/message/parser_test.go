package message

import (
	"reflect"
	"testing"
)

func TestParseExtractsSources(t *testing.T) {
	in := "intro <sources>\n- https://a.com/x Title A\n- https://b.com/y\n</sources> outro"
	got := Parse(in)
	if got.Content != "intro  outro" {
		t.Fatalf("unexpected content %q", got.Content)
	}
	want := []Source{
		{Number: 1, URL: "https://a.com/x", Title: "Title A"},
		{Number: 2, URL: "https://b.com/y"},
	}
	if !reflect.DeepEqual(got.Sources, want) {
		t.Fatalf("unexpected sources %+v", got.Sources)
	}
}

func TestParseIsIdempotentOnContent(t *testing.T) {
	inputs := []string{
		"intro <sources>\n- https://a.com/x Title A\n</sources> outro",
		"plain answer",
		"a <sources>- x</sources> b <sources>- https://c.com</sources> c",
		"<sources>unterminated",
	}
	for _, in := range inputs {
		first := Parse(in)
		second := Parse(first.Content)
		if second.Content != first.Content {
			t.Fatalf("content changed on reparse: %q -> %q", first.Content, second.Content)
		}
		if len(second.Sources) != 0 {
			t.Fatalf("reparse of %q yielded sources %+v", in, second.Sources)
		}
	}
}

func TestParseMalformedLineKeepsText(t *testing.T) {
	got := Parse("answer\n<sources>\n- just some text\n</sources>")
	if len(got.Sources) != 1 {
		t.Fatalf("expected one source, got %+v", got.Sources)
	}
	if got.Sources[0].URL != "just some text" || got.Sources[0].Title != "" {
		t.Fatalf("unexpected source %+v", got.Sources[0])
	}
}

func TestParseBulletVariantsAndNumbering(t *testing.T) {
	in := "x\n<sources>\nnot a bullet\n* https://a.com A\n\n• https://b.com B\n- https://c.com\n</sources>"
	got := Parse(in)
	if len(got.Sources) != 3 {
		t.Fatalf("expected three sources, got %+v", got.Sources)
	}
	for i, s := range got.Sources {
		if s.Number != i+1 {
			t.Fatalf("source %d numbered %d", i, s.Number)
		}
	}
	if got.Sources[1].URL != "https://b.com" || got.Sources[1].Title != "B" {
		t.Fatalf("unexpected bullet source %+v", got.Sources[1])
	}
}

func TestParseURLInsideText(t *testing.T) {
	got := Parse("<sources>\n- Reuters (https://reuters.com/a) report\n</sources>")
	if len(got.Sources) != 1 {
		t.Fatalf("expected one source, got %+v", got.Sources)
	}
	s := got.Sources[0]
	if s.URL != "https://reuters.com/a" || s.Title != "report" {
		t.Fatalf("unexpected source %+v", s)
	}
}

func TestParseKeepsBalancedParens(t *testing.T) {
	got := Parse("<sources>\n- https://en.wikipedia.org/wiki/Go_(programming_language) Go\n</sources>")
	if got.Sources[0].URL != "https://en.wikipedia.org/wiki/Go_(programming_language)" {
		t.Fatalf("unexpected url %q", got.Sources[0].URL)
	}
}

func TestParseOnlyFirstBlockProvidesSources(t *testing.T) {
	in := "a <sources>\n- https://one.com\n</sources> b <sources>\n- https://two.com\n</sources> c"
	got := Parse(in)
	if got.Content != "a  b  c" {
		t.Fatalf("unexpected content %q", got.Content)
	}
	if len(got.Sources) != 1 || got.Sources[0].URL != "https://one.com" {
		t.Fatalf("unexpected sources %+v", got.Sources)
	}
}

func TestParseUnterminatedBlockIsText(t *testing.T) {
	in := "answer <sources>\n- https://a.com"
	got := Parse(in)
	if got.Content != in {
		t.Fatalf("unexpected content %q", got.Content)
	}
	if len(got.Sources) != 0 {
		t.Fatalf("expected no sources, got %+v", got.Sources)
	}
}

func TestParseEmpty(t *testing.T) {
	got := Parse("")
	if got.Content != "" || got.Sources == nil || len(got.Sources) != 0 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestParseFallsBackOnPanic(t *testing.T) {
	p := NewParser(nil)
	p.primary = func(string) Parsed { panic("boom") }
	got := p.Parse("text <sources>\n- https://a.com\n</sources>")
	if got.Content != "text" {
		t.Fatalf("unexpected fallback content %q", got.Content)
	}
	if len(got.Sources) != 0 {
		t.Fatalf("fallback must not return sources")
	}

	p.fallback = func(string) string { panic("again") }
	in := "raw <sources>x</sources>"
	if got := p.Parse(in); got.Content != in {
		t.Fatalf("expected original text, got %q", got.Content)
	}
}

func TestTokenizeIgnoresNonTags(t *testing.T) {
	toks := tokenize("a < b <not a tag> <ok_1></ok_1>")
	var tags []string
	for _, tok := range toks {
		if tok.kind != tokenText {
			tags = append(tags, tok.name)
		}
	}
	if !reflect.DeepEqual(tags, []string{"ok_1", "ok_1"}) {
		t.Fatalf("unexpected tags %v", tags)
	}
}
