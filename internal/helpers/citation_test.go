package helpers

import "testing"

func TestFormatCitation(t *testing.T) {
	t.Parallel()
	c := Citation{
		Number: 1,
		Title:  "Investigative Report",
		URL:    "https://www.example.com/news/report?ref=homepage",
	}

	got := FormatCitation(c)
	want := `[1] Investigative Report (example.com) <https://www.example.com/news/report?ref=homepage>`

	if got != want {
		t.Fatalf("FormatCitation() = %q, want %q", got, want)
	}
}

func TestFormatCitationTruncatesTitle(t *testing.T) {
	t.Parallel()
	c := Citation{
		Number: 2,
		Title:  "A very long title that should be truncated",
		URL:    "https://example.com:443/article",
	}

	got := FormatCitation(c, WithMaxTitleLength(12))
	want := `[2] A very long… (example.com) <https://example.com:443/article>`

	if got != want {
		t.Fatalf("FormatCitation() = %q, want %q", got, want)
	}
}

func TestFormatCitationWithoutLink(t *testing.T) {
	t.Parallel()
	got := FormatCitation(Citation{Number: 3, URL: "just some text"})
	want := `[3] just some text`
	if got != want {
		t.Fatalf("FormatCitation() = %q, want %q", got, want)
	}
}

func TestFormatCitationsBatch(t *testing.T) {
	t.Parallel()
	list := []Citation{
		{Number: 1, Title: "First", URL: "https://a.example.com"},
		{Number: 2, Title: "Second", URL: "https://b.example.com"},
	}
	items := FormatCitations(list)
	if len(items) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(items))
	}
	if items[0] == items[1] {
		t.Fatalf("expected unique entries, got %#v", items)
	}
	if FormatCitations(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"https://WWW.Example.com/path": "example.com",
		"http://news.example.org:80/x": "news.example.org",
		"ftp://example.com/file":       "",
		"not a url":                    "",
		"":                             "",
	}
	for in, want := range cases {
		if got := Domain(in); got != want {
			t.Fatalf("Domain(%q) = %q, want %q", in, got, want)
		}
	}
}
