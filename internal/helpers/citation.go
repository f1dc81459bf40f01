package helpers

import (
	"net/url"
	"strconv"
	"strings"
)

// Citation models a numbered source reference extracted from an answer.
type Citation struct {
	Number int
	Title  string
	URL    string
}

// citationConfig controls formatting behaviour.
type citationConfig struct {
	maxTitle int
}

// CitationOption configures citation formatting.
type CitationOption func(*citationConfig)

// WithMaxTitleLength truncates titles to the provided rune count (default 120).
func WithMaxTitleLength(n int) CitationOption {
	return func(cfg *citationConfig) {
		if n > 0 {
			cfg.maxTitle = n
		}
	}
}

// FormatCitation renders a single citation string in a consistent layout:
// [n] Title (domain) <URL>
// Citations whose URL is not a link (malformed source lines) render the raw
// text without the domain and angle brackets.
func FormatCitation(c Citation, opts ...CitationOption) string {
	cfg := citationConfig{maxTitle: 120}
	for _, opt := range opts {
		opt(&cfg)
	}

	var parts []string
	if c.Number > 0 {
		parts = append(parts, "["+strconv.Itoa(c.Number)+"]")
	}
	if title := truncateRunes(strings.TrimSpace(c.Title), cfg.maxTitle); title != "" {
		parts = append(parts, title)
	}

	link := strings.TrimSpace(c.URL)
	domain := Domain(link)
	switch {
	case domain != "":
		parts = append(parts, "("+domain+")", "<"+link+">")
	case link != "":
		parts = append(parts, link)
	}
	return strings.Join(parts, " ")
}

// FormatCitations renders a collection of citations.
func FormatCitations(citations []Citation, opts ...CitationOption) []string {
	if len(citations) == 0 {
		return nil
	}
	out := make([]string, 0, len(citations))
	for _, c := range citations {
		out = append(out, FormatCitation(c, opts...))
	}
	return out
}

// Domain returns the lowercased host of an absolute http(s) URL without a
// default port, or "" when raw is not such a URL.
func Domain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")
	return strings.TrimPrefix(host, "www.")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
