package message

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

const sourcesTag = "sources"

// Source is one citation extracted from a <sources> block. Number is dense
// and 1-based in block order.
type Source struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
}

// Parsed is the display-ready split of an assistant response.
type Parsed struct {
	Content string   `json:"content"`
	Sources []Source `json:"sources"`
}

var sourcesBlockRe = regexp.MustCompile(`(?s)<sources>.*?</sources>`)

// Parser splits assistant text into display content and sources. It never
// fails: a panic in the primary path falls back to stripping sources blocks
// with a regular expression, and a panic there returns the input unchanged.
type Parser struct {
	log      *logrus.Entry
	primary  func(string) Parsed
	fallback func(string) string
}

// NewParser builds a Parser. A nil logger discards diagnostics.
func NewParser(log *logrus.Entry) *Parser {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Parser{log: log, primary: parseSources, fallback: stripSources}
}

var defaultParser = NewParser(nil)

// Parse splits content using the default parser.
func Parse(content string) Parsed {
	return defaultParser.Parse(content)
}

// Parse returns the content with every complete <sources> block removed and
// the sources listed by the first such block.
func (p *Parser) Parse(content string) (out Parsed) {
	if content == "" {
		return Parsed{Sources: []Source{}}
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", fmt.Sprint(r)).Warn("response parse failed, stripping sources blocks")
			out = p.recoverWithFallback(content)
		}
	}()
	return p.primary(content)
}

func (p *Parser) recoverWithFallback(content string) (out Parsed) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", fmt.Sprint(r)).Error("fallback parse failed, returning response unchanged")
			out = Parsed{Content: content, Sources: []Source{}}
		}
	}()
	return Parsed{Content: p.fallback(content), Sources: []Source{}}
}

type span struct{ start, end int }

// parseSources walks the token stream with two states: scanning and inside a
// sources block. Only a block with a matching close tag counts; tags nested
// inside a block are part of its body.
func parseSources(content string) Parsed {
	var (
		blocks     []span
		first      string
		haveFirst  bool
		inBlock    bool
		blockStart int
		bodyStart  int
	)
	for _, tok := range tokenize(content) {
		switch {
		case !inBlock && tok.kind == tokenOpen && tok.name == sourcesTag:
			inBlock = true
			blockStart, bodyStart = tok.start, tok.end
		case inBlock && tok.kind == tokenClose && tok.name == sourcesTag:
			inBlock = false
			blocks = append(blocks, span{blockStart, tok.end})
			if !haveFirst {
				first, haveFirst = content[bodyStart:tok.start], true
			}
		}
	}
	sources := []Source{}
	if haveFirst {
		sources = sourceLines(first)
	}
	return Parsed{Content: strings.TrimSpace(removeSpans(content, blocks)), Sources: sources}
}

func stripSources(content string) string {
	return strings.TrimSpace(sourcesBlockRe.ReplaceAllString(content, ""))
}

func removeSpans(s string, spans []span) string {
	if len(spans) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := 0
	for _, sp := range spans {
		b.WriteString(s[prev:sp.start])
		prev = sp.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

var bulletMarkers = []string{"-", "*", "•"}

func sourceLines(body string) []Source {
	sources := []Source{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := cutBullet(line)
		if !ok {
			continue
		}
		src := parseSourceLine(strings.TrimSpace(rest))
		src.Number = len(sources) + 1
		sources = append(sources, src)
	}
	return sources
}

func cutBullet(line string) (string, bool) {
	for _, m := range bulletMarkers {
		if rest, ok := strings.CutPrefix(line, m); ok {
			return rest, true
		}
	}
	return "", false
}

// parseSourceLine takes the first http(s) token as the URL and whatever follows
// it as the title. Without a URL the whole text is kept as the URL so no
// bullet is dropped.
func parseSourceLine(text string) Source {
	idx := urlIndex(text)
	if idx < 0 {
		return Source{URL: text}
	}
	rest := text[idx:]
	end := strings.IndexFunc(rest, isSpace)
	if end < 0 {
		end = len(rest)
	}
	url := trimUnbalanced(rest[:end])
	title := strings.TrimSpace(rest[end:])
	return Source{URL: url, Title: title}
}

func urlIndex(s string) int {
	best := -1
	for _, scheme := range []string{"http://", "https://"} {
		if i := strings.Index(s, scheme); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
}

var closers = map[byte]byte{')': '(', ']': '[', '>': '<'}

func trimUnbalanced(url string) string {
	for len(url) > 0 {
		last := url[len(url)-1]
		open, ok := closers[last]
		if !ok || strings.Count(url, string(last)) <= strings.Count(url, string(open)) {
			return url
		}
		url = url[:len(url)-1]
	}
	return url
}
