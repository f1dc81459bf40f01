package message

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenOpen
	tokenClose
)

// token is a lexical unit of an assistant response. Start and End are byte
// offsets into the scanned text.
type token struct {
	kind  tokenKind
	name  string
	start int
	end   int
}

// tokenize splits s into text runs and simple tags of the form <name> or
// </name>, where name consists of ASCII letters, digits and underscores.
// Anything that does not match that shape is text.
func tokenize(s string) []token {
	var toks []token
	textStart := 0
	flush := func(end int) {
		if end > textStart {
			toks = append(toks, token{kind: tokenText, start: textStart, end: end})
		}
	}
	for i := 0; i < len(s); {
		if s[i] != '<' {
			i++
			continue
		}
		kind, name, end, ok := scanTag(s, i)
		if !ok {
			i++
			continue
		}
		flush(i)
		toks = append(toks, token{kind: kind, name: name, start: i, end: end})
		i = end
		textStart = end
	}
	flush(len(s))
	return toks
}

func scanTag(s string, at int) (tokenKind, string, int, bool) {
	i := at + 1
	kind := tokenOpen
	if i < len(s) && s[i] == '/' {
		kind = tokenClose
		i++
	}
	nameStart := i
	for i < len(s) && isNameByte(s[i]) {
		i++
	}
	if i == nameStart || i >= len(s) || s[i] != '>' {
		return 0, "", 0, false
	}
	return kind, s[nameStart:i], i + 1, true
}

func isNameByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
