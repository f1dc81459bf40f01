package message

import (
	"strconv"
	"strings"
)

// ReasoningKind names the tagged reasoning sections of the legacy format.
type ReasoningKind string

const (
	ReasoningThinking   ReasoningKind = "thinking"
	ReasoningStressTest ReasoningKind = "stress_test"
)

// ReasoningBlock is one <thinking> or <stress_test> section. Iteration comes
// from a _N tag suffix and defaults to 1.
type ReasoningBlock struct {
	Type      ReasoningKind `json:"type"`
	Iteration int           `json:"iteration"`
	Content   string        `json:"content"`
}

// LegacyParsed is the result of ParseLegacy.
type LegacyParsed struct {
	Reasoning     []ReasoningBlock `json:"reasoningBlocks"`
	FinalResponse string           `json:"finalResponse,omitempty"`
	Sources       []Source         `json:"sources"`
}

const finalAnswerTag = "final_answer"

// ParseLegacy understands the older tagged response format with reasoning
// sections and <final_answer> blocks. Sources are extracted the same way as
// Parse. When no final answer block exists, the response with sources blocks,
// reasoning sections and stray final_answer tags removed becomes the final
// response.
func ParseLegacy(content string) LegacyParsed {
	out := LegacyParsed{Reasoning: []ReasoningBlock{}, Sources: []Source{}}
	if content == "" {
		return out
	}
	blocks, _ := reasoningBlocks(content)
	out.Reasoning = append(out.Reasoning, blocks...)

	parsed := Parse(content)
	out.Sources = parsed.Sources

	if final := finalAnswers(parsed.Content); final != "" {
		out.FinalResponse = final
		return out
	}
	_, spans := reasoningBlocks(parsed.Content)
	rest := removeSpans(parsed.Content, spans)
	rest = strings.ReplaceAll(rest, "<"+finalAnswerTag+">", "")
	rest = strings.ReplaceAll(rest, "</"+finalAnswerTag+">", "")
	out.FinalResponse = strings.TrimSpace(rest)
	return out
}

func reasoningBlocks(content string) ([]ReasoningBlock, []span) {
	toks := tokenize(content)
	var (
		blocks []ReasoningBlock
		spans  []span
	)
	for i := 0; i < len(toks); i++ {
		open := toks[i]
		if open.kind != tokenOpen {
			continue
		}
		kind, iter, ok := reasoningTag(open.name)
		if !ok {
			continue
		}
		for j := i + 1; j < len(toks); j++ {
			cl := toks[j]
			if cl.kind != tokenClose {
				continue
			}
			ck, citer, ok := reasoningTag(cl.name)
			if !ok || ck != kind || (citer != "" && citer != iter) {
				continue
			}
			n := 1
			if iter != "" {
				n, _ = strconv.Atoi(iter)
			}
			blocks = append(blocks, ReasoningBlock{
				Type:      kind,
				Iteration: n,
				Content:   strings.TrimSpace(content[open.end:cl.start]),
			})
			spans = append(spans, span{open.start, cl.end})
			i = j
			break
		}
	}
	return blocks, spans
}

// reasoningTag splits names like thinking_2 into kind and iteration suffix.
func reasoningTag(name string) (ReasoningKind, string, bool) {
	for _, kind := range []ReasoningKind{ReasoningThinking, ReasoningStressTest} {
		base := string(kind)
		if name == base {
			return kind, "", true
		}
		suffix, ok := strings.CutPrefix(name, base+"_")
		if ok && suffix != "" && allDigits(suffix) {
			return kind, suffix, true
		}
	}
	return "", "", false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func finalAnswers(content string) string {
	var b strings.Builder
	toks := tokenize(content)
	for i := 0; i < len(toks); i++ {
		if toks[i].kind != tokenOpen || toks[i].name != finalAnswerTag {
			continue
		}
		for j := i + 1; j < len(toks); j++ {
			if toks[j].kind == tokenClose && toks[j].name == finalAnswerTag {
				text := strings.TrimSpace(content[toks[i].end:toks[j].start])
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString(text)
				i = j
				break
			}
		}
	}
	return b.String()
}
