package message

import "strings"

// Assembler accumulates streamed deltas into an assistant Turn while keeping
// the single-open-reasoning-part invariant.
type Assembler struct {
	turn      Turn
	reasoning strings.Builder
}

// NewAssembler starts an assistant turn with the given id.
func NewAssembler(id string) *Assembler {
	return &Assembler{turn: Turn{ID: id, Role: RoleAssistant}}
}

// Reasoning appends a reasoning delta, opening a reasoning part if needed.
func (a *Assembler) Reasoning(delta string) {
	if delta == "" {
		return
	}
	if a.turn.OpenReasoning() < 0 {
		a.turn.Parts = append(a.turn.Parts, Part{Type: PartReasoning})
		a.reasoning.Reset()
	}
	a.reasoning.WriteString(delta)
	a.turn.Parts[len(a.turn.Parts)-1].Reasoning = a.reasoning.String()
}

// Redacted records a redaction marker; it closes the open reasoning part.
func (a *Assembler) Redacted(data string) {
	idx := a.turn.OpenReasoning()
	if idx < 0 {
		a.turn.Parts = append(a.turn.Parts, Part{Type: PartReasoning})
		idx = len(a.turn.Parts) - 1
	} else if text := a.turn.Parts[idx].Reasoning; text != "" {
		a.turn.Parts[idx].Details = append(a.turn.Parts[idx].Details, ReasoningDetail{Type: DetailText, Text: text})
	}
	a.turn.Parts[idx].Details = append(a.turn.Parts[idx].Details, ReasoningDetail{Type: DetailRedacted, Data: data})
}

// Text appends an answer delta. Any open reasoning part is closed first.
func (a *Assembler) Text(delta string) {
	if delta == "" {
		return
	}
	a.closeReasoning()
	a.turn.Content += delta
	if n := len(a.turn.Parts); n > 0 && a.turn.Parts[n-1].Type == PartText {
		a.turn.Parts[n-1].Text += delta
		return
	}
	a.turn.Parts = append(a.turn.Parts, Part{Type: PartText, Text: delta})
}

// Turn closes any open reasoning part and returns the assembled turn.
func (a *Assembler) Turn() Turn {
	a.closeReasoning()
	return a.turn
}

func (a *Assembler) closeReasoning() {
	idx := a.turn.OpenReasoning()
	if idx < 0 {
		return
	}
	p := &a.turn.Parts[idx]
	p.Details = []ReasoningDetail{{Type: DetailText, Text: p.Reasoning}}
}
