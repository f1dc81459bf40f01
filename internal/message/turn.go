package message

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType tags the variant held by a Part.
type PartType string

const (
	PartText      PartType = "text"
	PartReasoning PartType = "reasoning"
)

// DetailType tags the variant held by a ReasoningDetail.
type DetailType string

const (
	DetailText     DetailType = "text"
	DetailRedacted DetailType = "redacted"
)

// ReasoningDetail is one ordered element of a reasoning part: visible text or
// an opaque redaction marker supplied by the provider.
type ReasoningDetail struct {
	Type DetailType `json:"type"`
	Text string     `json:"text,omitempty"`
	Data string     `json:"data,omitempty"`
}

// Part is a tagged union of TextPart and ReasoningPart. A reasoning part whose
// Details list is still empty is "open": it is still receiving deltas.
type Part struct {
	Type      PartType          `json:"type"`
	Text      string            `json:"text,omitempty"`
	Reasoning string            `json:"reasoning,omitempty"`
	Details   []ReasoningDetail `json:"details,omitempty"`
}

// Turn is one message of a conversation.
type Turn struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Parts   []Part `json:"parts,omitempty"`
}

// OpenReasoning returns the index of the open reasoning part, or -1. Only the
// last part can be open.
func (t Turn) OpenReasoning() int {
	if len(t.Parts) == 0 {
		return -1
	}
	last := len(t.Parts) - 1
	p := t.Parts[last]
	if p.Type == PartReasoning && len(p.Details) == 0 {
		return last
	}
	return -1
}

// ErrEmptyHistory is returned when a chat request carries no turns.
var ErrEmptyHistory = errors.New("messages must not be empty")

// PrepareHistory validates client supplied turns and returns the ones that are
// forwarded to the model. System turns are dropped because the server owns the
// system prompt; turns with an unknown role are rejected.
func PrepareHistory(turns []Turn) ([]Turn, error) {
	if len(turns) == 0 {
		return nil, ErrEmptyHistory
	}
	out := make([]Turn, 0, len(turns))
	for i, t := range turns {
		switch t.Role {
		case RoleUser, RoleAssistant:
		case RoleSystem:
			continue
		default:
			return nil, fmt.Errorf("messages[%d]: unsupported role %q", i, t.Role)
		}
		if strings.TrimSpace(t.Content) == "" && t.Role == RoleUser {
			return nil, fmt.Errorf("messages[%d]: user content must not be empty", i)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, ErrEmptyHistory
	}
	return out, nil
}
