package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Client names a supported LLM backend.
type Client string

const (
	OpenAI Client = "openai"
)

// Message roles understood by providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolChoice controls whether the model may call tools in a step.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// ToolCall is a complete function call emitted by the model.
type ToolCall struct {
	ID        string `json:"toolCallId"`
	Name      string `json:"toolName"`
	Arguments string `json:"args"`
}

// Message is one entry of the prompt sent to the model.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolDefinition advertises a callable tool and its JSON Schema.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ChatRequest is one streamed model step.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	ToolChoice  ToolChoice
	Temperature float32
}

// Usage reports token counts for a step.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// EventType tags a streamed Event.
type EventType int

const (
	EventText EventType = iota
	EventReasoning
	EventToolCall
	EventFinish
	// EventRedactedReasoning carries opaque provider data in Text in place
	// of reasoning the provider withheld.
	EventRedactedReasoning
)

// Event is one item of a model stream. Text carries text and reasoning
// deltas, ToolCall a complete call, and the final EventFinish the finish
// reason and usage.
type Event struct {
	Type         EventType
	Text         string
	ToolCall     *ToolCall
	FinishReason string
	Usage        Usage
}

// Stream yields events until it returns io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// ObjectRequest asks for a JSON document conforming to Schema.
type ObjectRequest struct {
	Model  string
	Name   string
	Schema json.RawMessage
	System string
	Prompt string
}

// Provider is the interface every LLM backend must satisfy.
type Provider interface {
	ChatStream(ctx context.Context, req ChatRequest) (Stream, error)
	GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error)
}

// Config selects and configures a backend.
type Config struct {
	Client  Client
	APIKey  string
	BaseURL string
}

// ErrMissingAPIKey is returned when a backend requires a key that is not set.
var ErrMissingAPIKey = errors.New("llm api key not set")

// NewProvider creates a Provider for the configured backend.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Client {
	case OpenAI, "":
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Client)
	}
}
