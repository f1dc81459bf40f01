package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mohammad-safakhou/searchchat/internal/helpers"
)

// OpenAIProvider talks to any OpenAI compatible chat completions endpoint.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider; an empty baseURL uses api.openai.com.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// ChatStream starts one streamed completion. Parallel tool calls are disabled.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest) (Stream, error) {
	creq := openai.ChatCompletionRequest{
		Model:         req.Model,
		Messages:      toOpenAIMessages(req.Messages),
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if len(req.Tools) > 0 {
		creq.Tools = make([]openai.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			creq.Tools = append(creq.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		choice := req.ToolChoice
		if choice == "" {
			choice = ToolChoiceAuto
		}
		creq.ToolChoice = string(choice)
		creq.ParallelToolCalls = false
	}
	s, err := p.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("create chat stream: %w", err)
	}
	return &openaiStream{stream: s, calls: map[int]*ToolCall{}}, nil
}

// GenerateObject requests JSON schema constrained output. Strict mode is off
// because strict schemas reject minItems/maxItems; callers validate locally.
func (p *OpenAIProvider) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Name,
				Schema: req.Schema,
				Strict: false,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no completion choices returned")
	}
	content := resp.Choices[0].Message.Content
	if !json.Valid([]byte(content)) {
		block, err := helpers.ExtractJSON(content)
		if err != nil || !json.Valid([]byte(block)) {
			return nil, fmt.Errorf("model returned invalid JSON: %.200q", content)
		}
		content = block
	}
	return json.RawMessage(content), nil
}

func toOpenAIMessages(in []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		msg := openai.ChatCompletionMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

// openaiStream turns chunk deltas into Events. Tool call fragments are
// accumulated by index and emitted whole once the upstream stream ends, followed
// by a single EventFinish.
type openaiStream struct {
	stream  *openai.ChatCompletionStream
	pending []Event
	calls   map[int]*ToolCall
	order   []int
	finish  string
	usage   Usage
	done    bool
}

func (s *openaiStream) Recv() (Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return Event{}, io.EOF
		}
		chunk, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.flush()
			continue
		}
		if err != nil {
			return Event{}, fmt.Errorf("chat stream: %w", err)
		}
		s.consume(chunk)
	}
}

func (s *openaiStream) consume(chunk openai.ChatCompletionStreamResponse) {
	if chunk.Usage != nil {
		s.usage = Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}
	for _, choice := range chunk.Choices {
		d := choice.Delta
		if d.ReasoningContent != "" {
			s.pending = append(s.pending, Event{Type: EventReasoning, Text: d.ReasoningContent})
		}
		if d.Content != "" {
			s.pending = append(s.pending, Event{Type: EventText, Text: d.Content})
		}
		for i, tc := range d.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := s.calls[idx]
			if !ok {
				call = &ToolCall{}
				s.calls[idx] = call
				s.order = append(s.order, idx)
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Name = tc.Function.Name
			}
			call.Arguments += tc.Function.Arguments
		}
		if choice.FinishReason != "" {
			s.finish = string(choice.FinishReason)
		}
	}
}

func (s *openaiStream) flush() {
	sort.Ints(s.order)
	for _, idx := range s.order {
		call := *s.calls[idx]
		s.pending = append(s.pending, Event{Type: EventToolCall, ToolCall: &call})
	}
	s.pending = append(s.pending, Event{Type: EventFinish, FinishReason: s.finish, Usage: s.usage})
	s.done = true
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}
