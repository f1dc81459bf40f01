package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/searchchat/internal/llm"
)

// Data stream protocol frame codes understood by the web client's useChat hook.
const (
	frameText       = "0"
	frameError      = "3"
	frameToolCall   = "9"
	frameToolResult = "a"
	frameFinish     = "d"
	frameStepFinish = "e"
	frameStart      = "f"
	frameReasoning  = "g"
	frameRedacted   = "i"

	headerDataStream = "X-Vercel-AI-Data-Stream"
)

type usagePayload struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// DataStreamWriter renders orchestrator events as data stream frames, one
// "<code>:<json>\n" line per event, flushing after each.
type DataStreamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func NewDataStreamWriter(w http.ResponseWriter) *DataStreamWriter {
	f, _ := w.(http.Flusher)
	return &DataStreamWriter{w: w, flusher: f}
}

// WriteHeaders sets the streaming headers and commits the response.
func (d *DataStreamWriter) WriteHeaders() {
	h := d.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set(headerDataStream, "v1")
	d.w.WriteHeader(http.StatusOK)
}

func (d *DataStreamWriter) frame(code string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", code, err)
	}
	if _, err := fmt.Fprintf(d.w, "%s:%s\n", code, b); err != nil {
		return err
	}
	if d.flusher != nil {
		d.flusher.Flush()
	}
	return nil
}

func (d *DataStreamWriter) StartMessage(id string) error {
	return d.frame(frameStart, map[string]string{"messageId": id})
}

func (d *DataStreamWriter) Text(delta string) error { return d.frame(frameText, delta) }

func (d *DataStreamWriter) Reasoning(delta string) error { return d.frame(frameReasoning, delta) }

func (d *DataStreamWriter) RedactedReasoning(data string) error {
	return d.frame(frameRedacted, map[string]string{"data": data})
}

func (d *DataStreamWriter) ToolCall(call llm.ToolCall) error {
	args := json.RawMessage(call.Arguments)
	if !json.Valid(args) {
		b, _ := json.Marshal(call.Arguments)
		args = b
	}
	return d.frame(frameToolCall, map[string]any{
		"toolCallId": call.ID,
		"toolName":   call.Name,
		"args":       args,
	})
}

func (d *DataStreamWriter) ToolResult(call llm.ToolCall, result any) error {
	return d.frame(frameToolResult, map[string]any{"toolCallId": call.ID, "result": result})
}

func (d *DataStreamWriter) FinishStep(reason string, usage llm.Usage, continued bool) error {
	return d.frame(frameStepFinish, map[string]any{
		"finishReason": finishReason(reason),
		"usage":        usagePayload{PromptTokens: usage.PromptTokens, CompletionTokens: usage.CompletionTokens},
		"isContinued":  continued,
	})
}

func (d *DataStreamWriter) Finish(reason string, usage llm.Usage) error {
	return d.frame(frameFinish, map[string]any{
		"finishReason": finishReason(reason),
		"usage":        usagePayload{PromptTokens: usage.PromptTokens, CompletionTokens: usage.CompletionTokens},
	})
}

// Error writes a terminal error frame carrying msg.
func (d *DataStreamWriter) Error(msg string) error { return d.frame(frameError, msg) }

// finishReason maps provider finish reasons onto the protocol's vocabulary.
func finishReason(r string) string {
	switch r {
	case "stop", "length":
		return r
	case "tool_calls", "function_call":
		return "tool-calls"
	case "content_filter":
		return "content-filter"
	case "":
		return "unknown"
	default:
		return "other"
	}
}
