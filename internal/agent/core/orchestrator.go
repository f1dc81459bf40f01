package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/searchchat/internal/agent/telemetry"
	"github.com/mohammad-safakhou/searchchat/internal/capability"
	"github.com/mohammad-safakhou/searchchat/internal/helpers"
	"github.com/mohammad-safakhou/searchchat/internal/llm"
	"github.com/mohammad-safakhou/searchchat/internal/message"
)

const (
	DefaultMaxSteps    = 6
	DefaultMaxDuration = 300 * time.Second
	// GenerationFailureMessage is the only error text clients ever see.
	GenerationFailureMessage = "An error occurred while generating the response. Please try again."
)

// State is the lifecycle of one chat request.
type State string

const (
	StateReceived   State = "received"
	StateStreaming  State = "streaming"
	StateToolInvoke State = "tool_invoked"
	StateToolResult State = "tool_result"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// GenerationFailure wraps any error that ends a chat request. Its message is
// the fixed user-safe text.
type GenerationFailure struct {
	Err error
}

func (e *GenerationFailure) Error() string { return GenerationFailureMessage }

func (e *GenerationFailure) Unwrap() error { return e.Err }

// Sink receives the response as it is produced.
type Sink interface {
	StartMessage(id string) error
	Text(delta string) error
	Reasoning(delta string) error
	RedactedReasoning(data string) error
	ToolCall(call llm.ToolCall) error
	ToolResult(call llm.ToolCall, result any) error
	FinishStep(reason string, usage llm.Usage, continued bool) error
	Finish(reason string, usage llm.Usage) error
}

// Config wires an Orchestrator.
type Config struct {
	Provider      llm.Provider
	Model         string
	Temperature   float32
	MaxSteps      int
	MaxDuration   time.Duration
	SendReasoning bool
	Tools         []capability.Tool
	// Registry, when set, must hold a card for every tool; the card schema
	// is what the model sees.
	Registry     *capability.Registry
	Capabilities Capabilities
	Dates        *helpers.DateTimeFormatter
	Telemetry    *telemetry.Telemetry
	Logger       *logrus.Entry
}

// Result summarises a finished request.
type Result struct {
	Turn         message.Turn
	State        State
	Steps        int
	FinishReason string
	Usage        llm.Usage
}

// Orchestrator runs the model/tool loop for one request at a time; it keeps
// no state between requests.
type Orchestrator struct {
	provider      llm.Provider
	model         string
	temperature   float32
	maxSteps      int
	maxDuration   time.Duration
	sendReasoning bool
	tools         map[string]capability.Tool
	definitions   func() []llm.ToolDefinition
	caps          Capabilities
	dates         *helpers.DateTimeFormatter
	telemetry     *telemetry.Telemetry
	logger        *logrus.Entry
}

var orchestratorTracer trace.Tracer = otel.Tracer("searchchat/internal/agent/orchestrator")

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("llm provider is required")
	}
	if cfg.Dates == nil {
		return nil, errors.New("date formatter is required")
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	maxDuration := cfg.MaxDuration
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	tel := cfg.Telemetry
	if tel == nil {
		tel = telemetry.New(logger)
	}
	tools := make(map[string]capability.Tool, len(cfg.Tools))
	ordered := append([]capability.Tool(nil), cfg.Tools...)
	if cfg.Registry != nil {
		resolved, err := cfg.Registry.Resolve(ordered)
		if err != nil {
			return nil, fmt.Errorf("resolve tools: %w", err)
		}
		ordered = resolved
	}
	for _, t := range ordered {
		tools[t.Name()] = t
	}
	return &Orchestrator{
		provider:      cfg.Provider,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxSteps:      maxSteps,
		maxDuration:   maxDuration,
		sendReasoning: cfg.SendReasoning,
		tools:         tools,
		definitions: func() []llm.ToolDefinition {
			defs := make([]llm.ToolDefinition, 0, len(ordered))
			for _, t := range ordered {
				defs = append(defs, t.Definition())
			}
			return defs
		},
		caps:      cfg.Capabilities,
		dates:     cfg.Dates,
		telemetry: tel,
		logger:    logger.WithField("component", "orchestrator"),
	}, nil
}

// MaxSteps is the step ceiling for a request.
func (o *Orchestrator) MaxSteps() int { return o.maxSteps }

// SystemPrompt renders the prompt for the current instant.
func (o *Orchestrator) SystemPrompt() string {
	return SystemPrompt(o.dates.Current(), o.caps)
}

// Run streams one assistant response for history into sink. Every failure is
// returned as *GenerationFailure. The whole request is bounded by the
// configured max duration.
func (o *Orchestrator) Run(ctx context.Context, history []message.Turn, sink Sink) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.maxDuration)
	defer cancel()
	ctx, span := orchestratorTracer.Start(ctx, "chat.Run")
	defer span.End()

	requestID := uuid.NewString()
	log := o.logger.WithField("request_id", requestID)
	res := Result{State: StateReceived}
	asm := message.NewAssembler("msg-" + requestID)

	fail := func(err error) (Result, error) {
		res.State = StateFailed
		res.Turn = asm.Turn()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).WithField("steps", res.Steps).Error("chat generation failed")
		return res, &GenerationFailure{Err: err}
	}

	if len(history) > 0 {
		last := history[len(history)-1]
		log.WithFields(logrus.Fields{"role": last.Role, "content": last.Content}).Info("new chat request")
	}

	messages := make([]llm.Message, 0, len(history)+1+2*o.maxSteps)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: o.SystemPrompt()})
	for _, t := range history {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	defs := o.definitions()

	if err := sink.StartMessage(asm.Turn().ID); err != nil {
		return fail(err)
	}
	res.State = StateStreaming

	for step := 1; step <= o.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		res.Steps = step
		choice := llm.ToolChoiceAuto
		if step == o.maxSteps {
			choice = llm.ToolChoiceNone
		}
		out, err := o.streamStep(ctx, step, messages, defs, choice, asm, sink)
		if err != nil {
			return fail(err)
		}
		res.Usage = addUsage(res.Usage, out.usage)
		res.FinishReason = out.finishReason

		ev := telemetry.StepEvent{
			RequestID:    requestID,
			Step:         step,
			FinishReason: out.finishReason,
			Text:         out.text,
			Reasoning:    out.reasoning,
			Usage:        out.usage,
			Duration:     out.duration,
		}

		call, ok := o.selectCall(out.calls, choice, log)
		if !ok {
			o.telemetry.RecordStep(ctx, ev)
			if err := sink.FinishStep(out.finishReason, out.usage, false); err != nil {
				return fail(err)
			}
			break
		}

		res.State = StateToolInvoke
		ev.ToolCalls = []llm.ToolCall{call}
		if err := sink.ToolCall(call); err != nil {
			return fail(err)
		}
		result, content, tr := o.invoke(ctx, call)
		ev.ToolResults = []telemetry.ToolResultEvent{tr}
		o.telemetry.RecordStep(ctx, ev)
		if err := sink.ToolResult(call, result); err != nil {
			return fail(err)
		}
		res.State = StateToolResult

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: out.text, ToolCalls: []llm.ToolCall{call}},
			llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: content},
		)
		if err := sink.FinishStep(out.finishReason, out.usage, true); err != nil {
			return fail(err)
		}
		res.State = StateStreaming
	}

	res.State = StateCompleted
	res.Turn = asm.Turn()
	span.SetAttributes(attribute.Int("chat.steps", res.Steps), attribute.Int("chat.total_tokens", res.Usage.TotalTokens))
	if err := sink.Finish(res.FinishReason, res.Usage); err != nil {
		return fail(err)
	}
	return res, nil
}

type stepOutput struct {
	text         string
	reasoning    string
	calls        []llm.ToolCall
	finishReason string
	usage        llm.Usage
	duration     time.Duration
}

func (o *Orchestrator) streamStep(ctx context.Context, step int, messages []llm.Message, defs []llm.ToolDefinition, choice llm.ToolChoice, asm *message.Assembler, sink Sink) (stepOutput, error) {
	ctx, span := orchestratorTracer.Start(ctx, "chat.step")
	defer span.End()
	span.SetAttributes(attribute.Int("chat.step", step), attribute.String("chat.tool_choice", string(choice)))

	start := time.Now()
	stream, err := o.provider.ChatStream(ctx, llm.ChatRequest{
		Model:       o.model,
		Messages:    messages,
		Tools:       defs,
		ToolChoice:  choice,
		Temperature: o.temperature,
	})
	if err != nil {
		return stepOutput{}, err
	}
	defer stream.Close()

	var (
		out       stepOutput
		text      strings.Builder
		reasoning strings.Builder
	)
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stepOutput{}, err
		}
		switch ev.Type {
		case llm.EventText:
			text.WriteString(ev.Text)
			asm.Text(ev.Text)
			if err := sink.Text(ev.Text); err != nil {
				return stepOutput{}, err
			}
		case llm.EventReasoning:
			reasoning.WriteString(ev.Text)
			asm.Reasoning(ev.Text)
			if o.sendReasoning {
				if err := sink.Reasoning(ev.Text); err != nil {
					return stepOutput{}, err
				}
			}
		case llm.EventRedactedReasoning:
			asm.Redacted(ev.Text)
			if o.sendReasoning {
				if err := sink.RedactedReasoning(ev.Text); err != nil {
					return stepOutput{}, err
				}
			}
		case llm.EventToolCall:
			out.calls = append(out.calls, *ev.ToolCall)
		case llm.EventFinish:
			out.finishReason = ev.FinishReason
			out.usage = ev.Usage
		}
	}
	out.text = text.String()
	out.reasoning = reasoning.String()
	out.duration = time.Since(start)
	return out, nil
}

// selectCall enforces at most one tool invocation per step and none on the
// final step.
func (o *Orchestrator) selectCall(calls []llm.ToolCall, choice llm.ToolChoice, log *logrus.Entry) (llm.ToolCall, bool) {
	if len(calls) == 0 {
		return llm.ToolCall{}, false
	}
	if choice == llm.ToolChoiceNone {
		log.WithField("calls", len(calls)).Warn("ignoring tool calls on final step")
		return llm.ToolCall{}, false
	}
	if len(calls) > 1 {
		log.WithField("calls", len(calls)).Warn("model returned several tool calls, invoking the first")
	}
	call := calls[0]
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	return call, true
}

// invoke runs a tool call and returns the client-facing result, the content
// sent back to the model and the telemetry record.
func (o *Orchestrator) invoke(ctx context.Context, call llm.ToolCall) (any, string, telemetry.ToolResultEvent) {
	start := time.Now()
	tr := telemetry.ToolResultEvent{ToolCallID: call.ID, Name: call.Name}

	var (
		result any
		err    error
	)
	tool, ok := o.tools[call.Name]
	if !ok {
		err = &capability.ArgumentError{Tool: call.Name, Reason: "unknown tool"}
	} else {
		result, err = tool.Call(ctx, call.Arguments)
	}
	tr.Duration = time.Since(start)
	if err != nil {
		tr.Err = err
		result = map[string]string{"error": modelVisibleError(err)}
	}
	b, mErr := json.Marshal(result)
	if mErr != nil {
		tr.Err = mErr
		result = map[string]string{"error": capability.FailureMessage}
		b, _ = json.Marshal(result)
	}
	tr.Result = string(b)
	return result, string(b), tr
}

func modelVisibleError(err error) string {
	var argErr *capability.ArgumentError
	if errors.As(err, &argErr) {
		return argErr.Error()
	}
	return capability.FailureMessage
}

func addUsage(a, b llm.Usage) llm.Usage {
	return llm.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}

// Describe renders a compact summary of a finished request for CLI output.
func (r Result) Describe() string {
	return fmt.Sprintf("%s after %d step(s), %d tokens", r.State, r.Steps, r.Usage.TotalTokens)
}
