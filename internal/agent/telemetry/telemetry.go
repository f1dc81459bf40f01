package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/searchchat/internal/executor"
	"github.com/mohammad-safakhou/searchchat/internal/llm"
)

// ResultPreviewLength bounds tool results in step logs.
const ResultPreviewLength = 100

// ToolResultEvent is a tool outcome as seen by the orchestrator.
type ToolResultEvent struct {
	ToolCallID string
	Name       string
	Result     string
	Err        error
	Duration   time.Duration
}

// StepEvent is what the orchestrator knows once a model step finishes.
type StepEvent struct {
	RequestID    string
	Step         int
	FinishReason string
	Text         string
	Reasoning    string
	ToolCalls    []llm.ToolCall
	ToolResults  []ToolResultEvent
	Usage        llm.Usage
	Duration     time.Duration
}

// Telemetry logs step diagnostics and feeds the Prometheus collectors. It is
// observational only.
type Telemetry struct {
	logger *logrus.Entry
}

func New(logger *logrus.Entry) *Telemetry {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Telemetry{logger: logger.WithField("component", "telemetry")}
}

// RecordStep logs one step and updates step, token and tool metrics.
func (t *Telemetry) RecordStep(ctx context.Context, ev StepEvent) {
	reason := ev.FinishReason
	if reason == "" {
		reason = "unknown"
	}
	llmStepsTotal.WithLabelValues(reason).Inc()
	llmStepDuration.Observe(ev.Duration.Seconds())
	llmTokensTotal.WithLabelValues("input").Add(float64(ev.Usage.PromptTokens))
	llmTokensTotal.WithLabelValues("output").Add(float64(ev.Usage.CompletionTokens))

	log := t.logger.WithFields(logrus.Fields{
		"request_id":        ev.RequestID,
		"step":              ev.Step,
		"finish_reason":     reason,
		"prompt_tokens":     ev.Usage.PromptTokens,
		"completion_tokens": ev.Usage.CompletionTokens,
		"total_tokens":      ev.Usage.TotalTokens,
		"duration_ms":       ev.Duration.Milliseconds(),
	})
	if ev.Text != "" {
		log = log.WithField("text", ev.Text)
	}
	if ev.Reasoning != "" {
		log = log.WithField("reasoning", ev.Reasoning)
	}
	log.Info("step finished")

	for _, call := range ev.ToolCalls {
		log.WithFields(logrus.Fields{"tool": call.Name, "tool_call_id": call.ID, "args": call.Arguments}).Info("tool call")
	}
	for _, res := range ev.ToolResults {
		status := "success"
		entry := log.WithFields(logrus.Fields{"tool": res.Name, "tool_call_id": res.ToolCallID, "result": Truncate(res.Result, ResultPreviewLength)})
		if res.Err != nil {
			status = "error"
			entry = entry.WithError(res.Err)
		}
		toolInvocationsTotal.WithLabelValues(res.Name, status).Inc()
		toolDuration.WithLabelValues(res.Name).Observe(res.Duration.Seconds())
		entry.Info("tool result")
	}
}

// ChatStarted marks a chat request as streaming.
func (t *Telemetry) ChatStarted() { chatsActive.Inc() }

// ChatFinished records the outcome of a chat request.
func (t *Telemetry) ChatFinished(err error) {
	chatsActive.Dec()
	if err != nil {
		chatRequestsTotal.WithLabelValues("error").Inc()
		return
	}
	chatRequestsTotal.WithLabelValues("success").Inc()
}

// ExecutorMetrics adapts the search collectors to executor callbacks.
func (t *Telemetry) ExecutorMetrics() executor.Metrics {
	return executor.Metrics{
		QueryDuration: func(_ context.Context, mode string, d time.Duration) {
			searchQueriesTotal.WithLabelValues(mode, "success").Inc()
			searchDuration.WithLabelValues(mode).Observe(d.Seconds())
		},
		QueryFailed: func(_ context.Context, mode string) {
			searchQueriesTotal.WithLabelValues(mode, "error").Inc()
		},
	}
}

// Truncate shortens s to n bytes plus "..." when it is longer.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
