package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammad-safakhou/searchchat/internal/executor"
	"github.com/mohammad-safakhou/searchchat/internal/helpers"
	"github.com/mohammad-safakhou/searchchat/internal/llm"
	"github.com/mohammad-safakhou/searchchat/internal/planner"
)

const (
	SearchToolName    = "contextualWebSearch"
	SearchToolVersion = "v1"
	// FailureMessage is the only failure text the model sees for internal errors.
	FailureMessage = "Failed to execute search queries"
)

// Tool is a model-callable capability.
type Tool interface {
	Name() string
	Definition() llm.ToolDefinition
	Call(ctx context.Context, args string) (any, error)
}

// ArgumentError rejects tool arguments before any work is done. Its message
// is safe to show to the model.
type ArgumentError struct {
	Tool   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// ToolInvocationFailure hides an internal failure behind FailureMessage.
type ToolInvocationFailure struct {
	Err error
}

func (e *ToolInvocationFailure) Error() string { return FailureMessage }

func (e *ToolInvocationFailure) Unwrap() error { return e.Err }

// SearchArguments are the model supplied tool arguments.
type SearchArguments struct {
	NumberOfQueries     int    `json:"numberOfQueries"`
	ConversationContext string `json:"conversationContext"`
	CurrentIntent       string `json:"currentIntent"`
}

// SearchMetadata summarises one tool invocation.
type SearchMetadata struct {
	QueriesExecuted  int    `json:"queriesExecuted"`
	SearchDurationMs int64  `json:"searchDurationMs"`
	Timestamp        string `json:"timestamp"`
}

// SearchResult is returned to the model as the tool result.
type SearchResult struct {
	SearchMetadata SearchMetadata    `json:"searchMetadata"`
	Searches       []executor.Bundle `json:"searches"`
}

// QueryPlanner produces the query batch for an invocation.
type QueryPlanner interface {
	Plan(ctx context.Context, req planner.Request) ([]planner.QuerySpec, error)
}

// QueryExecutor runs a planned batch.
type QueryExecutor interface {
	Execute(ctx context.Context, specs []planner.QuerySpec) ([]executor.Bundle, error)
}

// ContextualSearchTool plans a batch of queries from the conversation and
// runs them in order.
type ContextualSearchTool struct {
	planner  QueryPlanner
	executor QueryExecutor
	dates    *helpers.DateTimeFormatter
	log      *logrus.Entry
}

func NewContextualSearchTool(p QueryPlanner, ex QueryExecutor, dates *helpers.DateTimeFormatter, log *logrus.Entry) *ContextualSearchTool {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ContextualSearchTool{planner: p, executor: ex, dates: dates, log: log}
}

func (t *ContextualSearchTool) Name() string { return SearchToolName }

// Description embeds the current timestamp so the model can reason about recency.
func (t *ContextualSearchTool) Description() string {
	return fmt.Sprintf("Executes a specified number of web searches based on your strategic decision. "+
		"You determine the number of searches (%d-%d) based on topic complexity and user needs. Current date is %s",
		planner.MinQueries, planner.MaxQueries, t.dates.Current())
}

func (t *ContextualSearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        SearchToolName,
		Description: t.Description(),
		Parameters:  SearchArgumentsSchema(),
	}
}

// Card describes the tool for the capability registry.
func (t *ContextualSearchTool) Card() (ToolCard, error) {
	return Seal(ToolCard{
		Name:        SearchToolName,
		Version:     SearchToolVersion,
		Description: "Plans and executes contextual web searches",
		InputSchema: SearchArgumentsSchema(),
		SideEffects: []string{"network"},
	})
}

// SearchArgumentsSchema is the JSON Schema advertised to the model and used
// to validate its arguments.
func SearchArgumentsSchema() json.RawMessage {
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"numberOfQueries", "conversationContext", "currentIntent"},
		"properties": map[string]any{
			"numberOfQueries": map[string]any{
				"type":        "integer",
				"minimum":     planner.MinQueries,
				"maximum":     planner.MaxQueries,
				"description": "Number of searches to perform (2-6), determined based on topic complexity and depth needed",
			},
			"conversationContext": map[string]any{
				"type":        "string",
				"pattern":     `\S`,
				"description": "Detailed Summary of the current conversation context and topic",
			},
			"currentIntent": map[string]any{
				"type":        "string",
				"pattern":     `\S`,
				"description": "The current user intent or area of curiosity with detail",
			},
		},
	}
	b, _ := json.Marshal(schema)
	return b
}

var (
	argsSchemaOnce sync.Once
	argsSchema     *jsonschema.Schema
	argsSchemaErr  error
)

func compiledArgumentsSchema() (*jsonschema.Schema, error) {
	argsSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("search_arguments.json", strings.NewReader(string(SearchArgumentsSchema()))); err != nil {
			argsSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		argsSchema, argsSchemaErr = compiler.Compile("search_arguments.json")
	})
	return argsSchema, argsSchemaErr
}

// ParseSearchArguments validates raw JSON arguments. Every violation is an
// *ArgumentError.
func ParseSearchArguments(raw string) (SearchArguments, error) {
	schema, err := compiledArgumentsSchema()
	if err != nil {
		return SearchArguments{}, err
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return SearchArguments{}, &ArgumentError{Tool: SearchToolName, Reason: "arguments are not valid JSON"}
	}
	if err := schema.Validate(doc); err != nil {
		return SearchArguments{}, &ArgumentError{Tool: SearchToolName, Reason: describeViolation(err)}
	}
	var wire struct {
		NumberOfQueries     float64 `json:"numberOfQueries"`
		ConversationContext string  `json:"conversationContext"`
		CurrentIntent       string  `json:"currentIntent"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return SearchArguments{}, &ArgumentError{Tool: SearchToolName, Reason: err.Error()}
	}
	return SearchArguments{
		NumberOfQueries:     int(wire.NumberOfQueries),
		ConversationContext: wire.ConversationContext,
		CurrentIntent:       wire.CurrentIntent,
	}, nil
}

// describeViolation flattens a schema error into "location: message" pairs.
func describeViolation(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	var walk func(v *jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			loc := strings.TrimPrefix(v.InstanceLocation, "/")
			if loc == "" {
				msgs = append(msgs, v.Message)
			} else {
				msgs = append(msgs, loc+": "+v.Message)
			}
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}

// Call implements Tool.
func (t *ContextualSearchTool) Call(ctx context.Context, args string) (any, error) {
	parsed, err := ParseSearchArguments(args)
	if err != nil {
		return nil, err
	}
	return t.Search(ctx, parsed)
}

// Search plans and executes args.NumberOfQueries queries. Planning and
// search failures are logged and returned as *ToolInvocationFailure.
func (t *ContextualSearchTool) Search(ctx context.Context, args SearchArguments) (SearchResult, error) {
	ctx, span := otel.Tracer("searchchat/capability").Start(ctx, "tool."+SearchToolName)
	defer span.End()
	span.SetAttributes(attribute.Int("search.queries", args.NumberOfQueries))

	start := time.Now()
	log := t.log.WithField("tool", SearchToolName)
	log.WithFields(logrus.Fields{"queries": args.NumberOfQueries, "intent": args.CurrentIntent}).Info("search strategy")

	fail := func(err error) (SearchResult, error) {
		log.WithFields(logrus.Fields{"kind": fmt.Sprintf("%T", err), "error": err.Error()}).Error("search execution failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, FailureMessage)
		return SearchResult{}, &ToolInvocationFailure{Err: err}
	}

	specs, err := t.planner.Plan(ctx, planner.Request{
		Count:               args.NumberOfQueries,
		ConversationContext: args.ConversationContext,
		CurrentIntent:       args.CurrentIntent,
	})
	if err != nil {
		return fail(err)
	}
	bundles, err := t.executor.Execute(ctx, specs)
	if err != nil {
		return fail(err)
	}

	elapsed := time.Since(start)
	log.WithFields(logrus.Fields{"duration_ms": elapsed.Milliseconds(), "executed": len(bundles)}).Info("search summary")
	return SearchResult{
		SearchMetadata: SearchMetadata{
			QueriesExecuted:  len(bundles),
			SearchDurationMs: elapsed.Milliseconds(),
			Timestamp:        t.dates.Current(),
		},
		Searches: bundles,
	}, nil
}
