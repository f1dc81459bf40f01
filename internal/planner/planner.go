package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammad-safakhou/searchchat/internal/helpers"
	"github.com/mohammad-safakhou/searchchat/internal/llm"
)

// DateRange bounds the publication date of results. Either side may be empty.
type DateRange struct {
	Start string `json:"startPublishedDate,omitempty"`
	End   string `json:"endPublishedDate,omitempty"`
}

// QuerySpec is one planned search.
type QuerySpec struct {
	Query     string     `json:"query"`
	Reasoning string     `json:"reasoning"`
	Mode      string     `json:"searchMode"`
	DateRange *DateRange `json:"dateRange,omitempty"`
}

// Request is the planner input.
type Request struct {
	Count               int
	ConversationContext string
	CurrentIntent       string
}

// PlanningFailure reports that no usable batch of exactly Count queries
// could be produced.
type PlanningFailure struct {
	Count int
	Err   error
}

func (e *PlanningFailure) Error() string {
	return fmt.Sprintf("planning %d queries: %v", e.Count, e.Err)
}

func (e *PlanningFailure) Unwrap() error { return e.Err }

// ObjectGenerator is the slice of llm.Provider the planner needs.
type ObjectGenerator interface {
	GenerateObject(ctx context.Context, req llm.ObjectRequest) (json.RawMessage, error)
}

// Planner turns a conversation summary and intent into N diverse queries.
type Planner struct {
	gen   ObjectGenerator
	model string
	dates *helpers.DateTimeFormatter
	log   *logrus.Entry
}

func New(gen ObjectGenerator, model string, dates *helpers.DateTimeFormatter, log *logrus.Entry) *Planner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Planner{gen: gen, model: model, dates: dates, log: log}
}

// Plan asks the model for exactly req.Count queries. Any failure, including a
// wrong count, is a *PlanningFailure.
func (p *Planner) Plan(ctx context.Context, req Request) ([]QuerySpec, error) {
	ctx, span := otel.Tracer("searchchat/planner").Start(ctx, "planner.Plan")
	defer span.End()
	span.SetAttributes(attribute.Int("planner.count", req.Count))

	fail := func(err error) ([]QuerySpec, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &PlanningFailure{Count: req.Count, Err: err}
	}
	if req.Count < MinQueries || req.Count > MaxQueries {
		return fail(fmt.Errorf("count must be between %d and %d", MinQueries, MaxQueries))
	}

	raw, err := p.gen.GenerateObject(ctx, llm.ObjectRequest{
		Model:  p.model,
		Name:   "search_queries",
		Schema: PlanSchemaJSON(req.Count),
		Prompt: Prompt(req, p.dates.Current()),
	})
	if err != nil {
		return fail(err)
	}
	specs, err := DecodePlan(raw, req.Count)
	if err != nil {
		return fail(err)
	}
	p.log.WithFields(logrus.Fields{"count": req.Count, "queries": queryTexts(specs)}).Info("planned search queries")
	return specs, nil
}

func queryTexts(specs []QuerySpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Query
	}
	return out
}

// Prompt renders the planning instructions for req at the given timestamp.
func Prompt(req Request, now string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following context, generate exactly %d search queries to gather comprehensive information:\n\n", req.Count)
	fmt.Fprintf(&b, "Conversation Context: %s\n", req.ConversationContext)
	fmt.Fprintf(&b, "Current User Intent: %s\n", req.CurrentIntent)
	fmt.Fprintf(&b, "Current Date: %s\n\n", now)
	fmt.Fprintf(&b, "Generate %d queries that:\n", req.Count)
	b.WriteString(`- Cover different aspects of the topic
- Are specific and focused
- Will yield relevant but diverse results
- Help build a comprehensive understanding
- Consider time sensitivity of the topic

Time Sensitivity Guidelines:
- For current events or recent developments, specify date ranges
- For timeless topics (concepts, definitions), skip date filtering
- Common date range patterns:
  * Last week: startPublishedDate = "YYYY-MM-DD" (7 days ago)
  * Last month: startPublishedDate = "YYYY-MM-DD" (30 days ago)
  * Last year: startPublishedDate = "YYYY-MM-DD" (1 year ago)
  * Custom range: both startPublishedDate and endPublishedDate

Search Mode:
- keyword for exact names, error messages, product codes
- neural for conceptual or exploratory questions
- omit or use auto when unsure

For each query, provide:
1. The search query
2. Reasoning for how this query contributes to the overall information gathering strategy
3. Date range requirements (if applicable for time-sensitive topics)`)
	return b.String()
}
