package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/searchchat/internal/helpers"
	"github.com/mohammad-safakhou/searchchat/internal/llm"
)

type fakeGenerator struct {
	out   string
	err   error
	calls []llm.ObjectRequest
}

func (f *fakeGenerator) GenerateObject(_ context.Context, req llm.ObjectRequest) (json.RawMessage, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.out), nil
}

func newTestPlanner(t *testing.T, gen ObjectGenerator) *Planner {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 3, 4, 14, 7, 12, 0, time.UTC) }
	dates, err := helpers.NewDateTimeFormatter(helpers.DefaultTimeZone, clock)
	if err != nil {
		t.Fatalf("formatter: %v", err)
	}
	return New(gen, "planner-model", dates, nil)
}

func TestPlanReturnsExactCount(t *testing.T) {
	gen := &fakeGenerator{out: `{"queries":[
		{"query":"go 1.24 release notes","reasoning":"primary source"},
		{"query":"go 1.24 swiss tables","reasoning":"map internals","searchMode":"neural","dateRange":{"startPublishedDate":"2025-02-01"}}
	]}`}
	p := newTestPlanner(t, gen)
	specs, err := p.Plan(context.Background(), Request{Count: 2, ConversationContext: "Go releases", CurrentIntent: "what changed"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].Mode != "auto" || specs[0].DateRange != nil {
		t.Fatalf("unexpected first spec %+v", specs[0])
	}
	if specs[1].Mode != "neural" || specs[1].DateRange == nil || specs[1].DateRange.Start != "2025-02-01" {
		t.Fatalf("unexpected second spec %+v", specs[1])
	}
	req := gen.calls[0]
	if req.Model != "planner-model" {
		t.Fatalf("unexpected model %q", req.Model)
	}
	if !strings.Contains(req.Prompt, "generate exactly 2 search queries") || !strings.Contains(req.Prompt, "Mar 4, 2025, 9:07:12 AM EST") {
		t.Fatalf("prompt missing count or timestamp:\n%s", req.Prompt)
	}
	if !strings.Contains(string(req.Schema), `"minItems":2`) || !strings.Contains(string(req.Schema), `"maxItems":2`) {
		t.Fatalf("schema does not pin the count: %s", req.Schema)
	}
}

func TestPlanWrongCountIsPlanningFailure(t *testing.T) {
	gen := &fakeGenerator{out: `{"queries":[{"query":"a","reasoning":"b"}]}`}
	p := newTestPlanner(t, gen)
	_, err := p.Plan(context.Background(), Request{Count: 3, ConversationContext: "c", CurrentIntent: "i"})
	var pf *PlanningFailure
	if !errors.As(err, &pf) || pf.Count != 3 {
		t.Fatalf("expected PlanningFailure, got %v", err)
	}
}

func TestPlanModelErrorIsPlanningFailure(t *testing.T) {
	boom := errors.New("upstream down")
	p := newTestPlanner(t, &fakeGenerator{err: boom})
	_, err := p.Plan(context.Background(), Request{Count: 2, ConversationContext: "c", CurrentIntent: "i"})
	var pf *PlanningFailure
	if !errors.As(err, &pf) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped PlanningFailure, got %v", err)
	}
}

func TestPlanRejectsOutOfRangeCountWithoutCallingModel(t *testing.T) {
	gen := &fakeGenerator{}
	p := newTestPlanner(t, gen)
	for _, n := range []int{1, 7} {
		if _, err := p.Plan(context.Background(), Request{Count: n}); err == nil {
			t.Fatalf("expected error for count %d", n)
		}
	}
	if len(gen.calls) != 0 {
		t.Fatalf("model must not be called, got %d calls", len(gen.calls))
	}
}

func TestDecodePlanRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":      `queries`,
		"missing field": `{"queries":[{"query":"a"},{"query":"b","reasoning":"r"}]}`,
		"bad mode":      `{"queries":[{"query":"a","reasoning":"r","searchMode":"fuzzy"},{"query":"b","reasoning":"r"}]}`,
		"blank query":   `{"queries":[{"query":"  ","reasoning":"r"},{"query":"b","reasoning":"r"}]}`,
		"too many":      `{"queries":[{"query":"a","reasoning":"r"},{"query":"b","reasoning":"r"},{"query":"c","reasoning":"r"}]}`,
	}
	for name, doc := range cases {
		if _, err := DecodePlan([]byte(doc), 2); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodePlanAcceptsFencedObject(t *testing.T) {
	doc := "```json\n{\"queries\":[{\"query\":\"a\",\"reasoning\":\"r\"},{\"query\":\"b\",\"reasoning\":\"r\",\"searchMode\":\"neural\"}]}\n```"
	specs, err := DecodePlan([]byte(doc), 2)
	if err != nil {
		t.Fatalf("DecodePlan: %v", err)
	}
	if len(specs) != 2 || specs[0].Mode != "auto" || specs[1].Mode != "neural" {
		t.Fatalf("unexpected specs %+v", specs)
	}
}
