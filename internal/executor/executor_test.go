package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mohammad-safakhou/searchchat/internal/planner"
	"github.com/mohammad-safakhou/searchchat/internal/search"
)

type stubSearcher struct {
	queries []search.Query
	starts  []time.Time
	failAt  int
	resp    func(q search.Query) search.Response
}

func (s *stubSearcher) Search(ctx context.Context, q search.Query) (search.Response, error) {
	s.queries = append(s.queries, q)
	s.starts = append(s.starts, time.Now())
	if s.failAt > 0 && len(s.queries) == s.failAt {
		return search.Response{}, errors.New("backend unavailable")
	}
	if s.resp != nil {
		return s.resp(q), nil
	}
	return search.Response{Results: []search.Result{{Title: q.Text, URL: "https://example.com"}}}, nil
}

func specs(n int) []planner.QuerySpec {
	out := make([]planner.QuerySpec, n)
	for i := range out {
		out[i] = planner.QuerySpec{Query: fmt.Sprintf("q%d", i+1), Reasoning: "r", Mode: "auto"}
	}
	return out
}

func TestExecuteRunsInOrderWithDelayBetweenCalls(t *testing.T) {
	s := &stubSearcher{}
	ex := New(s)
	bundles, err := ex.Execute(context.Background(), specs(3))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(bundles) != 3 || len(s.queries) != 3 {
		t.Fatalf("expected 3 calls, got %d bundles and %d calls", len(bundles), len(s.queries))
	}
	for i, q := range s.queries {
		if q.Text != fmt.Sprintf("q%d", i+1) {
			t.Fatalf("call %d out of order: %q", i, q.Text)
		}
		if bundles[i].Query != q.Text {
			t.Fatalf("bundle %d does not match call: %q", i, bundles[i].Query)
		}
	}
	for i := 1; i < len(s.starts); i++ {
		if gap := s.starts[i].Sub(s.starts[i-1]); gap < DefaultDelay {
			t.Fatalf("calls %d and %d only %v apart", i, i+1, gap)
		}
	}
}

func TestExecuteSleepsOnlyBetweenCalls(t *testing.T) {
	var sleeps int
	ex := New(&stubSearcher{}, WithSleeper(func(ctx context.Context, d time.Duration) error {
		if d != DefaultDelay {
			t.Fatalf("unexpected delay %v", d)
		}
		sleeps++
		return nil
	}))
	if _, err := ex.Execute(context.Background(), specs(4)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if sleeps != 3 {
		t.Fatalf("expected 3 delays for 4 calls, got %d", sleeps)
	}
}

func TestExecuteAbortsOnFirstFailure(t *testing.T) {
	s := &stubSearcher{failAt: 2}
	ex := New(s, WithDelay(0))
	_, err := ex.Execute(context.Background(), specs(3))
	var ef *ExecutionFailure
	if !errors.As(err, &ef) {
		t.Fatalf("expected ExecutionFailure, got %v", err)
	}
	if ef.Index != 1 || ef.Query != "q2" {
		t.Fatalf("unexpected failure %+v", ef)
	}
	if len(s.queries) != 2 {
		t.Fatalf("query 3 must not run, got %d calls", len(s.queries))
	}
}

func TestExecuteBuildsSearchParameters(t *testing.T) {
	s := &stubSearcher{}
	ex := New(s, WithDelay(0))
	in := []planner.QuerySpec{
		{Query: "a", Reasoning: "r", Mode: "keyword", DateRange: &planner.DateRange{Start: "2025-01-01"}},
		{Query: "b", Reasoning: "r"},
	}
	bundles, err := ex.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	q := s.queries[0]
	if q.NumResults != 4 || q.Highlights.PerURL != 4 || q.Highlights.NumSentences != 3 || !q.Summary {
		t.Fatalf("unexpected query parameters %+v", q)
	}
	if q.Mode != search.ModeKeyword || q.StartPublished != "2025-01-01" || q.EndPublished != "" {
		t.Fatalf("unexpected mode or dates %+v", q)
	}
	if s.queries[1].Mode != search.ModeAuto || s.queries[1].StartPublished != "" {
		t.Fatalf("unexpected second query %+v", s.queries[1])
	}
	if bundles[1].Mode != "auto" || bundles[0].DateRange.Start != "2025-01-01" {
		t.Fatalf("unexpected bundles %+v", bundles)
	}
}

func TestExecuteCapsResultsAndHighlights(t *testing.T) {
	s := &stubSearcher{resp: func(search.Query) search.Response {
		var rs []search.Result
		for i := 0; i < 6; i++ {
			rs = append(rs, search.Result{URL: fmt.Sprintf("https://e.com/%d", i), Highlights: []string{"1", "2", "3", "4", "5"}})
		}
		return search.Response{Results: rs}
	}}
	bundles, err := New(s, WithDelay(0)).Execute(context.Background(), specs(2))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := bundles[0].Results.Results
	if len(res) != ResultsPerQuery || len(res[0].Highlights) != HighlightsPerURL {
		t.Fatalf("results not capped: %d results, %d highlights", len(res), len(res[0].Highlights))
	}
}

func TestExecuteWithLimits(t *testing.T) {
	s := &stubSearcher{resp: func(search.Query) search.Response {
		return search.Response{Results: []search.Result{
			{URL: "https://e.com/1", Highlights: []string{"1", "2", "3"}},
			{URL: "https://e.com/2"},
			{URL: "https://e.com/3"},
		}}
	}}
	bundles, err := New(s, WithDelay(0), WithLimits(Limits{Results: 2, HighlightsPerURL: 1})).Execute(context.Background(), specs(2))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if q := s.queries[0]; q.NumResults != 2 || q.Highlights.PerURL != 1 || q.Highlights.NumSentences != HighlightSentences {
		t.Fatalf("limits not forwarded: %+v", q)
	}
	res := bundles[0].Results.Results
	if len(res) != 2 || len(res[0].Highlights) != 1 {
		t.Fatalf("limits not applied: %+v", res)
	}
}

func TestExecuteStopsWhenContextCancelledDuringDelay(t *testing.T) {
	s := &stubSearcher{}
	ctx, cancel := context.WithCancel(context.Background())
	ex := New(s, WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	_, err := ex.Execute(ctx, specs(3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(s.queries) != 1 {
		t.Fatalf("expected one call before cancellation, got %d", len(s.queries))
	}
}

func TestExecuteMetricsCallbacks(t *testing.T) {
	var ok, failed int
	ex := New(&stubSearcher{failAt: 2}, WithDelay(0), WithMetrics(Metrics{
		QueryDuration: func(context.Context, string, time.Duration) { ok++ },
		QueryFailed:   func(context.Context, string) { failed++ },
	}))
	_, _ = ex.Execute(context.Background(), specs(2))
	if ok != 1 || failed != 1 {
		t.Fatalf("unexpected metric calls ok=%d failed=%d", ok, failed)
	}
}
