package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammad-safakhou/searchchat/internal/planner"
	"github.com/mohammad-safakhou/searchchat/internal/search"
)

// Per-call search settings.
const (
	ResultsPerQuery    = 4
	HighlightsPerURL   = 4
	HighlightSentences = 3
	DefaultDelay       = 200 * time.Millisecond
)

// Bundle pairs a planned query with what the search backend returned.
type Bundle struct {
	Query     string             `json:"query"`
	Reasoning string             `json:"reasoning"`
	Mode      string             `json:"searchMode"`
	DateRange *planner.DateRange `json:"dateRange,omitempty"`
	Results   search.Response    `json:"results"`
}

// ExecutionFailure aborts a batch at the query with the given index.
type ExecutionFailure struct {
	Index int
	Query string
	Err   error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("search %d (%q): %v", e.Index+1, e.Query, e.Err)
}

func (e *ExecutionFailure) Unwrap() error { return e.Err }

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Metrics aggregates optional telemetry callbacks.
type Metrics struct {
	QueryDuration func(ctx context.Context, mode string, d time.Duration)
	QueryFailed   func(ctx context.Context, mode string)
}

// Executor runs planned queries one at a time with a fixed pause between
// consecutive calls.
type Executor struct {
	searcher    search.Searcher
	delay       time.Duration
	sleep       Sleeper
	callTimeout time.Duration
	log         *logrus.Entry
	metrics     Metrics
	limits      Limits
}

// Limits caps what each search call asks for and keeps.
type Limits struct {
	Results            int
	HighlightsPerURL   int
	HighlightSentences int
}

// DefaultLimits returns the standard per-call caps.
func DefaultLimits() Limits {
	return Limits{Results: ResultsPerQuery, HighlightsPerURL: HighlightsPerURL, HighlightSentences: HighlightSentences}
}

// Option configures executor behaviour.
type Option func(*Executor)

// WithDelay sets the pause between consecutive search calls.
func WithDelay(d time.Duration) Option {
	return func(ex *Executor) { ex.delay = d }
}

// WithSleeper replaces the context-aware sleep, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(ex *Executor) { ex.sleep = s }
}

// WithCallTimeout bounds each search call; zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(ex *Executor) { ex.callTimeout = d }
}

func WithLogger(l *logrus.Entry) Option {
	return func(ex *Executor) { ex.log = l }
}

// WithLimits overrides the per-call caps. Non-positive fields keep defaults.
func WithLimits(l Limits) Option {
	return func(ex *Executor) {
		if l.Results > 0 {
			ex.limits.Results = l.Results
		}
		if l.HighlightsPerURL > 0 {
			ex.limits.HighlightsPerURL = l.HighlightsPerURL
		}
		if l.HighlightSentences > 0 {
			ex.limits.HighlightSentences = l.HighlightSentences
		}
	}
}

// WithMetrics sets executor metrics callbacks.
func WithMetrics(m Metrics) Option {
	return func(ex *Executor) { ex.metrics = m }
}

// New creates an Executor around searcher.
func New(searcher search.Searcher, opts ...Option) *Executor {
	ex := &Executor{
		searcher: searcher,
		delay:    DefaultDelay,
		sleep:    sleepContext,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		limits:   DefaultLimits(),
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute issues one search per spec, in order. The first failure stops the
// batch and is returned as *ExecutionFailure; nothing is retried.
func (e *Executor) Execute(ctx context.Context, specs []planner.QuerySpec) ([]Bundle, error) {
	bundles := make([]Bundle, 0, len(specs))
	for i, spec := range specs {
		if i > 0 && e.delay > 0 {
			if err := e.sleep(ctx, e.delay); err != nil {
				return nil, &ExecutionFailure{Index: i, Query: spec.Query, Err: err}
			}
		}
		resp, err := e.run(ctx, i, spec)
		if err != nil {
			return nil, &ExecutionFailure{Index: i, Query: spec.Query, Err: err}
		}
		bundles = append(bundles, Bundle{
			Query:     spec.Query,
			Reasoning: spec.Reasoning,
			Mode:      string(search.ParseMode(spec.Mode)),
			DateRange: spec.DateRange,
			Results:   resp,
		})
	}
	return bundles, nil
}

func (e *Executor) run(ctx context.Context, index int, spec planner.QuerySpec) (search.Response, error) {
	mode := search.ParseMode(spec.Mode)
	ctx, span := otel.Tracer("searchchat/executor").Start(ctx, "executor.search")
	defer span.End()
	span.SetAttributes(
		attribute.Int("search.index", index),
		attribute.String("search.query", spec.Query),
		attribute.String("search.mode", string(mode)),
	)
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	q := search.Query{
		Text:       spec.Query,
		Mode:       mode,
		NumResults: e.limits.Results,
		Highlights: search.Highlights{NumSentences: e.limits.HighlightSentences, PerURL: e.limits.HighlightsPerURL},
		Summary:    true,
	}
	if dr := spec.DateRange; dr != nil {
		q.StartPublished = dr.Start
		q.EndPublished = dr.End
	}

	start := time.Now()
	resp, err := e.searcher.Search(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e.metrics.QueryFailed != nil {
			e.metrics.QueryFailed(ctx, string(mode))
		}
		return search.Response{}, err
	}
	if e.metrics.QueryDuration != nil {
		e.metrics.QueryDuration(ctx, string(mode), time.Since(start))
	}
	resp = e.limits.apply(resp)
	e.logResponse(index, spec, resp)
	return resp, nil
}

func (l Limits) apply(resp search.Response) search.Response {
	if len(resp.Results) > l.Results {
		resp.Results = resp.Results[:l.Results]
	}
	if resp.Results == nil {
		resp.Results = []search.Result{}
	}
	for i := range resp.Results {
		if len(resp.Results[i].Highlights) > l.HighlightsPerURL {
			resp.Results[i].Highlights = resp.Results[i].Highlights[:l.HighlightsPerURL]
		}
	}
	return resp
}

func (e *Executor) logResponse(index int, spec planner.QuerySpec, resp search.Response) {
	fields := logrus.Fields{
		"index":     index + 1,
		"query":     spec.Query,
		"reasoning": spec.Reasoning,
		"results":   len(resp.Results),
	}
	if spec.DateRange != nil {
		fields["date_range"] = fmt.Sprintf("%s..%s", spec.DateRange.Start, spec.DateRange.End)
	}
	if resp.AutopromptString != "" {
		fields["autoprompt"] = resp.AutopromptString
	}
	e.log.WithFields(fields).Info("search executed")
	for i, r := range resp.Results {
		e.log.WithFields(logrus.Fields{
			"rank":       i + 1,
			"title":      r.Title,
			"url":        r.URL,
			"highlights": len(r.Highlights),
			"summary":    r.Summary != "",
		}).Debug("search result")
	}
}
