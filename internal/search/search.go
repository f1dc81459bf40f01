package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/searchchat/internal/helpers"
)

// Mode is the retrieval strategy requested from the search backend.
type Mode string

const (
	ModeKeyword Mode = "keyword"
	ModeNeural  Mode = "neural"
	ModeAuto    Mode = "auto"
)

// ParseMode maps a planner supplied mode; empty or unknown values are auto.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeKeyword, ModeNeural:
		return Mode(s)
	default:
		return ModeAuto
	}
}

// Highlights asks for extractive highlights per document.
type Highlights struct {
	NumSentences int
	PerURL       int
}

// Query is one search call.
type Query struct {
	Text           string
	Mode           Mode
	NumResults     int
	Highlights     Highlights
	Summary        bool
	StartPublished string
	EndPublished   string
}

// Result is one ranked document.
type Result struct {
	ID            string   `json:"id,omitempty"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Author        string   `json:"author,omitempty"`
	Score         float64  `json:"score,omitempty"`
	Highlights    []string `json:"highlights,omitempty"`
	Summary       string   `json:"summary,omitempty"`
}

// Response is what a backend returned for a Query.
type Response struct {
	AutopromptString string   `json:"autopromptString,omitempty"`
	Results          []Result `json:"results"`
}

// Searcher runs a single query against a hosted search backend.
type Searcher interface {
	Search(ctx context.Context, q Query) (Response, error)
}

// Provider names a search backend.
type Provider string

const (
	ExaProvider    Provider = "exa"
	BraveProvider  Provider = "brave"
	SerperProvider Provider = "serper"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported search provider")
	ErrMissingAPIKey       = errors.New("search api key not set")
)

// Config configures NewSearcher.
type Config struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Dates    *helpers.DateTimeFormatter
}

// NewSearcher builds the Searcher for cfg.Provider.
func NewSearcher(cfg Config) (Searcher, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}
	hc := NewHTTPClient(cfg.Timeout)
	switch cfg.Provider {
	case ExaProvider, "":
		return &Exa{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, HTTP: hc}, nil
	case BraveProvider:
		return &Brave{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, HTTP: hc, Dates: cfg.Dates}, nil
	case SerperProvider:
		return &Serper{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, HTTP: hc}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
