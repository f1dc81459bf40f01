package search

import (
	"context"
	"net/http"
	"strings"
)

const exaBaseURL = "https://api.exa.ai"

// Exa searches with https://exa.ai, returning highlights and summaries.
type Exa struct {
	APIKey  string
	BaseURL string
	HTTP    *HTTPClient
}

type exaHighlights struct {
	NumSentences     int `json:"numSentences"`
	HighlightsPerURL int `json:"highlightsPerUrl"`
}

type exaContents struct {
	Highlights *exaHighlights `json:"highlights,omitempty"`
	Summary    bool           `json:"summary,omitempty"`
}

type exaRequest struct {
	Query              string      `json:"query"`
	Type               Mode        `json:"type"`
	NumResults         int         `json:"numResults,omitempty"`
	UseAutoprompt      bool        `json:"useAutoprompt"`
	StartPublishedDate string      `json:"startPublishedDate,omitempty"`
	EndPublishedDate   string      `json:"endPublishedDate,omitempty"`
	Contents           exaContents `json:"contents"`
}

func (e *Exa) Search(ctx context.Context, q Query) (Response, error) {
	body := exaRequest{
		Query:              q.Text,
		Type:               ParseMode(string(q.Mode)),
		NumResults:         q.NumResults,
		UseAutoprompt:      true,
		StartPublishedDate: q.StartPublished,
		EndPublishedDate:   q.EndPublished,
		Contents:           exaContents{Summary: q.Summary},
	}
	if q.Highlights.PerURL > 0 {
		body.Contents.Highlights = &exaHighlights{
			NumSentences:     q.Highlights.NumSentences,
			HighlightsPerURL: q.Highlights.PerURL,
		}
	}
	base := e.BaseURL
	if base == "" {
		base = exaBaseURL
	}
	var out Response
	err := e.HTTP.DoJSON(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/search",
		map[string]string{"x-api-key": e.APIKey}, body, &out)
	if err != nil {
		return Response{}, err
	}
	if out.Results == nil {
		out.Results = []Result{}
	}
	return out, nil
}
