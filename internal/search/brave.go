package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/searchchat/internal/helpers"
)

const braveBaseURL = "https://api.search.brave.com"

// Brave searches the Brave web index. Descriptions and extra snippets become
// highlights; there is no summary.
type Brave struct {
	APIKey  string
	BaseURL string
	HTTP    *HTTPClient
	// Dates decides "today" for open-ended ranges; nil means UTC.
	Dates *helpers.DateTimeFormatter
}

func (b *Brave) Search(ctx context.Context, q Query) (Response, error) {
	// https://api.search.brave.com/app/documentation/web-search
	params := url.Values{}
	params.Set("q", q.Text)
	if q.NumResults > 0 {
		params.Set("count", strconv.Itoa(q.NumResults))
	}
	if f := b.freshness(q); f != "" {
		params.Set("freshness", f)
	}
	base := b.BaseURL
	if base == "" {
		base = braveBaseURL
	}
	var raw struct {
		Web struct {
			Results []struct {
				Title         string   `json:"title"`
				URL           string   `json:"url"`
				Description   string   `json:"description"`
				PageAge       string   `json:"page_age"`
				ExtraSnippets []string `json:"extra_snippets"`
			} `json:"results"`
		} `json:"web"`
	}
	err := b.HTTP.DoJSON(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/res/v1/web/search?"+params.Encode(),
		map[string]string{"X-Subscription-Token": b.APIKey}, nil, &raw)
	if err != nil {
		return Response{}, err
	}
	out := Response{Results: []Result{}}
	for _, r := range raw.Web.Results {
		var hl []string
		for _, s := range append([]string{r.Description}, r.ExtraSnippets...) {
			if s = helpers.PlainText(s); s != "" {
				hl = append(hl, s)
			}
		}
		out.Results = append(out.Results, Result{
			Title:         helpers.PlainText(r.Title),
			URL:           r.URL,
			PublishedDate: r.PageAge,
			Highlights:    hl,
		})
	}
	return out, nil
}

// freshness renders Brave's YYYY-MM-DDtoYYYY-MM-DD custom range.
func (b *Brave) freshness(q Query) string {
	start := datePart(q.StartPublished)
	if start == "" {
		return ""
	}
	end := datePart(q.EndPublished)
	if end == "" {
		if b.Dates != nil {
			end = b.Dates.Date(b.Dates.Now())
		} else {
			end = time.Now().UTC().Format(time.DateOnly)
		}
	}
	return start + "to" + end
}

// datePart keeps the YYYY-MM-DD prefix of an ISO 8601 date or timestamp.
func datePart(s string) string {
	if len(s) < len(time.DateOnly) {
		return ""
	}
	d := s[:len(time.DateOnly)]
	if _, err := time.Parse(time.DateOnly, d); err != nil {
		return ""
	}
	return d
}
