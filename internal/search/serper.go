package search

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/searchchat/internal/helpers"
)

const serperBaseURL = "https://google.serper.dev"

// Serper searches Google through serper.dev.
type Serper struct {
	APIKey  string
	BaseURL string
	HTTP    *HTTPClient
}

func (s *Serper) Search(ctx context.Context, q Query) (Response, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": q.Text}
	if q.NumResults > 0 {
		payload["num"] = q.NumResults
	}
	if tbs := serperDateRange(q.StartPublished, q.EndPublished); tbs != "" {
		payload["tbs"] = tbs
	}
	base := s.BaseURL
	if base == "" {
		base = serperBaseURL
	}
	var raw struct {
		Organic []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			Date     string `json:"date"`
			Position int    `json:"position"`
		} `json:"organic"`
	}
	err := s.HTTP.DoJSON(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/search",
		map[string]string{"X-API-KEY": s.APIKey}, payload, &raw)
	if err != nil {
		return Response{}, err
	}
	out := Response{Results: []Result{}}
	for _, r := range raw.Organic {
		res := Result{Title: helpers.PlainText(r.Title), URL: r.Link, PublishedDate: r.Date}
		if snippet := helpers.PlainText(r.Snippet); snippet != "" {
			res.Highlights = []string{snippet}
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// serperDateRange renders Google's custom date range tbs value.
func serperDateRange(start, end string) string {
	s, e := datePart(start), datePart(end)
	if s == "" && e == "" {
		return ""
	}
	parts := []string{"cdr:1"}
	if s != "" {
		parts = append(parts, "cd_min:"+usDate(s))
	}
	if e != "" {
		parts = append(parts, "cd_max:"+usDate(e))
	}
	return strings.Join(parts, ",")
}

func usDate(d string) string {
	t, _ := time.Parse(time.DateOnly, d)
	return t.Format("1/2/2006")
}
