package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mohammad-safakhou/searchchat/internal/helpers"
)

const (
	MinQueries = 2
	MaxQueries = 6
)

// PlanSchemaJSON returns the structured-output schema for a batch of exactly
// count queries.
func PlanSchemaJSON(count int) json.RawMessage {
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"queries"},
		"properties": map[string]any{
			"queries": map[string]any{
				"type":     "array",
				"minItems": count,
				"maxItems": count,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"query", "reasoning"},
					"properties": map[string]any{
						"query":     map[string]any{"type": "string", "minLength": 1, "description": "The search query"},
						"reasoning": map[string]any{"type": "string", "minLength": 1, "description": "How this query contributes to the overall information gathering strategy"},
						"searchMode": map[string]any{
							"type":        "string",
							"enum":        []string{"keyword", "neural", "auto"},
							"description": "Retrieval strategy; omit for auto",
						},
						"dateRange": map[string]any{
							"type":                 "object",
							"additionalProperties": false,
							"properties": map[string]any{
								"startPublishedDate": map[string]any{"type": "string", "description": "ISO date string"},
								"endPublishedDate":   map[string]any{"type": "string", "description": "ISO date string"},
							},
						},
					},
				},
			},
		},
	}
	b, _ := json.Marshal(schema)
	return b
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[int]*jsonschema.Schema{}
)

// PlanSchema returns the compiled schema for count queries.
func PlanSchema(count int) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[count]; ok {
		return s, nil
	}
	url := fmt.Sprintf("plan_schema_%d.json", count)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(PlanSchemaJSON(count)))); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile planner schema: %w", err)
	}
	schemaCache[count] = s
	return s, nil
}

type planDocument struct {
	Queries []struct {
		Query      string `json:"query"`
		Reasoning  string `json:"reasoning"`
		SearchMode string `json:"searchMode"`
		DateRange  *struct {
			StartPublishedDate string `json:"startPublishedDate"`
			EndPublishedDate   string `json:"endPublishedDate"`
		} `json:"dateRange"`
	} `json:"queries"`
}

// DecodePlan validates raw model output against the schema for count and
// returns the typed query specs.
func DecodePlan(data []byte, count int) ([]QuerySpec, error) {
	schema, err := PlanSchema(count)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		// Some OpenAI-compatible backends wrap the object in a code fence.
		block, xerr := helpers.ExtractJSON(string(data))
		if xerr != nil {
			return nil, fmt.Errorf("plan is not valid JSON: %w", err)
		}
		data = []byte(block)
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("plan is not valid JSON: %w", err)
		}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("plan does not match schema: %w", err)
	}
	var plan planDocument
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	specs := make([]QuerySpec, 0, len(plan.Queries))
	for i, q := range plan.Queries {
		spec := QuerySpec{
			Query:     strings.TrimSpace(q.Query),
			Reasoning: strings.TrimSpace(q.Reasoning),
			Mode:      q.SearchMode,
		}
		if spec.Query == "" || spec.Reasoning == "" {
			return nil, fmt.Errorf("query %d: query and reasoning must not be blank", i)
		}
		if spec.Mode == "" {
			spec.Mode = "auto"
		}
		if dr := q.DateRange; dr != nil && (dr.StartPublishedDate != "" || dr.EndPublishedDate != "") {
			spec.DateRange = &DateRange{Start: dr.StartPublishedDate, End: dr.EndPublishedDate}
		}
		specs = append(specs, spec)
	}
	if len(specs) != count {
		return nil, fmt.Errorf("expected %d queries, got %d", count, len(specs))
	}
	return specs, nil
}
