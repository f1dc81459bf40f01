package capability

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mohammad-safakhou/searchchat/internal/llm"
)

// ToolCard is the registry metadata for a model-callable tool.
type ToolCard struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	SideEffects []string        `json:"side_effects,omitempty"`
	Checksum    string          `json:"checksum"`
}

// Registry holds validated ToolCards keyed by tool name.
type Registry struct {
	tools map[string]ToolCard
}

var (
	// ErrToolMissing indicates a required tool is not registered.
	ErrToolMissing = errors.New("required tool missing")
	// ErrChecksumMismatch indicates a card was modified after its checksum was computed.
	ErrChecksumMismatch = errors.New("tool card checksum mismatch")
)

// NewRegistry validates ToolCards and ensures required tools exist. When a
// name is registered twice the higher version wins.
func NewRegistry(cards []ToolCard, required []string) (*Registry, error) {
	reg := &Registry{tools: make(map[string]ToolCard)}
	for _, tc := range cards {
		if err := validateCard(tc); err != nil {
			return nil, fmt.Errorf("tool %s@%s: %w", tc.Name, tc.Version, err)
		}
		existing, ok := reg.tools[tc.Name]
		if !ok || versionGreater(tc.Version, existing.Version) {
			reg.tools[tc.Name] = tc
		}
	}
	for _, r := range required {
		if _, ok := reg.tools[r]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolMissing, r)
		}
	}
	return reg, nil
}

// Tool returns the ToolCard registered under name.
func (r *Registry) Tool(name string) (ToolCard, bool) {
	if r == nil {
		return ToolCard{}, false
	}
	tc, ok := r.tools[name]
	return tc, ok
}

// Cards lists registered cards ordered by name.
func (r *Registry) Cards() []ToolCard {
	if r == nil {
		return nil
	}
	out := make([]ToolCard, 0, len(r.tools))
	for _, tc := range r.tools {
		out = append(out, tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve binds each tool to its registered card. A tool without a card is
// rejected; the card's input schema replaces the tool's own parameters so
// callers advertise exactly what was registered.
func (r *Registry) Resolve(tools []Tool) ([]Tool, error) {
	out := make([]Tool, 0, len(tools))
	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		name := t.Name()
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("tool %s bound twice", name)
		}
		seen[name] = struct{}{}
		tc, ok := r.Tool(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolMissing, name)
		}
		out = append(out, &registeredTool{Tool: t, card: tc})
	}
	return out, nil
}

// registeredTool advertises a tool with its registered card schema.
type registeredTool struct {
	Tool
	card ToolCard
}

func (t *registeredTool) Definition() llm.ToolDefinition {
	def := t.Tool.Definition()
	def.Name = t.card.Name
	def.Parameters = append(json.RawMessage(nil), t.card.InputSchema...)
	return def
}

// ComputeChecksum returns a deterministic hash of the card payload.
func ComputeChecksum(tc ToolCard) (string, error) {
	var schema any
	if len(tc.InputSchema) > 0 {
		if err := json.Unmarshal(tc.InputSchema, &schema); err != nil {
			return "", fmt.Errorf("input schema: %w", err)
		}
	}
	payload := map[string]interface{}{
		"name":         tc.Name,
		"version":      tc.Version,
		"description":  tc.Description,
		"input_schema": schema,
		"side_effects": tc.SideEffects,
	}
	normalized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

// Seal fills in the card checksum.
func Seal(tc ToolCard) (ToolCard, error) {
	sum, err := ComputeChecksum(tc)
	if err != nil {
		return tc, err
	}
	tc.Checksum = sum
	return tc, nil
}

func validateCard(tc ToolCard) error {
	if strings.TrimSpace(tc.Name) == "" {
		return errors.New("name is required")
	}
	if len(tc.InputSchema) == 0 {
		return errors.New("input schema is required")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(tc.Name+".json", bytes.NewReader(tc.InputSchema)); err != nil {
		return fmt.Errorf("input schema: %w", err)
	}
	if _, err := compiler.Compile(tc.Name + ".json"); err != nil {
		return fmt.Errorf("input schema: %w", err)
	}
	if tc.Checksum == "" {
		return nil
	}
	sum, err := ComputeChecksum(tc)
	if err != nil {
		return err
	}
	if sum != tc.Checksum {
		return ErrChecksumMismatch
	}
	return nil
}

func versionGreater(a, b string) bool {
	if a == b {
		return false
	}
	// naive semver compare
	return compareVersions(splitVersion(a), splitVersion(b)) > 0
}

func splitVersion(v string) []int {
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		fmt.Sscanf(p, "%d", &out[i])
	}
	return out
}

func compareVersions(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai, bi := 0, 0
		if i < len(a) {
			ai = a[i]
		}
		if i < len(b) {
			bi = b[i]
		}
		if ai > bi {
			return 1
		}
		if ai < bi {
			return -1
		}
	}
	return 0
}
