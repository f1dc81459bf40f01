// Package mcp exposes the registered model tools over the Model Context
// Protocol on stdio, so desktop agents can run the same contextual search the
// chat endpoint uses.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/searchchat/internal/capability"
)

const (
	ServerName    = "searchchat"
	ServerVersion = "1.0.0"
)

// DefaultMaxDuration bounds a single tool call.
const DefaultMaxDuration = 300 * time.Second

// Server wraps an MCP server with one handler per tool.
type Server struct {
	mcp         *mcpserver.MCPServer
	tools       map[string]capability.Tool
	registry    *capability.Registry
	maxDuration time.Duration
	log         *logrus.Entry
}

type Option func(*Server)

// WithRegistry advertises each tool with its registered card schema and
// refuses tools the registry does not know.
func WithRegistry(reg *capability.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithMaxDuration bounds every tool call.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.maxDuration = d
		}
	}
}

// NewServer registers every tool.
func NewServer(tools []capability.Tool, log *logrus.Entry, opts ...Option) (*Server, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		mcp:         mcpserver.NewMCPServer(ServerName, ServerVersion, mcpserver.WithToolCapabilities(false)),
		tools:       make(map[string]capability.Tool, len(tools)),
		maxDuration: DefaultMaxDuration,
		log:         log.WithField("component", "mcp"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.registry != nil {
		resolved, err := s.registry.Resolve(tools)
		if err != nil {
			return nil, fmt.Errorf("resolve tools: %w", err)
		}
		tools = resolved
	}
	for _, t := range tools {
		def := t.Definition()
		if _, dup := s.tools[def.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", def.Name)
		}
		s.tools[def.Name] = t
		s.mcp.AddTool(mcp.Tool{
			Name:           def.Name,
			Description:    def.Description,
			RawInputSchema: def.Parameters,
		}, s.handle)
	}
	return s, nil
}

// ServeStdio blocks serving JSON-RPC on stdin/stdout.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

// handle runs the named tool. Failures are reported as tool errors so the
// calling agent sees the same text the chat model would.
func (s *Server) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, ok := s.tools[req.Params.Name]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown tool %q", req.Params.Name)), nil
	}
	raw, err := json.Marshal(req.GetRawArguments())
	if err != nil {
		return mcp.NewToolResultError("arguments must be a JSON object"), nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.maxDuration)
	defer cancel()
	out, err := t.Call(ctx, string(raw))
	if err != nil {
		s.log.WithError(err).WithField("tool", req.Params.Name).Warn("tool call failed")
		var argErr *capability.ArgumentError
		if errors.As(err, &argErr) {
			return mcp.NewToolResultError(argErr.Error()), nil
		}
		return mcp.NewToolResultError(capability.FailureMessage), nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", req.Params.Name, err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
