package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/searchchat/internal/capability"
	"github.com/mohammad-safakhou/searchchat/mcp"
)

func mcpCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the search tool over MCP stdio",
		Long: `Runs the contextual web search tool as an MCP (Model Context Protocol)
server on stdin/stdout. Logs go to stderr.`,
		Example: `  # claude_desktop_config.json
  # {"mcpServers": {"searchchat": {"command": "searchchat", "args": ["mcp"]}}}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			s, err := mcp.NewServer([]capability.Tool{a.search}, logrus.NewEntry(a.log),
				mcp.WithRegistry(a.registry),
				mcp.WithMaxDuration(a.cfg.Server.MaxRequestDuration),
			)
			if err != nil {
				return err
			}
			return s.ServeStdio()
		},
	}
}
