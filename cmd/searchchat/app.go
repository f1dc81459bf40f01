package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/searchchat/config"
	"github.com/mohammad-safakhou/searchchat/internal/agent/core"
	"github.com/mohammad-safakhou/searchchat/internal/agent/telemetry"
	"github.com/mohammad-safakhou/searchchat/internal/capability"
	"github.com/mohammad-safakhou/searchchat/internal/executor"
	"github.com/mohammad-safakhou/searchchat/internal/helpers"
	"github.com/mohammad-safakhou/searchchat/internal/llm"
	"github.com/mohammad-safakhou/searchchat/internal/planner"
	"github.com/mohammad-safakhou/searchchat/internal/search"
)

// app is the wired dependency graph shared by the subcommands.
type app struct {
	cfg          *config.Config
	log          *logrus.Logger
	dates        *helpers.DateTimeFormatter
	telemetry    *telemetry.Telemetry
	search       *capability.ContextualSearchTool
	registry     *capability.Registry
	orchestrator *core.Orchestrator
}

func newLogger(cfg config.GeneralConfig) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if cfg.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}

func buildApp(cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.General)
	entry := logrus.NewEntry(logger)

	dates, err := helpers.NewDateTimeFormatter(cfg.General.TimeZone, nil)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(llm.Config{
		Client:  llm.Client(cfg.LLM.Provider),
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	searcher, err := search.NewSearcher(search.Config{
		Provider: search.Provider(cfg.Search.Provider),
		APIKey:   cfg.Search.APIKey(),
		BaseURL:  cfg.Search.BaseURL(),
		Timeout:  cfg.Search.HTTPTimeout,
		Dates:    dates,
	})
	if err != nil {
		return nil, fmt.Errorf("search provider: %w", err)
	}

	tel := telemetry.New(entry.WithField("component", "telemetry"))
	plan := planner.New(provider, cfg.LLM.PlannerModel, dates, entry.WithField("component", "planner"))
	exec := executor.New(searcher,
		executor.WithDelay(cfg.Search.InterQueryDelay),
		executor.WithCallTimeout(cfg.Search.CallTimeout),
		executor.WithLimits(executor.Limits{
			Results:            cfg.Search.NumResults,
			HighlightsPerURL:   cfg.Search.HighlightsPerURL,
			HighlightSentences: cfg.Search.HighlightSentences,
		}),
		executor.WithLogger(entry.WithField("component", "executor")),
		executor.WithMetrics(tel.ExecutorMetrics()),
	)
	tool := capability.NewContextualSearchTool(plan, exec, dates, entry.WithField("component", "search_tool"))

	card, err := tool.Card()
	if err != nil {
		return nil, fmt.Errorf("search tool card: %w", err)
	}
	registry, err := capability.NewRegistry([]capability.ToolCard{card}, []string{capability.SearchToolName})
	if err != nil {
		return nil, fmt.Errorf("capability registry: %w", err)
	}
	for _, c := range registry.Cards() {
		entry.WithFields(logrus.Fields{"tool": c.Name, "version": c.Version, "checksum": c.Checksum}).Debug("tool registered")
	}

	orch, err := core.NewOrchestrator(core.Config{
		Provider:      provider,
		Model:         cfg.LLM.ChatModel,
		Temperature:   cfg.LLM.Temperature,
		MaxSteps:      cfg.LLM.MaxSteps,
		MaxDuration:   cfg.Server.MaxRequestDuration,
		SendReasoning: cfg.LLM.SendReasoning,
		Tools:         []capability.Tool{tool},
		Registry:      registry,
		Capabilities: core.Capabilities{
			SearchTool:      capability.SearchToolName,
			MinQueries:      planner.MinQueries,
			MaxQueries:      planner.MaxQueries,
			TaggedReasoning: cfg.LLM.TaggedReasoning,
		},
		Dates:     dates,
		Telemetry: tel,
		Logger:    entry.WithField("component", "orchestrator"),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:          cfg,
		log:          logger,
		dates:        dates,
		telemetry:    tel,
		search:       tool,
		registry:     registry,
		orchestrator: orch,
	}, nil
}
