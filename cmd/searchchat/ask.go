package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mohammad-safakhou/searchchat/internal/helpers"
	"github.com/mohammad-safakhou/searchchat/internal/llm"
	"github.com/mohammad-safakhou/searchchat/internal/message"
)

// Color codes
const (
	colorReset = "\033[0m"
	colorDim   = "\033[2m"
	colorCyan  = "\033[36m"
)

// termSink collects the streamed answer and reports progress on status.
type termSink struct {
	status        io.Writer
	showReasoning bool
	text          strings.Builder
	inReasoning   bool
}

func (s *termSink) StartMessage(string) error { return nil }

func (s *termSink) Text(delta string) error {
	s.endReasoning()
	s.text.WriteString(delta)
	return nil
}

func (s *termSink) Reasoning(delta string) error {
	if !s.showReasoning {
		return nil
	}
	if !s.inReasoning {
		fmt.Fprint(s.status, colorDim)
		s.inReasoning = true
	}
	fmt.Fprint(s.status, delta)
	return nil
}

func (s *termSink) RedactedReasoning(string) error { return s.Reasoning("[redacted]") }

func (s *termSink) endReasoning() {
	if s.inReasoning {
		fmt.Fprintln(s.status, colorReset)
		s.inReasoning = false
	}
}

func (s *termSink) ToolCall(call llm.ToolCall) error {
	s.endReasoning()
	fmt.Fprintf(s.status, "%s> %s %s%s\n", colorCyan, call.Name, call.Arguments, colorReset)
	return nil
}

func (s *termSink) ToolResult(llm.ToolCall, any) error {
	fmt.Fprintf(s.status, "%s> search complete%s\n", colorCyan, colorReset)
	return nil
}

func (s *termSink) FinishStep(string, llm.Usage, bool) error { return nil }

func (s *termSink) Finish(string, llm.Usage) error {
	s.endReasoning()
	return nil
}

// terminalWidth returns the width of stdout, or 0 when it is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

// renderAnswer splits the raw answer into display text and sources. Markdown
// is rendered with glamour when width > 0.
func renderAnswer(raw string, width int) string {
	parsed := message.Parse(raw)
	body := parsed.Content
	if width > 0 {
		wrap := width - 4
		if wrap < 20 {
			wrap = 20
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			if out, err := r.Render(body); err == nil {
				body = out
			}
		}
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n")
	if len(parsed.Sources) > 0 {
		citations := make([]helpers.Citation, 0, len(parsed.Sources))
		for _, src := range parsed.Sources {
			citations = append(citations, helpers.Citation{Number: src.Number, Title: src.Title, URL: src.URL})
		}
		b.WriteString("\nSources:\n")
		for _, line := range helpers.FormatCitations(citations) {
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}

func askCMD(cfgPath *string) *cobra.Command {
	var showReasoning bool
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question from the terminal",
		Long: `Ask a question and stream the answer with citations.

Without a question argument an interactive session starts; each line is a
new user turn and the conversation history is kept until EOF.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			width := terminalWidth()
			var history []message.Turn

			ask := func(question string) error {
				history = append(history, message.Turn{Role: message.RoleUser, Content: question})
				sink := &termSink{status: cmd.ErrOrStderr(), showReasoning: showReasoning}
				res, err := a.orchestrator.Run(cmd.Context(), history, sink)
				if err != nil {
					history = history[:len(history)-1]
					return err
				}
				history = append(history, message.Turn{Role: message.RoleAssistant, Content: res.Turn.Content})
				fmt.Fprint(cmd.OutOrStdout(), renderAnswer(sink.text.String(), width))
				fmt.Fprintf(cmd.ErrOrStderr(), "%s%s%s\n", colorDim, res.Describe(), colorReset)
				return nil
			}

			if len(args) > 0 {
				return ask(strings.Join(args, " "))
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(cmd.ErrOrStderr(), "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				q := strings.TrimSpace(scanner.Text())
				if q == "" {
					continue
				}
				if q == "/exit" {
					return nil
				}
				if err := ask(q); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&showReasoning, "reasoning", false, "print model reasoning to stderr")
	return cmd
}
