package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/searchchat/internal/capability"
)

func searchCMD(cfgPath *string) *cobra.Command {
	var (
		count      int
		convoCtx   string
		intentFlag string
	)
	cmd := &cobra.Command{
		Use:   "search [intent]",
		Short: "Run the contextual web search tool and print its JSON result",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			intent := intentFlag
			if intent == "" {
				intent = strings.Join(args, " ")
			}
			if convoCtx == "" {
				convoCtx = intent
			}
			raw, err := json.Marshal(capability.SearchArguments{
				NumberOfQueries:     count,
				ConversationContext: convoCtx,
				CurrentIntent:       intent,
			})
			if err != nil {
				return err
			}
			out, err := a.search.Call(cmd.Context(), string(raw))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().IntVarP(&count, "queries", "n", 3, "number of queries to plan (2-6)")
	cmd.Flags().StringVar(&convoCtx, "context", "", "conversation context summary")
	cmd.Flags().StringVar(&intentFlag, "intent", "", "what the user wants to find")
	return cmd
}
