package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/searchchat/internal/message"
)

func parseCMD() *cobra.Command {
	var legacy bool
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Split a raw model response into display text and sources",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			var out any
			if legacy {
				out = message.ParseLegacy(string(raw))
			} else {
				out = message.NewParser(logrus.NewEntry(logrus.StandardLogger())).Parse(string(raw))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy", false, "parse the tagged thinking/final_answer format")
	return cmd
}
