package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question over the corpus",
		Long: `Retrieve the best-matching passages and compose an answer.

Requires an API key (CORPUS_OPENAI_API_KEY) for answer composition.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}
	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	resp, err := a.engine.Ask(ctx, question)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\nconfidence: %.2f\n", resp.Answer, resp.Confidence)
	if len(resp.Sources) > 0 {
		fmt.Fprintln(out, "sources:")
		for _, s := range resp.Sources {
			fmt.Fprintf(out, "  - %s (%s)\n", s.Title, s.ID)
		}
	}
	return nil
}
