package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <document-id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd, args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runGet(ctx context.Context, cmd *cobra.Command, id, format string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	doc, err := a.docs.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	fmt.Fprintf(out, "id:       %s\n", doc.ID)
	fmt.Fprintf(out, "title:    %s\n", doc.Title)
	fmt.Fprintf(out, "category: %s\n", doc.Category)
	if len(doc.Tags) > 0 {
		fmt.Fprintf(out, "tags:     %s\n", strings.Join(doc.Tags, ", "))
	}
	fmt.Fprintf(out, "origin:   %s\n", doc.Origin)
	fmt.Fprintf(out, "updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "\n%s\n", doc.Content)
	return nil
}
