package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/corpus/internal/store"
)

func newUpdateCmd() *cobra.Command {
	var (
		title    string
		content  string
		category string
		tags     []string
	)

	cmd := &cobra.Command{
		Use:   "update <document-id>",
		Short: "Update document fields",
		Long: `Update one or more fields of a document.

Changing title or content re-embeds the document and refreshes the
derived indexes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields store.FieldUpdate
			if cmd.Flags().Changed("title") {
				fields.Title = &title
			}
			if cmd.Flags().Changed("content") {
				fields.Content = &content
			}
			if cmd.Flags().Changed("category") {
				fields.Category = &category
			}
			if cmd.Flags().Changed("tag") {
				fields.Tags = &tags
			}
			return runUpdate(cmd.Context(), cmd, args[0], fields)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", "New content")
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "New tags (repeatable, replaces existing)")

	return cmd
}

func runUpdate(ctx context.Context, cmd *cobra.Command, id string, fields store.FieldUpdate) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	doc, err := a.coordinator.Update(ctx, id, fields)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", doc.ID)
	return nil
}
