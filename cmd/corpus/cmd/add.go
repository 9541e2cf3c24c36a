package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/corpus/internal/index"
	"github.com/Aman-CERP/corpus/internal/store"
)

type addOptions struct {
	title    string
	category string
	tags     []string
	origin   string
	file     string
}

func newAddCmd() *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a document",
		Long: `Add a document to the corpus.

Content comes from the argument, from --file, or from stdin.

Examples:
  corpus add "The AI project budget is $500,000 for 2024." --title "Quarterly Budget"
  corpus add --title "Meeting Notes" --file notes.txt --tag project --tag q3
  cat report.txt | corpus add --title "Report" --origin pdf`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(args, opts.file)
			if err != nil {
				return err
			}
			return runAdd(cmd.Context(), cmd, content, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Document title (required)")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Category (default: general)")
	cmd.Flags().StringArrayVar(&opts.tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringVar(&opts.origin, "origin", "note", "Origin: note or pdf")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read content from file")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func runAdd(ctx context.Context, cmd *cobra.Command, content string, opts addOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	doc, err := a.coordinator.Create(ctx, index.CreateRequest{
		Title:    opts.title,
		Content:  content,
		Category: opts.category,
		Tags:     opts.tags,
		Origin:   store.Origin(opts.origin),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", doc.ID)
	return nil
}

func readContent(args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read content file: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
