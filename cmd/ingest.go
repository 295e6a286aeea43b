package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilzarachman/chatbot-helpdesk/internal/app"
	"github.com/ilzarachman/chatbot-helpdesk/internal/config"
	"github.com/ilzarachman/chatbot-helpdesk/internal/intent"
	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
)

var (
	ingestTopic      string
	ingestVisibility string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Embed a document into a knowledge namespace",
	Long: "ingest reads a text file, splits it into chunks, embeds each chunk " +
		"and appends the result to the (topic, visibility) namespace. It runs " +
		"in the foreground; the serve command ingests uploads in the background.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args[0])
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTopic, "topic", "", "knowledge topic (required)")
	ingestCmd.Flags().StringVar(&ingestVisibility, "visibility", string(knowledge.VisibilityRestricted), "restricted or public")
	_ = ingestCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(ctx context.Context, path string) error {
	topic, ok := intent.Parse(ingestTopic)
	if !ok || topic == intent.Other {
		return fmt.Errorf("unknown topic %q", ingestTopic)
	}
	visibility := knowledge.Visibility(ingestVisibility)
	if visibility != knowledge.VisibilityRestricted && visibility != knowledge.VisibilityPublic {
		return fmt.Errorf("visibility must be restricted or public, got %q", ingestVisibility)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	if err := a.Knowledge.Ingest(ctx, string(raw), topic.String(), visibility); err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	fmt.Printf("ingested %s into %s/%s\n", path, topic, visibility)
	return nil
}
