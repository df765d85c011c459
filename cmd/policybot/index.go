package main

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ahrav/policybot/internal/embedding"
	"github.com/ahrav/policybot/internal/indexer"
	"github.com/ahrav/policybot/internal/vectorstore"
)

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Embed the scraped policy corpus into the vector store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context())
		},
	}
}

func runIndex(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	embedder := embedding.NewClient(cfg.Embedding, nil)
	store := vectorstore.NewClient(cfg.Qdrant, nil)

	ix := indexer.New(embedder, store, cfg.Corpus, nil)
	count, err := ix.Run(ctx)
	if err != nil {
		return err
	}

	color.Green("corpus indexed: %d policies in collection %q", count, cfg.Qdrant.Collection)
	return nil
}
