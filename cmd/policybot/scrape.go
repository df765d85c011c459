package main

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ahrav/policybot/internal/scraper"
)

func scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Download the policy catalog into the local corpus directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd.Context())
		},
	}
}

func runScrape(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s := scraper.New(cfg.Scraper, nil, nil)
	saved, err := s.Run(ctx, nil)
	if err != nil {
		return err
	}

	color.Green("scrape complete: %d policies saved to %s", saved, cfg.Scraper.OutDir)
	return nil
}
