package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ahrav/policybot/internal/configuration"
	"github.com/ahrav/policybot/internal/coordinator"
	"github.com/ahrav/policybot/internal/domain"
	"github.com/ahrav/policybot/internal/embedding"
	"github.com/ahrav/policybot/internal/gateway"
	"github.com/ahrav/policybot/internal/generation"
	"github.com/ahrav/policybot/internal/membership"
	"github.com/ahrav/policybot/internal/registry"
	"github.com/ahrav/policybot/internal/retrieval"
	"github.com/ahrav/policybot/internal/vectorstore"
)

func gatewayCmd() *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the gateway with its interactive question console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGateway(cmd.Context(), local)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false,
		"run retrieval and generation in-process instead of via registered workers")
	return cmd
}

func runGateway(ctx context.Context, local bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(nil)
	monitor := membership.NewMonitor(reg, nil)
	go monitor.Run(ctx)

	prober := membership.NewProber(membership.ProberConfig{
		Interval:     cfg.Membership.ProbeInterval,
		MaxFailures:  cfg.Membership.MaxFailures,
		RemoveAfter:  cfg.Membership.RemoveAfter,
		ProbeTimeout: cfg.Membership.ProbeTimeout,
	}, monitor.Events(), nil, nil)
	go prober.Run(ctx)

	var stages coordinator.Stages
	if local {
		stages, err = localStages(ctx, cfg)
		if err != nil {
			return err
		}
	} else {
		stages = gateway.NewRemoteStages(reg,
			retrieval.NewRemoteClient(nil), generation.NewRemoteClient(nil))
	}

	gw := gateway.New(cfg.Gateway, stages, nil, nil, nil)

	srv := gateway.NewServer(cfg.Gateway.Addr, prober, nil, nil)
	go func() {
		if err := srv.Run(ctx); err != nil {
			color.Red("gateway http server failed: %v", err)
		}
	}()

	return console(ctx, gw)
}

// localStages builds the single-node pipeline: collaborator clients plus
// in-process stage services. Collaborator absence is reported but not
// fatal; the node starts degraded and answers on the fallback path.
func localStages(ctx context.Context, cfg configuration.Config) (coordinator.Stages, error) {
	embedder := embedding.NewClient(cfg.Embedding, nil)
	if dim, err := embedder.Probe(ctx); err != nil {
		color.Yellow("embedding collaborator unavailable, retrieval will return no matches: %v", err)
	} else {
		color.Green("embedding collaborator ready (dimension %d)", dim)
	}

	store := vectorstore.NewClient(cfg.Qdrant, nil)
	if count, err := store.Count(ctx); err != nil {
		color.Yellow("vector store unavailable: %v", err)
	} else if count == 0 {
		color.Yellow("vector store is empty; run 'policybot index' first")
	} else {
		color.Green("vector store ready (%d policies)", count)
	}

	gen, err := generation.NewService(cfg.Generation, cfg.Retry, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := gen.Probe(ctx); err != nil {
		color.Yellow("generation collaborator unavailable, answers will use the fallback: %v", err)
	} else {
		color.Green("generation collaborator ready (%s)", cfg.Generation.Model)
	}

	return gateway.LocalStages{
		Retrieval:  retrieval.NewService(embedder, store, cfg.Qdrant.TopK, nil),
		Generation: gen,
	}, nil
}

// console is the interactive read-eval loop.
func console(ctx context.Context, gw *gateway.Gateway) error {
	header := color.New(color.FgCyan, color.Bold)
	prompt := color.New(color.FgGreen, color.Bold)
	meta := color.New(color.Faint)

	header.Println("University Policy Assistant")
	fmt.Println("Ask a question about university policies, or type 'exit' to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt.Print("policy> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			fmt.Println("Goodbye.")
			return nil
		}

		out, err := gw.Submit(ctx, line)
		if err != nil {
			if errors.Is(err, domain.ErrEmptyQuery) {
				continue
			}
			color.Red("could not submit question: %v", err)
			continue
		}

		meta.Println("thinking...")
		select {
		case answer := <-out:
			fmt.Println()
			fmt.Println(answer.Text)
			fmt.Println()
			meta.Printf("[%s, %.1fs]\n\n", answer.ProducedBy, answer.Elapsed.Seconds())
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Minute):
			color.Red("no answer arrived; this should not happen, please retry")
		}
	}
}
