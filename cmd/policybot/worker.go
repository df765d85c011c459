package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ahrav/policybot/internal/embedding"
	"github.com/ahrav/policybot/internal/generation"
	"github.com/ahrav/policybot/internal/retrieval"
	"github.com/ahrav/policybot/internal/vectorstore"
	"github.com/ahrav/policybot/internal/workerserver"
)

func workerCmd() *cobra.Command {
	var roles []string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker node offering retrieval and/or generation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), roles)
		},
	}
	cmd.Flags().StringSliceVar(&roles, "roles", []string{"retrieval", "generation"},
		"roles this node offers (retrieval, generation)")
	return cmd
}

func runWorker(ctx context.Context, wantRoles []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Each requested role is kept only if its collaborators pass the
	// startup probe; the node announces whatever survives.
	var retSvc *retrieval.Service
	if slices.Contains(wantRoles, "retrieval") {
		embedder := embedding.NewClient(cfg.Embedding, nil)
		if dim, err := embedder.Probe(ctx); err != nil {
			slog.Warn("embedding collaborator unavailable, dropping retrieval role", "error", err)
		} else {
			slog.Info("embedding collaborator ready", "dimension", dim)
			store := vectorstore.NewClient(cfg.Qdrant, nil)
			if count, err := store.Count(ctx); err != nil {
				slog.Warn("vector store unavailable, dropping retrieval role", "error", err)
			} else {
				if count == 0 {
					slog.Warn("vector store is empty; run 'policybot index' first")
				}
				retSvc = retrieval.NewService(embedder, store, cfg.Qdrant.TopK, nil)
			}
		}
	}

	var genSvc *generation.Service
	if slices.Contains(wantRoles, "generation") {
		svc, err := generation.NewService(cfg.Generation, cfg.Retry, nil, nil)
		if err != nil {
			return err
		}
		if err := svc.Probe(ctx); err != nil {
			slog.Warn("generation collaborator unavailable, offering fallback-only generation", "error", err)
		}
		// The generation service always answers (fallback path), so the
		// role is offered even when the model is down.
		genSvc = svc
	}

	srv := workerserver.New(cfg.Worker, retSvc, genSvc, nil, nil)

	go func() {
		if err := srv.Announce(ctx); err != nil {
			slog.Error("announcing to gateway failed", "error", err)
		}
	}()

	return srv.Run(ctx)
}
