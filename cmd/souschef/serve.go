package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/mirepoix/souschef/internal/config"
	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/engine"
	"github.com/mirepoix/souschef/internal/notify"
	"github.com/mirepoix/souschef/internal/realtime"
	"github.com/mirepoix/souschef/internal/recipe"
	"github.com/mirepoix/souschef/internal/storage"
	"github.com/mirepoix/souschef/internal/tools"
)

const version = "0.3.0"

type serveOptions struct {
	recipeID  string
	sessionID string
	pax       int
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Starts a cooking session and serves it as MCP tools over stdio.

Either --recipe starts a fresh session or --session resumes a stored
one. Configuration comes from the environment (SOUSCHEF_* variables,
.env supported).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.recipeID, "recipe", "r", "", "recipe id to start a new session from")
	cmd.Flags().StringVarP(&opts.sessionID, "session", "s", "", "session id to resume")
	cmd.Flags().IntVarP(&opts.pax, "pax", "p", 0, "number of people to cook for")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	if opts.recipeID == "" && opts.sessionID == "" {
		return errors.New("either --recipe or --session is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, cleanup, err := buildLogger(root, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// Recipes.
	recipes := recipe.NewMemorySource(log)
	if _, statErr := os.Stat(cfg.RecipeDir); statErr == nil {
		if err := recipe.LoadDir(cfg.RecipeDir, recipes, log); err != nil {
			return fmt.Errorf("loading recipes: %w", err)
		}
	} else {
		log.Warn("recipe dir %s not found, starting with no recipes", cfg.RecipeDir)
	}

	// Persistence.
	var store domain.SessionStore
	if cfg.DBPath != "" {
		sqlite, err := storage.NewSQLite(cfg.DBPath, log)
		if err != nil {
			return fmt.Errorf("opening session database: %w", err)
		}
		defer sqlite.Close()
		store = sqlite
		log.Info("sessions persisted to %s", cfg.DBPath)
	} else {
		store = storage.NewMemoryStore(log)
		log.Info("no %s set, sessions are in-memory only", config.EnvDBPath)
	}

	// Realtime feed.
	var changes domain.ChangeSource
	if cfg.RealtimeURL != "" {
		changes = realtime.NewWebSocketSource(cfg.RealtimeURL, log)
		log.Info("realtime feed: %s", cfg.RealtimeURL)
	} else {
		changes = realtime.NewMemorySource()
		log.Info("no %s set, remote edits disabled", config.EnvRealtimeURL)
	}

	// Notifications go to stderr: stdout carries the MCP stream.
	notifier := notify.NewConsole(os.Stderr)

	ctrl := engine.New(recipes, store, changes, notifier, log,
		engine.WithDefaultPax(cfg.DefaultPax),
	)
	defer ctrl.Close()

	if opts.sessionID != "" {
		if _, err := ctrl.ResumeSession(ctx, opts.sessionID); err != nil {
			return fmt.Errorf("resuming session %s: %w", opts.sessionID, err)
		}
	} else {
		if _, err := ctrl.StartSession(ctx, []string{opts.recipeID}, opts.pax, cfg.UserID); err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
	}

	// Consume remote changes for the session's lifetime.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := ctrl.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("change feed stopped: %v", err)
		}
	}()

	s := server.NewMCPServer("souschef", version,
		server.WithToolCapabilities(false),
	)
	tools.Register(s, ctrl, log)

	log.Info("serving MCP over stdio")
	return server.ServeStdio(s)
}
