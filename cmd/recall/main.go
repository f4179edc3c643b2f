package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/recallkit/recall/internal/config"
	"github.com/recallkit/recall/internal/importer"
	"github.com/recallkit/recall/internal/session"
	"github.com/recallkit/recall/internal/srs"
	"github.com/recallkit/recall/internal/store"
	"github.com/recallkit/recall/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("recall failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	defaults := config.Default()

	flags := pflag.NewFlagSet("recall", pflag.ExitOnError)
	configPath := flags.String("config", "recall.yaml", "Path to the YAML config file")
	flags.String("db_path", defaults.DBPath, "Path to the SQLite database file")
	flags.String("listen_addr", defaults.ListenAddr, "Web UI bind address")
	flags.String("repos_dir", defaults.ReposDir, "Directory where git sources are mirrored")
	flags.String("user", defaults.User, "Owner of cards and sessions")
	flags.Int("session_limit", defaults.SessionLimit, "Max cards per review session, 0 for unlimited")
	serve := flags.Bool("serve", false, "Start the review web UI")
	sync := flags.Bool("sync", false, "Sync all card sources and exit")
	addSource := flags.String("add-source", "", "Register a card source (git URL or local path) and exit")
	verbose := flags.BoolP("verbose", "v", false, "Enable debug logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	slog.Debug("database opened", "path", cfg.DBPath)

	ctx := context.Background()
	params := srs.DefaultParams()
	im := importer.New(db, params, cfg.User, cfg.ReposDir)

	switch {
	case *addSource != "":
		id, err := db.InsertSource(ctx, *addSource, importer.SourceType(*addSource))
		if err != nil {
			return fmt.Errorf("failed to add source: %w", err)
		}
		slog.Info("source registered", "id", id, "path", *addSource)
		return nil

	case *sync:
		return im.SyncAll(ctx)

	case *serve:
		manager := session.NewManager(db, params)
		srv, err := web.NewServer(db, manager, im, web.Options{
			User:         cfg.User,
			SessionLimit: cfg.SessionLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to build server: %w", err)
		}
		slog.Info("serving review UI", "addr", cfg.ListenAddr)
		return http.ListenAndServe(cfg.ListenAddr, srv)

	default:
		return printDueSummary(ctx, db, cfg.User)
	}
}

// printDueSummary is the no-flags default: how much is waiting.
func printDueSummary(ctx context.Context, db *store.DB, user string) error {
	due, err := db.FindDue(ctx, user, store.Filter{}, time.Now())
	if err != nil {
		return fmt.Errorf("failed to count due cards: %w", err)
	}
	decks, err := db.ListDecks(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to list decks: %w", err)
	}

	perDeck := make(map[string]int)
	for _, cs := range due {
		perDeck[cs.Card.DeckID]++
	}
	fmt.Printf("%d cards due\n", len(due))
	for _, d := range decks {
		if n := perDeck[d.ID]; n > 0 {
			fmt.Printf("  %-24s %d\n", d.Name, n)
		}
	}
	return nil
}
