// Package importer reconciles configured card sources with the store.
//
// A source is a local directory or a git repository of markdown card files.
// Each sync pass parses every file, inserts cards not seen before (identified
// by content hash), and deletes cards whose content has disappeared from the
// source. Imported cards land in a deck named after the source.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/recallkit/recall/internal/cardhash"
	"github.com/recallkit/recall/internal/gitsource"
	"github.com/recallkit/recall/internal/parser"
	"github.com/recallkit/recall/internal/srs"
	"github.com/recallkit/recall/internal/store"
)

// Importer syncs card sources into the store for one user.
type Importer struct {
	db       *store.DB
	params   *srs.Params
	userID   string
	reposDir string
}

// New creates an Importer. reposDir is where git sources are mirrored.
func New(db *store.DB, params *srs.Params, userID, reposDir string) *Importer {
	if params == nil {
		params = srs.DefaultParams()
	}
	return &Importer{db: db, params: params, userID: userID, reposDir: reposDir}
}

// SourceType classifies a source path as "git" or "local".
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return "git"
	}
	return "local"
}

// SyncAll reconciles every configured source. Per-source failures are
// logged and skipped; the pass keeps going.
func (im *Importer) SyncAll(ctx context.Context) error {
	sources, err := im.db.GetAllSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("no sources configured")
		return nil
	}

	if err := os.MkdirAll(im.reposDir, 0o755); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
		if err := im.syncSource(ctx, source); err != nil {
			slog.Error("source sync failed", "id", source.ID, "path", source.Path, "error", err)
		}
	}
	return nil
}

func (im *Importer) syncSource(ctx context.Context, source store.Source) error {
	localPath := source.Path
	if source.Type == "git" {
		var err error
		localPath, err = gitURLToLocalPath(im.reposDir, source.Path)
		if err != nil {
			return err
		}
		if err := gitsource.Sync(ctx, source.Path, localPath); err != nil {
			return err
		}
	}
	return im.reconcile(ctx, source, localPath)
}

// reconcile walks localPath, inserts new cards, and deletes cards the
// source no longer contains.
func (im *Importer) reconcile(ctx context.Context, source store.Source, localPath string) error {
	deck, err := im.db.GetOrCreateDeck(ctx, im.userID, filepath.Base(localPath))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	foundHashes := make(map[string]bool)
	var parsed, inserted int
	var softErrs []error

	walkErr := filepath.WalkDir(localPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			softErrs = append(softErrs, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, card := range fileCards {
			card.ContentHash = cardhash.Hash(card)
			parsed++
			if foundHashes[card.ContentHash] {
				continue // duplicate within the source
			}
			foundHashes[card.ContentHash] = true

			existing, findErr := im.db.FindCardByHash(ctx, im.userID, card.ContentHash)
			if findErr != nil {
				softErrs = append(softErrs, fmt.Errorf("db check for %s: %w", card.ContentHash, findErr))
				continue
			}
			if existing != nil {
				continue
			}

			card.ID = store.NewID()
			card.UserID = im.userID
			card.DeckID = deck.ID
			card.SourceID = source.ID
			card.CreatedAt = now
			if insertErr := im.db.InsertCard(ctx, card, im.params.NewState(now)); insertErr != nil {
				softErrs = append(softErrs, fmt.Errorf("db insert for %s: %w", card.ContentHash, insertErr))
				continue
			}
			inserted++
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walking %s: %w", localPath, walkErr)
	}

	dbCards, err := im.db.GetCardsBySourceID(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("getting cards for source %d: %w", source.ID, err)
	}

	var orphaned int
	for _, dbCard := range dbCards {
		if !foundHashes[dbCard.Card.ContentHash] {
			orphaned++
			if err := im.db.DeleteCard(ctx, dbCard.Card.ID); err != nil {
				slog.Warn("failed to delete orphaned card", "card", dbCard.Card.ID, "error", err)
			}
		}
	}

	if err := im.db.UpdateSourceLastSynced(ctx, source.ID); err != nil {
		slog.Warn("failed to update last synced", "source", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", localPath,
		"parsed_cards", parsed,
		"inserted", inserted,
		"orphaned_deleted", orphaned,
		"errors", len(softErrs),
	)
	for _, e := range softErrs {
		slog.Warn("sync issue", "error", e)
	}
	return nil
}

// gitURLToLocalPath maps a git URL to a stable mirror path under baseDir.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-like syntax: git@host:user/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
