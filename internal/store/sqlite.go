package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // registers the sqlite driver

	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/srs"
)

// currentSchemaVersion is the latest schema version. Bump when adding
// migrations.
const currentSchemaVersion = 1

// DB is the SQLite-backed store. All timestamps are stored in UTC so the
// textual column ordering matches chronological ordering.
type DB struct {
	conn *sql.DB
}

var _ CardStore = (*DB)(nil)

// Open creates a database connection and brings the schema up to date.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate applies schema migrations based on the user_version pragma.
func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to read user_version: %w", err)
	}

	if version < 1 {
		if _, err := conn.Exec(schemaV1); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version=%d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// NewID returns a fresh ULID for cards and decks.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// InsertCard inserts a card together with its initial scheduling state.
func (db *DB) InsertCard(ctx context.Context, card domain.Card, state srs.ScheduleState) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (id, user_id, deck_id, prompt, answer, context, content_hash,
			source_id, created_at, repetition_count, ease_factor, interval_days, due_at, last_reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.UserID,
		nullString(card.DeckID),
		card.Prompt,
		card.Answer,
		card.Context,
		card.ContentHash,
		nullInt64(card.SourceID),
		card.CreatedAt.UTC(),
		state.RepetitionCount,
		state.EaseFactor,
		state.IntervalDays,
		state.DueAt.UTC(),
		nullTime(state.LastReviewedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// Get implements CardStore.
func (db *DB) Get(ctx context.Context, cardID string) (*CardWithState, error) {
	row := db.conn.QueryRowContext(ctx, selectCard+` WHERE id = ?`, cardID)
	cs, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, cardID)
		}
		return nil, fmt.Errorf("failed to get card %s: %w", cardID, err)
	}
	return cs, nil
}

// FindCardByHash looks a card up by its owner and content hash.
// Returns (nil, nil) when no card matches.
func (db *DB) FindCardByHash(ctx context.Context, userID, hash string) (*CardWithState, error) {
	row := db.conn.QueryRowContext(ctx, selectCard+` WHERE user_id = ? AND content_hash = ?`, userID, hash)
	cs, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return cs, nil
}

// FindDue implements CardStore.
func (db *DB) FindDue(ctx context.Context, userID string, filter Filter, now time.Time) ([]CardWithState, error) {
	query := selectCard + ` WHERE user_id = ? AND due_at <= ?`
	args := []any{userID, now.UTC()}
	if filter.DeckID != "" {
		query += ` AND deck_id = ?`
		args = append(args, filter.DeckID)
	}
	query += ` ORDER BY due_at ASC, last_reviewed_at IS NOT NULL, last_reviewed_at ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due cards for user %s: %w", userID, err)
	}
	defer rows.Close()

	var due []CardWithState
	for rows.Next() {
		cs, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due card row: %w", err)
		}
		due = append(due, *cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due card rows: %w", err)
	}
	return due, nil
}

// SaveScheduleState implements CardStore. The state columns are written in a
// single UPDATE, so a card's state is replaced atomically or not at all.
func (db *DB) SaveScheduleState(ctx context.Context, cardID string, state srs.ScheduleState) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards
		SET repetition_count = ?, ease_factor = ?, interval_days = ?, due_at = ?, last_reviewed_at = ?
		WHERE id = ?
	`,
		state.RepetitionCount,
		state.EaseFactor,
		state.IntervalDays,
		state.DueAt.UTC(),
		nullTime(state.LastReviewedAt),
		cardID,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule state for card %s: %w", cardID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check schedule state update for card %s: %w", cardID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	return nil
}

// DeleteCard removes a card; review logs cascade.
func (db *DB) DeleteCard(ctx context.Context, cardID string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", cardID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete for card %s: %w", cardID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	return nil
}

// GetCardsBySourceID returns every card imported from the given source.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]CardWithState, error) {
	rows, err := db.conn.QueryContext(ctx, selectCard+` WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source %d: %w", sourceID, err)
	}
	defer rows.Close()

	var cards []CardWithState
	for rows.Next() {
		cs, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row for source %d: %w", sourceID, err)
		}
		cards = append(cards, *cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read card rows for source %d: %w", sourceID, err)
	}
	return cards, nil
}

// AppendReviewLog records a submitted rating.
func (db *DB) AppendReviewLog(ctx context.Context, log domain.ReviewLog) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_logs (card_id, rating, reviewed_at)
		VALUES (?, ?, ?)
	`, log.CardID, log.Rating, log.ReviewedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append review log for card %s: %w", log.CardID, err)
	}
	return nil
}

// GetReviewLogs returns a card's review history, oldest first.
func (db *DB) GetReviewLogs(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT card_id, rating, reviewed_at FROM review_logs
		WHERE card_id = ? ORDER BY reviewed_at ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to read review logs for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		if err := rows.Scan(&l.CardID, &l.Rating, &l.ReviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read review log rows: %w", err)
	}
	return logs, nil
}

// GetOrCreateDeck returns the user's deck with the given name, creating it
// on first use.
func (db *DB) GetOrCreateDeck(ctx context.Context, userID, name string) (*domain.Deck, error) {
	var d domain.Deck
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at FROM decks WHERE user_id = ? AND name = ?
	`, userID, name).Scan(&d.ID, &d.UserID, &d.Name, &d.CreatedAt)
	if err == nil {
		return &d, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up deck %q: %w", name, err)
	}

	d = domain.Deck{ID: NewID(), UserID: userID, Name: name, CreatedAt: time.Now().UTC()}
	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO decks (id, user_id, name, created_at) VALUES (?, ?, ?, ?)
	`, d.ID, d.UserID, d.Name, d.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create deck %q: %w", name, err)
	}
	return &d, nil
}

// ListDecks returns the user's decks ordered by name.
func (db *DB) ListDecks(ctx context.Context, userID string) ([]domain.Deck, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, name, created_at FROM decks WHERE user_id = ? ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks for user %s: %w", userID, err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deck rows: %w", err)
	}
	return decks, nil
}

// Source is a configured card origin, either a local path or a git URL.
type Source struct {
	ID         int64
	Path       string
	Type       string // "local" or "git"
	LastSynced sql.NullTime
}

// InsertSource registers a new source and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path, sourceType string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type) VALUES (?, ?)
	`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get ID for source %s: %w", path, err)
	}
	return id, nil
}

// GetAllSources returns every configured source.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, path, type, last_synced FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.LastSynced); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source rows: %w", err)
	}
	return sources, nil
}

// DeleteSource removes a source; imported cards keep their rows but lose
// the provenance link.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}

// UpdateSourceLastSynced stamps the source with the current time.
func (db *DB) UpdateSourceLastSynced(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `
		UPDATE sources SET last_synced = ? WHERE id = ?
	`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update last synced for source %d: %w", id, err)
	}
	return nil
}

const selectCard = `
	SELECT id, user_id, deck_id, prompt, answer, context, content_hash, source_id,
		created_at, repetition_count, ease_factor, interval_days, due_at, last_reviewed_at
	FROM cards`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCard(row scanner) (*CardWithState, error) {
	var (
		cs           CardWithState
		deckID       sql.NullString
		sourceID     sql.NullInt64
		lastReviewed sql.NullTime
	)
	err := row.Scan(
		&cs.Card.ID,
		&cs.Card.UserID,
		&deckID,
		&cs.Card.Prompt,
		&cs.Card.Answer,
		&cs.Card.Context,
		&cs.Card.ContentHash,
		&sourceID,
		&cs.Card.CreatedAt,
		&cs.State.RepetitionCount,
		&cs.State.EaseFactor,
		&cs.State.IntervalDays,
		&cs.State.DueAt,
		&lastReviewed,
	)
	if err != nil {
		return nil, err
	}
	cs.Card.DeckID = deckID.String
	cs.Card.SourceID = sourceID.Int64
	if lastReviewed.Valid {
		t := lastReviewed.Time
		cs.State.LastReviewedAt = &t
	}
	return &cs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
