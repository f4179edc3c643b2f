package store

const schemaV1 = `
-- Decks group a user's cards for filtered review sessions.
CREATE TABLE IF NOT EXISTS decks (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at DATETIME NOT NULL,

    UNIQUE(user_id, name)
);

-- Sources track where imported cards came from, either a local
-- directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    path        TEXT NOT NULL UNIQUE,
    type        TEXT NOT NULL DEFAULT 'local',
    last_synced DATETIME
);

-- Cards carry their scheduling state inline; the pair is written
-- atomically by a single UPDATE.
CREATE TABLE IF NOT EXISTS cards (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    deck_id          TEXT REFERENCES decks(id) ON DELETE SET NULL,
    prompt           TEXT NOT NULL,
    answer           TEXT NOT NULL,
    context          TEXT NOT NULL DEFAULT '',
    content_hash     TEXT NOT NULL,
    source_id        INTEGER REFERENCES sources(id) ON DELETE SET NULL,
    created_at       DATETIME NOT NULL,
    repetition_count INTEGER NOT NULL DEFAULT 0,
    ease_factor      REAL NOT NULL,
    interval_days    INTEGER NOT NULL DEFAULT 0,
    due_at           DATETIME NOT NULL,
    last_reviewed_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_user_hash ON cards(user_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards(user_id, due_at);

-- One row per submitted rating.
CREATE TABLE IF NOT EXISTS review_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id     TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
    rating      INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_id, reviewed_at);
`
