// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/paichat-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotCached     = errors.New("conversation not cached")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// HISTORY CACHE
// =============================================================================

// HistoryCache is a write-through mirror of server-side conversations. The
// server stays authoritative; the cache only serves reads when the network
// does not.
type HistoryCache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*HistoryCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &HistoryCache{db: db}, nil
}

// Close releases the database.
func (c *HistoryCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// =============================================================================
// WRITES
// =============================================================================

// SaveConversation replaces the cached copy of conv wholesale: row upsert
// plus full transcript rewrite. Local-only conversations are skipped; they
// have no server identity to key on.
func (c *HistoryCache) SaveConversation(ctx context.Context, conv model.Conversation) error {
	if conv.IsLocal() {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, last_activity)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, last_activity = excluded.last_activity
	`, conv.ID, conv.Title, conv.LastActivity.Unix()); err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for seq, msg := range conv.Messages {
		// Unsettled placeholders never reach disk.
		if msg.IsGenerating {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, seq, role, content, duration, positive, negative, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, msg.ID, conv.ID, seq, string(msg.Role), msg.Content, msg.Duration,
			boolInt(msg.PositiveFeedback), boolInt(msg.NegativeFeedback), msg.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SaveSummaries upserts conversation rows from a history listing without
// touching transcripts.
func (c *HistoryCache) SaveSummaries(ctx context.Context, convs []model.Conversation) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	for _, conv := range convs {
		if conv.IsLocal() {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, title, last_activity)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, last_activity = excluded.last_activity
		`, conv.ID, conv.Title, conv.LastActivity.Unix()); err != nil {
			return fmt.Errorf("failed to upsert conversation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Delete removes a conversation and its messages from the cache.
func (c *HistoryCache) Delete(ctx context.Context, conversationID string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", conversationID); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Conversations lists cached conversation summaries, most recent first.
// Messages are not loaded; use Messages for the transcript.
func (c *HistoryCache) Conversations(ctx context.Context) ([]model.Conversation, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, last_activity FROM conversations ORDER BY last_activity DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		var activity int64
		if err := rows.Scan(&conv.ID, &conv.Title, &activity); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		conv.LastActivity = unixTime(activity)
		out = append(out, conv)
	}
	return out, rows.Err()
}

// Messages loads the cached transcript of one conversation in order.
func (c *HistoryCache) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var exists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations WHERE id = ?", conversationID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if exists == 0 {
		return nil, ErrNotCached
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, role, content, duration, positive, negative, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var msg model.Message
		var role string
		var positive, negative int
		var created int64
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.Duration, &positive, &negative, &created); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		msg.Role = model.Role(role)
		msg.PositiveFeedback = positive != 0
		msg.NegativeFeedback = negative != 0
		msg.CreatedAt = unixTime(created)
		out = append(out, msg)
	}
	return out, rows.Err()
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
