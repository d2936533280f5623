// Package database provides the SQLite-backed library store. One row per
// (user, kind, id); insertion order is the autoincrement sequence, which
// keeps library listings stable across restarts.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"kinoliba/models"
	"kinoliba/services/library"
)

// Store implements library.Store on SQLite.
type Store struct {
	conn *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open opens (and migrates) the library database at databasePath.
func Open(databasePath string) (*Store, error) {
	conn, err := openConn(databasePath)
	if err != nil {
		return nil, err
	}
	return &Store{
		conn:  conn,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// Load reads the user's library in insertion order.
func (s *Store) Load(ctx context.Context, userID string) (*models.UserLibrary, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.load(ctx, userID)
}

func (s *Store) load(ctx context.Context, userID string) (*models.UserLibrary, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT record, viewed, recommend, added_at
		   FROM library_entries
		  WHERE user_id = ?
		  ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query library for %s: %w", userID, err)
	}
	defer rows.Close()

	lib := &models.UserLibrary{}
	for rows.Next() {
		var (
			recordJSON string
			viewed     bool
			recommend  sql.NullBool
			addedAt    time.Time
		)
		if err := rows.Scan(&recordJSON, &viewed, &recommend, &addedAt); err != nil {
			return nil, fmt.Errorf("scan library row for %s: %w", userID, err)
		}

		var rec models.ContentRecord
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			return nil, fmt.Errorf("decode library record for %s: %w", userID, err)
		}

		entry := models.LibraryEntry{
			ContentRecord: rec,
			Viewed:        viewed,
			AddedAt:       addedAt,
		}
		if recommend.Valid {
			value := recommend.Bool
			entry.Recommend = &value
		}
		lib.Append(entry)
	}
	return lib, rows.Err()
}

// Update runs fn against the user's library under the per-user lock and
// rewrites the user's rows in one transaction. A closure returning
// library.ErrNoChange skips the write.
func (s *Store) Update(ctx context.Context, userID string, fn func(*models.UserLibrary) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	lib, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := fn(lib); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin library update for %s: %w", userID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM library_entries WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear library for %s: %w", userID, err)
	}

	for _, entry := range lib.Entries {
		recordJSON, err := json.Marshal(entry.ContentRecord)
		if err != nil {
			return fmt.Errorf("encode library record for %s: %w", userID, err)
		}

		var recommend sql.NullBool
		if entry.Recommend != nil {
			recommend = sql.NullBool{Bool: *entry.Recommend, Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO library_entries (user_id, kind, content_id, record, viewed, recommend, added_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, string(entry.Kind), entry.ID, string(recordJSON), entry.Viewed, recommend, entry.AddedAt)
		if err != nil {
			return fmt.Errorf("insert library entry %s for %s: %w", entry.Ref().Key(), userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit library update for %s: %w", userID, err)
	}
	return nil
}

var _ library.Store = (*Store)(nil)
