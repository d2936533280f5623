// Package filestore persists each user's library as one JSON file, the
// storage model the bot has always used. All access goes through a
// per-user lock so read-modify-write cycles never lose updates.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"kinoliba/models"
	"kinoliba/services/library"
)

// Store is an afero-backed library store. Backing it with
// afero.NewMemMapFs() gives tests a real store without touching disk.
type Store struct {
	fs  afero.Fs
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a file store rooted at dir, creating it when missing.
func New(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	return &Store{
		fs:    fs,
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
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

func (s *Store) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// Load reads the user's library. A missing file is an empty library; an
// unreadable one is reset to empty rather than wedging the user forever.
func (s *Store) Load(ctx context.Context, userID string) (*models.UserLibrary, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.load(ctx, userID)
}

func (s *Store) load(ctx context.Context, userID string) (*models.UserLibrary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, s.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return &models.UserLibrary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read library file for %s: %w", userID, err)
	}

	var lib models.UserLibrary
	if err := json.Unmarshal(data, &lib); err != nil {
		log.Printf("[filestore] corrupt library file for %s, resetting: %v", userID, err)
		return &models.UserLibrary{}, nil
	}
	return &lib, nil
}

// Update runs fn against the user's library and persists the result. A
// closure returning library.ErrNoChange skips the write. The file is
// replaced atomically via write-then-rename.
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

	data, err := json.MarshalIndent(lib, "", "  ")
	if err != nil {
		return fmt.Errorf("encode library for %s: %w", userID, err)
	}

	target := s.path(userID)
	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write library file for %s: %w", userID, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace library file for %s: %w", userID, err)
	}
	return nil
}

var _ library.Store = (*Store)(nil)
