package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kinoliba/models"
)

// ErrNoChange is returned by an update closure to signal that the library
// does not need to be persisted. Stores must skip the write and surface
// the sentinel to the caller.
var ErrNoChange = errors.New("library unchanged")

// Store is durable per-user library storage. Update runs the closure under
// a per-user read-modify-write critical section, so concurrent operations
// on the same user never lose updates; different users never contend.
type Store interface {
	Load(ctx context.Context, userID string) (*models.UserLibrary, error)
	Update(ctx context.Context, userID string, fn func(*models.UserLibrary) error) error
}

// Service applies library actions with the conflict semantics the cards
// rely on: every operation either applies exactly once or reports a no-op,
// and all writes are persisted before the call returns.
type Service struct {
	store Store
}

// NewService creates a library service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add inserts a record into the user's library. It reports applied=false
// when an entry with the same reference already exists.
func (s *Service) Add(ctx context.Context, userID string, rec models.ContentRecord) (bool, error) {
	err := s.store.Update(ctx, userID, func(lib *models.UserLibrary) error {
		if lib.Contains(rec.Ref()) {
			return ErrNoChange
		}
		lib.Append(models.LibraryEntry{
			ContentRecord: rec,
			AddedAt:       time.Now().UTC(),
		})
		return nil
	})
	return applied(err)
}

// MarkViewed flags a record as viewed, creating the entry first when it is
// not in the library yet. An existing recommend judgment is never cleared.
// It reports applied=false when the entry was already viewed.
func (s *Service) MarkViewed(ctx context.Context, userID string, rec models.ContentRecord) (bool, error) {
	err := s.store.Update(ctx, userID, func(lib *models.UserLibrary) error {
		entry := lib.Find(rec.Ref())
		if entry == nil {
			lib.Append(models.LibraryEntry{
				ContentRecord: rec,
				Viewed:        true,
				AddedAt:       time.Now().UTC(),
			})
			return nil
		}
		if entry.Viewed {
			return ErrNoChange
		}
		entry.Viewed = true
		return nil
	})
	return applied(err)
}

// Delete removes the entry with the given reference. It reports
// applied=false when no such entry exists.
func (s *Service) Delete(ctx context.Context, userID string, ref models.ContentRef) (bool, error) {
	err := s.store.Update(ctx, userID, func(lib *models.UserLibrary) error {
		if !lib.Remove(ref) {
			return ErrNoChange
		}
		return nil
	})
	return applied(err)
}

// SetRecommend records the user's judgment for an entry, marking it viewed
// as a side effect. The entry must exist. A judgment equal to the stored
// one skips the write entirely, so double-taps cause no redundant
// persistence and no redundant notifications.
func (s *Service) SetRecommend(ctx context.Context, userID string, ref models.ContentRef, value bool) (bool, error) {
	err := s.store.Update(ctx, userID, func(lib *models.UserLibrary) error {
		entry := lib.Find(ref)
		if entry == nil {
			return ErrNoChange
		}
		if entry.Recommend != nil && *entry.Recommend == value && entry.Viewed {
			return ErrNoChange
		}
		entry.Viewed = true
		entry.Recommend = &value
		return nil
	})
	return applied(err)
}

// Get returns the user's entry for a reference, or nil when absent.
func (s *Service) Get(ctx context.Context, userID string, ref models.ContentRef) (*models.LibraryEntry, error) {
	lib, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load library for %s: %w", userID, err)
	}
	entry := lib.Find(ref)
	if entry == nil {
		return nil, nil
	}
	out := *entry
	return &out, nil
}

// Filter returns the user's entries matching the predicate, in the
// insertion order of the underlying store.
func (s *Service) Filter(ctx context.Context, userID string, f models.Filter) ([]models.LibraryEntry, error) {
	lib, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load library for %s: %w", userID, err)
	}
	return lib.Filtered(f), nil
}

// applied maps the ErrNoChange sentinel onto the (applied, err) pair the
// card layer expects: conflicts are no-op results, not errors.
func applied(err error) (bool, error) {
	if errors.Is(err, ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
