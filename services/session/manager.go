package session

import (
	"sync"

	"github.com/google/uuid"

	"kinoliba/models"
)

// Direction is a carousel navigation step.
type Direction string

const (
	Next Direction = "next"
	Prev Direction = "prev"
)

// ParseDirection validates a direction coming off the wire.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case Next, Prev:
		return Direction(s), true
	}
	return "", false
}

// Manager owns the per-conversation carousel sessions. Each turn reads and
// writes a session as a whole under the manager lock; a turn acting on a
// stale view simply overwrites state (last write wins), it never merges.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*models.CarouselSession
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*models.CarouselSession)}
}

// Replace installs a new session for the conversation, discarding any
// previous one. Empty result sets never create a session: the previous
// session (if any) is left untouched and nil is returned.
func (m *Manager) Replace(conversationID string, results []models.ContentRef) *models.CarouselSession {
	if len(results) == 0 {
		return nil
	}
	s := &models.CarouselSession{
		Results: append([]models.ContentRef(nil), results...),
		Cursor:  0,
		CardID:  uuid.NewString(),
	}

	m.mu.Lock()
	m.sessions[conversationID] = s
	m.mu.Unlock()

	return s.Clone()
}

// Current returns a copy of the conversation's session, if one exists.
func (m *Manager) Current(conversationID string) (*models.CarouselSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[conversationID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Navigate moves the cursor one step and returns the updated session. A
// move past either end, or a conversation with no session, is a silent
// no-op reported as ok=false so double-taps never flicker the card.
func (m *Manager) Navigate(conversationID string, dir Direction) (*models.CarouselSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[conversationID]
	if !ok {
		return nil, false
	}

	cursor := s.Cursor
	if dir == Next {
		cursor++
	} else {
		cursor--
	}
	if cursor < 0 || cursor >= s.Len() {
		return nil, false
	}

	s.Cursor = cursor
	s.WatchURL = "" // belongs to the previous item
	return s.Clone(), true
}

// SetWatchURL caches the resolved watch link on the current session so a
// keyboard refresh does not re-resolve it.
func (m *Manager) SetWatchURL(conversationID, watchURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[conversationID]; ok {
		s.WatchURL = watchURL
	}
}

// Teardown drops the conversation's session.
func (m *Manager) Teardown(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, conversationID)
}
