package models

// CarouselSession is the per-conversation browsing state over one result
// set. At most one session exists per conversation; a new successful
// resolution replaces it wholesale. A session with no results is never kept.
type CarouselSession struct {
	Results []ContentRef `json:"results"`
	Cursor  int          `json:"cursor"`

	// CardID is the opaque handle of the currently displayed card message.
	CardID string `json:"cardId"`

	// WatchURL caches the last resolved watch link for the item under the
	// cursor so a keyboard refresh does not re-resolve it.
	WatchURL string `json:"watchUrl,omitempty"`
}

// Len returns the number of results in the session.
func (s *CarouselSession) Len() int {
	return len(s.Results)
}

// Current returns the reference under the cursor.
func (s *CarouselSession) Current() ContentRef {
	return s.Results[s.Cursor]
}

// Clone returns a deep copy safe to hand out across turns.
func (s *CarouselSession) Clone() *CarouselSession {
	out := *s
	out.Results = append([]ContentRef(nil), s.Results...)
	return &out
}
