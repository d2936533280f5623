package models

import "time"

// LibraryEntry is a content record owned by one user, augmented with the
// viewed flag and the recommend judgment. Recommend is tri-state: nil means
// the user has not judged the title yet.
type LibraryEntry struct {
	ContentRecord

	Viewed    bool      `json:"viewed"`
	Recommend *bool     `json:"recommend,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// UserLibrary is one user's persisted collection, in insertion order.
type UserLibrary struct {
	Entries []LibraryEntry `json:"entries"`
}

// Find returns a pointer to the entry with the given reference, or nil.
// The pointer aliases the library's backing slice, so mutations through it
// are visible to subsequent lookups.
func (l *UserLibrary) Find(ref ContentRef) *LibraryEntry {
	for i := range l.Entries {
		if l.Entries[i].Ref() == ref {
			return &l.Entries[i]
		}
	}
	return nil
}

// Contains reports whether an entry with the given reference exists.
func (l *UserLibrary) Contains(ref ContentRef) bool {
	return l.Find(ref) != nil
}

// Append adds an entry at the end of the library.
func (l *UserLibrary) Append(entry LibraryEntry) {
	l.Entries = append(l.Entries, entry)
}

// Remove deletes the entry with the given reference, preserving the order
// of the remaining entries. It reports whether anything was removed.
func (l *UserLibrary) Remove(ref ContentRef) bool {
	for i := range l.Entries {
		if l.Entries[i].Ref() == ref {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Filter selects a subset of a user's library.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterFilm        Filter = "film"
	FilterSeries      Filter = "series"
	FilterUnseen      Filter = "unseen"
	FilterSeen        Filter = "seen"
	FilterRecommended Filter = "recommended"
)

// Valid reports whether the filter is one of the known predicates.
func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterFilm, FilterSeries, FilterUnseen, FilterSeen, FilterRecommended:
		return true
	}
	return false
}

// Match reports whether the entry satisfies the filter predicate.
func (f Filter) Match(entry LibraryEntry) bool {
	switch f {
	case FilterFilm:
		return entry.Kind == KindFilm
	case FilterSeries:
		return entry.Kind == KindSeries
	case FilterUnseen:
		return !entry.Viewed
	case FilterSeen:
		return entry.Viewed
	case FilterRecommended:
		return entry.Recommend != nil && *entry.Recommend
	default:
		return true
	}
}

// Filtered returns the entries matching the filter, in insertion order.
func (l *UserLibrary) Filtered(f Filter) []LibraryEntry {
	out := make([]LibraryEntry, 0, len(l.Entries))
	for _, entry := range l.Entries {
		if f.Match(entry) {
			out = append(out, entry)
		}
	}
	return out
}
