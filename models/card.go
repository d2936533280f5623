package models

// Affordances describes which actions the presentation layer should offer
// on a card. It is recomputed from fresh library state on every render, so
// the buttons always reflect what is actually persisted.
type Affordances struct {
	InLibrary bool  `json:"inLibrary"`
	Viewed    bool  `json:"viewed"`
	Recommend *bool `json:"recommend,omitempty"`

	CanAdd        bool `json:"canAdd"`
	CanMarkViewed bool `json:"canMarkViewed"`
	CanDelete     bool `json:"canDelete"`
	CanRecommend  bool `json:"canRecommend"`

	WatchURL     string `json:"watchUrl,omitempty"`
	ShowSimilars bool   `json:"showSimilars"`
}

// BuildAffordances derives the card actions for a record given the user's
// current library entry for it (nil when the content is not in the library).
//
// Library actions exist only for films and series. A title that is not in
// the library can be added or marked viewed in one step; an unviewed entry
// can be marked viewed or deleted; a viewed entry moves to the recommend
// judgment stage and can still be deleted.
func BuildAffordances(rec ContentRecord, entry *LibraryEntry) Affordances {
	a := Affordances{WatchURL: rec.WatchURL}
	if !rec.Kind.HasDetails() {
		return a
	}
	a.ShowSimilars = true

	switch {
	case entry == nil:
		a.CanAdd = true
		a.CanMarkViewed = true
	case !entry.Viewed:
		a.InLibrary = true
		a.CanMarkViewed = true
		a.CanDelete = true
	default:
		a.InLibrary = true
		a.Viewed = true
		a.Recommend = entry.Recommend
		a.CanRecommend = true
		a.CanDelete = true
	}
	if a.WatchURL == "" && entry != nil {
		a.WatchURL = entry.WatchURL
	}
	return a
}

// Card is the render-ready payload handed to the presentation layer: the
// merged record, the action set, and the carousel position.
type Card struct {
	Record      ContentRecord `json:"record"`
	Affordances Affordances   `json:"affordances"`

	CardID   string `json:"cardId,omitempty"`
	Position int    `json:"position"` // 1-based cursor position
	Total    int    `json:"total"`
}

// NewCard assembles a card for the record at the session cursor. The
// session may be nil for cards rendered outside a carousel.
func NewCard(rec ContentRecord, entry *LibraryEntry, s *CarouselSession) Card {
	card := Card{
		Record:      rec,
		Affordances: BuildAffordances(rec, entry),
		Position:    1,
		Total:       1,
	}
	if s != nil {
		card.CardID = s.CardID
		card.Position = s.Cursor + 1
		card.Total = s.Len()
	}
	return card
}
