package models

// Kind identifies the category of a piece of content returned by search.
type Kind string

const (
	KindFilm   Kind = "film"
	KindSeries Kind = "series"
	KindPerson Kind = "person"
)

// Valid reports whether the kind is one of the known content categories.
func (k Kind) Valid() bool {
	switch k {
	case KindFilm, KindSeries, KindPerson:
		return true
	}
	return false
}

// HasDetails reports whether a secondary info fetch exists for this kind.
// Persons carry everything search already returned.
func (k Kind) HasDetails() bool {
	return k == KindFilm || k == KindSeries
}

// ContentRef is the minimal identity of a piece of content. It is the join
// key between carousel sessions, library entries, and caches.
type ContentRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// Key returns a stable string form of the reference.
func (r ContentRef) Key() string {
	return string(r.Kind) + ":" + r.ID
}

// IsZero reports whether the reference is empty.
func (r ContentRef) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// ContentRecord is the full data for a reference. Search produces a partial
// record; enrichment merges a detailed fetch and an optional watch URL on
// top of it. Records are rebuilt on every fetch, never updated in place.
type ContentRecord struct {
	ContentRef

	Title         string `json:"title,omitempty"`
	OriginalTitle string `json:"originalTitle,omitempty"`

	Year         int `json:"year,omitempty"`         // films
	ReleaseStart int `json:"releaseStart,omitempty"` // series
	ReleaseEnd   int `json:"releaseEnd,omitempty"`

	Genres    []string `json:"genres,omitempty"`
	Countries []string `json:"countries,omitempty"`
	Cast      []string `json:"cast,omitempty"`

	KinoRating float64 `json:"kinoRating,omitempty"`
	IMDBRating float64 `json:"imdbRating,omitempty"`

	Synopsis       string `json:"synopsis,omitempty"`
	RuntimeMinutes int    `json:"runtimeMinutes,omitempty"`

	PosterURL string `json:"posterUrl,omitempty"`
	PageURL   string `json:"pageUrl,omitempty"`
	WatchURL  string `json:"watchUrl,omitempty"`
}

// Ref returns the identity portion of the record.
func (r ContentRecord) Ref() ContentRef {
	return r.ContentRef
}

// DisplayTitle returns the localized title, falling back to the original one.
func (r ContentRecord) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.OriginalTitle
}

// DisplayYear returns the release year appropriate for the kind.
func (r ContentRecord) DisplayYear() int {
	if r.Year != 0 {
		return r.Year
	}
	return r.ReleaseStart
}

const displayListLimit = 3

// TopGenres returns the genres truncated for card display.
func (r ContentRecord) TopGenres() []string {
	return truncateList(r.Genres, displayListLimit)
}

// TopCast returns the cast truncated for card display.
func (r ContentRecord) TopCast() []string {
	return truncateList(r.Cast, displayListLimit)
}

func truncateList(items []string, max int) []string {
	if len(items) <= max {
		return items
	}
	return items[:max]
}

// Merge overlays a detailed record on top of this one and returns the
// result. Non-zero fields of the detail win; fields the detail is missing
// fall back to the receiver. Neither input is modified.
func (r ContentRecord) Merge(detail ContentRecord) ContentRecord {
	out := r
	if !detail.ContentRef.IsZero() {
		out.ContentRef = detail.ContentRef
	}
	if detail.Title != "" {
		out.Title = detail.Title
	}
	if detail.OriginalTitle != "" {
		out.OriginalTitle = detail.OriginalTitle
	}
	if detail.Year != 0 {
		out.Year = detail.Year
	}
	if detail.ReleaseStart != 0 {
		out.ReleaseStart = detail.ReleaseStart
	}
	if detail.ReleaseEnd != 0 {
		out.ReleaseEnd = detail.ReleaseEnd
	}
	if len(detail.Genres) > 0 {
		out.Genres = detail.Genres
	}
	if len(detail.Countries) > 0 {
		out.Countries = detail.Countries
	}
	if len(detail.Cast) > 0 {
		out.Cast = detail.Cast
	}
	if detail.KinoRating != 0 {
		out.KinoRating = detail.KinoRating
	}
	if detail.IMDBRating != 0 {
		out.IMDBRating = detail.IMDBRating
	}
	if detail.Synopsis != "" {
		out.Synopsis = detail.Synopsis
	}
	if detail.RuntimeMinutes != 0 {
		out.RuntimeMinutes = detail.RuntimeMinutes
	}
	if detail.PosterURL != "" {
		out.PosterURL = detail.PosterURL
	}
	if detail.PageURL != "" {
		out.PageURL = detail.PageURL
	}
	if detail.WatchURL != "" {
		out.WatchURL = detail.WatchURL
	}
	return out
}

// DedupRecords removes records sharing a ContentRef, keeping the first
// occurrence, and caps the result at max entries (0 = no cap).
func DedupRecords(records []ContentRecord, max int) []ContentRecord {
	seen := make(map[ContentRef]struct{}, len(records))
	out := make([]ContentRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.Ref()]; ok {
			continue
		}
		seen[rec.Ref()] = struct{}{}
		out = append(out, rec)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// SearchResult is what the upstream search collaborator yields: a best
// match plus ranked alternatives. Ranking is delegated upstream.
type SearchResult struct {
	Primary      *ContentRecord
	Alternatives []ContentRecord
}
