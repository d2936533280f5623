package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"kinoliba/models"
)

// ErrSearchUnavailable distinguishes a search transport failure from an
// empty result, so the user can be told to retry later instead of being
// told the title does not exist.
var ErrSearchUnavailable = errors.New("search upstream unavailable")

const (
	// maxResults caps the combined candidate list handed to a session.
	maxResults = 10

	// maxQueryLength bounds free-text queries in runes.
	maxQueryLength = 100
)

// SearchClient is the upstream search collaborator.
type SearchClient interface {
	Search(ctx context.Context, query string) (models.SearchResult, error)
}

// Identifier guesses an exact title from a free-text description. It is
// best-effort: an empty title with nil error means "no suggestion".
type Identifier interface {
	IdentifyByDescription(ctx context.Context, text string) (string, error)
}

// IsQueryValid reports whether a free-text query may be resolved: it must
// be non-empty and at most 100 characters. Callers are expected to check
// this before invoking Resolve.
func IsQueryValid(query string) bool {
	return query != "" && utf8.RuneCountInString(query) <= maxQueryLength
}

// Resolution is an ordered, deduplicated candidate list: the primary match
// first, then alternatives in search-returned order.
type Resolution struct {
	Primary      *models.ContentRecord
	Alternatives []models.ContentRecord
}

// Empty reports whether the resolution found nothing.
func (r *Resolution) Empty() bool {
	return r.Primary == nil
}

// Records returns the full candidate list, primary first.
func (r *Resolution) Records() []models.ContentRecord {
	if r.Primary == nil {
		return nil
	}
	out := make([]models.ContentRecord, 0, 1+len(r.Alternatives))
	out = append(out, *r.Primary)
	out = append(out, r.Alternatives...)
	return out
}

// Refs returns the candidate references in display order.
func (r *Resolution) Refs() []models.ContentRef {
	records := r.Records()
	out := make([]models.ContentRef, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Ref())
	}
	return out
}

// Resolver turns a raw text query into an ordered candidate list, falling
// back to an AI title guess when the primary search finds nothing.
type Resolver struct {
	search   SearchClient
	identify Identifier // nil disables the description fallback
	sf       singleflight.Group
}

// New creates a resolver. identify may be nil.
func New(search SearchClient, identify Identifier) *Resolver {
	return &Resolver{search: search, identify: identify}
}

// Resolve runs the search, optionally retries it with an AI-guessed title,
// and returns the deduplicated candidate list. An empty resolution with a
// nil error means "not found". Concurrent identical queries are collapsed
// into a single upstream call.
func (r *Resolver) Resolve(ctx context.Context, query string) (*Resolution, error) {
	v, err, _ := r.sf.Do(query, func() (interface{}, error) {
		return r.resolve(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Resolution), nil
}

func (r *Resolver) resolve(ctx context.Context, query string) (*Resolution, error) {
	result, err := r.search.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	if result.Primary == nil && r.identify != nil {
		title, err := r.identify.IdentifyByDescription(ctx, query)
		if err != nil {
			// The fallback is best-effort; a failed guess is "no suggestion".
			log.Printf("[resolver] description fallback failed for %q: %v", query, err)
			title = ""
		}
		if title != "" {
			result, err = r.search.Search(ctx, title)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
			}
		}
	}

	if result.Primary == nil {
		return &Resolution{}, nil
	}

	combined := make([]models.ContentRecord, 0, 1+len(result.Alternatives))
	combined = append(combined, *result.Primary)
	combined = append(combined, result.Alternatives...)
	combined = models.DedupRecords(combined, maxResults)

	return &Resolution{
		Primary:      &combined[0],
		Alternatives: combined[1:],
	}, nil
}
