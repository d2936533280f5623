package enrich

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mozillazg/go-unidecode"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sourcegraph/conc/iter"

	"kinoliba/models"
)

const (
	memoSize     = 256
	linkCacheTTL = 6 * time.Hour
	linkSweep    = 30 * time.Minute
)

// InfoClient fetches the detailed record for a reference.
type InfoClient interface {
	Info(ctx context.Context, ref models.ContentRef) (models.ContentRecord, error)
}

// WatchLinkClient resolves a playable link for a title. A miss is an empty
// string with a nil error.
type WatchLinkClient interface {
	LookupWatchURL(ctx context.Context, title string) (string, error)
}

// Enricher merges detailed info and an optional watch link onto partial
// records. It never touches library state.
type Enricher struct {
	info  InfoClient
	watch WatchLinkClient // nil disables watch-link lookups

	memo  *lru.Cache[models.ContentRef, models.ContentRecord]
	links *gocache.Cache
}

// New creates an enricher. watch may be nil.
func New(info InfoClient, watch WatchLinkClient) *Enricher {
	memo, _ := lru.New[models.ContentRef, models.ContentRecord](memoSize)
	return &Enricher{
		info:  info,
		watch: watch,
		memo:  memo,
		links: gocache.New(linkCacheTTL, linkSweep),
	}
}

// Enrich produces the full record for a candidate. Persons pass through
// unchanged. For films and series the detailed fetch is merged onto the
// input (detailed fields win), then a watch link is attached best-effort:
// a failed or empty lookup leaves the record without one, never an error.
//
// An info fetch failure is returned alongside the unchanged input so the
// caller can still render the stub.
func (e *Enricher) Enrich(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error) {
	if !rec.Kind.HasDetails() {
		return rec, nil
	}

	detail, ok := e.memo.Get(rec.Ref())
	if !ok {
		var err error
		detail, err = e.info.Info(ctx, rec.Ref())
		if err != nil {
			return rec, fmt.Errorf("enrich %s: %w", rec.Ref().Key(), err)
		}
		e.memo.Add(rec.Ref(), detail)
	}

	merged := rec.Merge(detail)
	if merged.WatchURL == "" {
		merged.WatchURL = e.lookupWatchURL(ctx, merged)
	}
	return merged, nil
}

// EnrichAll enriches distinct candidates concurrently. Output order matches
// input order regardless of completion order; candidates whose info fetch
// failed are dropped without affecting the others.
func (e *Enricher) EnrichAll(ctx context.Context, records []models.ContentRecord) []models.ContentRecord {
	enriched := make([]*models.ContentRecord, len(records))
	iter.ForEachIdx(records, func(i int, rec *models.ContentRecord) {
		full, err := e.Enrich(ctx, *rec)
		if err != nil {
			log.Printf("[enrich] dropping %s from batch: %v", rec.Ref().Key(), err)
			return
		}
		enriched[i] = &full
	})

	out := make([]models.ContentRecord, 0, len(records))
	for _, rec := range enriched {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

// lookupWatchURL resolves a watch link by title, caching hits and misses.
// Transport failures are logged and degrade to "no link".
func (e *Enricher) lookupWatchURL(ctx context.Context, rec models.ContentRecord) string {
	if e.watch == nil {
		return ""
	}
	title := rec.DisplayTitle()
	if title == "" {
		return ""
	}

	key := normalizeTitle(title)
	if cached, ok := e.links.Get(key); ok {
		return cached.(string)
	}

	watchURL, err := e.watch.LookupWatchURL(ctx, title)
	if err != nil {
		log.Printf("[enrich] watch lookup failed for %q: %v", title, err)
		return ""
	}
	e.links.Set(key, watchURL, gocache.DefaultExpiration)
	return watchURL
}

// normalizeTitle folds a title to an ASCII lookup key so transliterated
// and differently-cased queries share cache entries.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(title)))
}
