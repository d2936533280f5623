package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"kinoliba/models"
	"kinoliba/services/library"
	"kinoliba/services/resolver"
	"kinoliba/services/session"
)

type fakeSearch struct {
	results map[string]models.SearchResult
	err     error
}

func (f *fakeSearch) Search(ctx context.Context, query string) (models.SearchResult, error) {
	if f.err != nil {
		return models.SearchResult{}, f.err
	}
	return f.results[query], nil
}

type fakeIdentifier struct{ title string }

func (f *fakeIdentifier) IdentifyByDescription(ctx context.Context, text string) (string, error) {
	return f.title, nil
}

// fakeEnricher overlays per-ref details and watch links onto the input.
type fakeEnricher struct {
	details map[models.ContentRef]models.ContentRecord
	links   map[models.ContentRef]string
	err     error
}

func (f *fakeEnricher) Enrich(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error) {
	if f.err != nil {
		return rec, f.err
	}
	if detail, ok := f.details[rec.Ref()]; ok {
		rec = rec.Merge(detail)
	}
	if link, ok := f.links[rec.Ref()]; ok && rec.WatchURL == "" {
		rec.WatchURL = link
	}
	return rec, nil
}

type fakeSimilars struct {
	records []models.ContentRecord
	err     error
}

func (f *fakeSimilars) Similars(ctx context.Context, ref models.ContentRef) ([]models.ContentRecord, error) {
	return f.records, f.err
}

type fakeSuggester struct{ title string }

func (f *fakeSuggester) SuggestByMood(ctx context.Context, mood string) (string, error) {
	return f.title, nil
}

func (f *fakeSuggester) SuggestRandom(ctx context.Context) (string, error) {
	return f.title, nil
}

// memStore is an in-memory library.Store for handler tests.
type memStore struct {
	libs map[string]*models.UserLibrary
}

func newMemStore() *memStore {
	return &memStore{libs: make(map[string]*models.UserLibrary)}
}

func (s *memStore) get(userID string) *models.UserLibrary {
	lib, ok := s.libs[userID]
	if !ok {
		lib = &models.UserLibrary{}
		s.libs[userID] = lib
	}
	return lib
}

func (s *memStore) Load(ctx context.Context, userID string) (*models.UserLibrary, error) {
	lib := s.get(userID)
	return &models.UserLibrary{Entries: append([]models.LibraryEntry(nil), lib.Entries...)}, nil
}

func (s *memStore) Update(ctx context.Context, userID string, fn func(*models.UserLibrary) error) error {
	return fn(s.get(userID))
}

var _ library.Store = (*memStore)(nil)

func film(id, title string) models.ContentRecord {
	return models.ContentRecord{
		ContentRef: models.ContentRef{Kind: models.KindFilm, ID: id},
		Title:      title,
	}
}

type fixture struct {
	router *mux.Router
	search *fakeSearch
	enrich *fakeEnricher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	castAway := film("522", "Cast Away")
	search := &fakeSearch{results: map[string]models.SearchResult{
		"cast away": {
			Primary: &castAway,
			Alternatives: []models.ContentRecord{
				film("9", "Castaway on the Moon"),
				film("14", "The Terminal"),
			},
		},
	}}
	enricher := &fakeEnricher{
		details: map[models.ContentRef]models.ContentRecord{
			castAway.Ref(): {
				ContentRef: castAway.Ref(),
				Title:      "Cast Away",
				Year:       2000,
				Genres:     []string{"drama", "adventure"},
				IMDBRating: 7.8,
			},
		},
		links: map[models.ContentRef]string{
			castAway.Ref(): "https://example.com/watch/522",
		},
	}

	cards := NewCardsHandler(
		resolver.New(search, &fakeIdentifier{title: "cast away"}),
		enricher,
		session.NewManager(),
		library.NewService(newMemStore()),
		&fakeSimilars{records: []models.ContentRecord{film("1", "Six Days Seven Nights")}},
		&fakeSuggester{title: "cast away"},
	)

	router := mux.NewRouter()
	RegisterRoutes(router, cards, NewLibraryHandler(cards.Library))

	return &fixture{router: router, search: search, enrich: enricher}
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if out != nil && rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %s: %v", rr.Body.String(), err)
		}
	}
	return rr
}

func TestSearchRendersEnrichedCard(t *testing.T) {
	f := newFixture(t)

	var resp cardResponse
	rr := f.do(t, http.MethodPost, "/api/search", searchRequest{
		ConversationID: "conv", Query: "cast away",
	}, &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if !resp.Found || resp.Card == nil {
		t.Fatalf("resp = %+v, expected a card", resp)
	}

	card := resp.Card
	if card.Record.Year != 2000 || card.Record.IMDBRating != 7.8 {
		t.Errorf("record not enriched: %+v", card.Record)
	}
	if card.Position != 1 || card.Total != 3 {
		t.Errorf("position = %d/%d, expected 1/3", card.Position, card.Total)
	}
	if !card.Affordances.CanAdd || !card.Affordances.CanMarkViewed {
		t.Errorf("affordances = %+v, expected add and mark-viewed", card.Affordances)
	}
	if card.Affordances.WatchURL != "https://example.com/watch/522" {
		t.Errorf("WatchURL = %q", card.Affordances.WatchURL)
	}
	if card.CardID == "" {
		t.Error("card has no anchor id")
	}
}

func TestSearchDescriptionFallback(t *testing.T) {
	f := newFixture(t)

	var resp cardResponse
	rr := f.do(t, http.MethodPost, "/api/search", searchRequest{
		ConversationID: "conv", Query: "film where a volleyball regrows a friendship",
	}, &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !resp.Found || resp.Card == nil || resp.Card.Record.Title != "Cast Away" {
		t.Fatalf("resp = %+v, expected Cast Away via the fallback", resp)
	}
}

func TestSearchNotFound(t *testing.T) {
	f := newFixture(t)

	var resp cardResponse
	rr := f.do(t, http.MethodPost, "/api/search", searchRequest{
		ConversationID: "conv", Query: "zzz", UserID: "u",
	}, &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp.Found || resp.Card != nil {
		t.Errorf("resp = %+v, expected not found", resp)
	}
	if resp.Message == "" {
		t.Error("not-found response carries no message")
	}
}

func TestSearchUnavailable(t *testing.T) {
	f := newFixture(t)
	f.search.err = errors.New("connection refused")

	var resp cardResponse
	rr := f.do(t, http.MethodPost, "/api/search", searchRequest{
		ConversationID: "conv", Query: "cast away",
	}, &resp)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, expected 503", rr.Code)
	}
	if resp.Message == "" {
		t.Error("unavailable response carries no message")
	}
}

func TestSearchValidation(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/search", searchRequest{ConversationID: "conv", Query: "  "}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("blank query status = %d, expected 400", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/api/search", searchRequest{Query: "cast away"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing conversation status = %d, expected 400", rr.Code)
	}
}

func TestNavigateCarousel(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/search", searchRequest{ConversationID: "conv", Query: "cast away"}, nil)

	var resp navigateResponse
	f.do(t, http.MethodPost, "/api/navigate", navigateRequest{ConversationID: "conv", Direction: "next"}, &resp)
	if !resp.Changed || resp.Card == nil {
		t.Fatalf("resp = %+v, expected a move", resp)
	}
	if resp.Card.Position != 2 || resp.Card.Record.ID != "9" {
		t.Errorf("card = pos %d id %s, expected 2/9", resp.Card.Position, resp.Card.Record.ID)
	}

	// Past the end: silent no-op, cursor stays.
	f.do(t, http.MethodPost, "/api/navigate", navigateRequest{ConversationID: "conv", Direction: "next"}, &resp)
	f.do(t, http.MethodPost, "/api/navigate", navigateRequest{ConversationID: "conv", Direction: "next"}, &resp)
	if resp.Changed {
		t.Error("navigation past the end reported a change")
	}

	var back navigateResponse
	f.do(t, http.MethodPost, "/api/navigate", navigateRequest{ConversationID: "conv", Direction: "prev"}, &back)
	if !back.Changed || back.Card.Position != 2 {
		t.Errorf("back = %+v, expected position 2", back)
	}
}

func TestNavigateWithoutSession(t *testing.T) {
	f := newFixture(t)

	var resp navigateResponse
	rr := f.do(t, http.MethodPost, "/api/navigate", navigateRequest{ConversationID: "ghost", Direction: "next"}, &resp)
	if rr.Code != http.StatusOK || resp.Changed {
		t.Errorf("resp = %d %+v, expected a silent no-op", rr.Code, resp)
	}

	rr = f.do(t, http.MethodPost, "/api/navigate", navigateRequest{ConversationID: "ghost", Direction: "sideways"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, expected 400", rr.Code)
	}
}

func TestCardActionLifecycle(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/search", searchRequest{ConversationID: "conv", Query: "cast away", UserID: "u"}, nil)

	ref := models.ContentRef{Kind: models.KindFilm, ID: "522"}

	// Add.
	var resp actionResponse
	f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", UserID: "u", Action: "add", Kind: ref.Kind, ID: ref.ID,
	}, &resp)
	if !resp.Applied {
		t.Fatalf("add not applied: %+v", resp)
	}
	if resp.Card == nil || !resp.Card.Affordances.InLibrary || resp.Card.Affordances.CanAdd {
		t.Errorf("card after add = %+v, expected in-library affordances", resp.Card)
	}

	// Duplicate add is a conflict no-op.
	f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", UserID: "u", Action: "add", Kind: ref.Kind, ID: ref.ID,
	}, &resp)
	if resp.Applied {
		t.Error("duplicate add reported applied")
	}

	// Viewed.
	f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", UserID: "u", Action: "viewed", Kind: ref.Kind, ID: ref.ID,
	}, &resp)
	if !resp.Applied || !resp.Card.Affordances.CanRecommend {
		t.Errorf("card after viewed = %+v, expected the recommend stage", resp.Card)
	}

	// Recommend.
	yes := true
	f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", UserID: "u", Action: "recommend", Kind: ref.Kind, ID: ref.ID, Recommend: &yes,
	}, &resp)
	if !resp.Applied {
		t.Fatalf("recommend not applied: %+v", resp)
	}
	if resp.Card.Affordances.Recommend == nil || !*resp.Card.Affordances.Recommend {
		t.Errorf("card after recommend = %+v", resp.Card.Affordances)
	}

	// Delete.
	f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", UserID: "u", Action: "delete", Kind: ref.Kind, ID: ref.ID,
	}, &resp)
	if !resp.Applied || !resp.Card.Affordances.CanAdd {
		t.Errorf("card after delete = %+v, expected it back out of the library", resp.Card)
	}
}

func TestActionValidation(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", Action: "add", Kind: "album", ID: "1",
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad kind status = %d, expected 400", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", Action: "recommend", Kind: models.KindFilm, ID: "1",
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("recommend without a value status = %d, expected 400", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", Action: "explode", Kind: models.KindFilm, ID: "1",
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, expected 400", rr.Code)
	}
}

func TestSimilarsStartNewCarousel(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/search", searchRequest{ConversationID: "conv", Query: "cast away"}, nil)

	var resp cardResponse
	f.do(t, http.MethodPost, "/api/similars", similarsRequest{
		ConversationID: "conv", Kind: models.KindFilm, ID: "522",
	}, &resp)
	if !resp.Found || resp.Card == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Card.Record.ID != "1" || resp.Card.Total != 1 {
		t.Errorf("card = %+v, expected the similars result set", resp.Card)
	}

	// The old 3-item carousel is gone: next past the single item is a no-op.
	var nav navigateResponse
	f.do(t, http.MethodPost, "/api/navigate", navigateRequest{ConversationID: "conv", Direction: "next"}, &nav)
	if nav.Changed {
		t.Error("old session leaked into the similars carousel")
	}
}

func TestSuggestModes(t *testing.T) {
	f := newFixture(t)

	var resp cardResponse
	f.do(t, http.MethodPost, "/api/suggest", suggestRequest{ConversationID: "conv", Mode: "mood", Mood: "island survival"}, &resp)
	if !resp.Found || resp.Card == nil || resp.Card.Record.ID != "522" {
		t.Fatalf("mood suggestion = %+v, expected Cast Away", resp)
	}

	f.do(t, http.MethodPost, "/api/suggest", suggestRequest{ConversationID: "conv", Mode: "random"}, &resp)
	if !resp.Found {
		t.Errorf("random suggestion = %+v", resp)
	}

	rr := f.do(t, http.MethodPost, "/api/suggest", suggestRequest{ConversationID: "conv", Mode: "mood"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("mood without text status = %d, expected 400", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/api/suggest", suggestRequest{ConversationID: "conv", Mode: "psychic"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d, expected 400", rr.Code)
	}
}

func TestSuggestFromLibrary(t *testing.T) {
	f := newFixture(t)

	var resp cardResponse
	f.do(t, http.MethodPost, "/api/suggest", suggestRequest{ConversationID: "conv", UserID: "u", Mode: "library"}, &resp)
	if resp.Found {
		t.Fatalf("empty library suggested %+v", resp.Card)
	}

	f.do(t, http.MethodPost, "/api/search", searchRequest{ConversationID: "conv", Query: "cast away", UserID: "u"}, nil)
	f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", UserID: "u", Action: "add", Kind: models.KindFilm, ID: "522",
	}, nil)

	f.do(t, http.MethodPost, "/api/suggest", suggestRequest{ConversationID: "conv", UserID: "u", Mode: "library"}, &resp)
	if !resp.Found || resp.Card == nil || resp.Card.Record.ID != "522" {
		t.Fatalf("library suggestion = %+v, expected the single saved entry", resp)
	}
}

func TestSuggestWithoutAssistant(t *testing.T) {
	f := newFixture(t)
	// Rebuild the route table with no suggester wired.
	cards := NewCardsHandler(
		resolver.New(f.search, nil),
		f.enrich,
		session.NewManager(),
		library.NewService(newMemStore()),
		&fakeSimilars{},
		nil,
	)
	router := mux.NewRouter()
	RegisterRoutes(router, cards, NewLibraryHandler(cards.Library))
	f.router = router

	rr := f.do(t, http.MethodPost, "/api/suggest", suggestRequest{ConversationID: "conv", Mode: "random"}, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, expected 503 without an assistant", rr.Code)
	}
}

func TestLibraryList(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/search", searchRequest{ConversationID: "conv", Query: "cast away", UserID: "u"}, nil)
	f.do(t, http.MethodPost, "/api/card/action", actionRequest{
		ConversationID: "conv", UserID: "u", Action: "viewed", Kind: models.KindFilm, ID: "522",
	}, nil)

	var resp libraryResponse
	rr := f.do(t, http.MethodGet, "/api/library?user=u&filter=seen", nil, &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp.Total != 1 || len(resp.Entries) != 1 || resp.Entries[0].ID != "522" {
		t.Errorf("resp = %+v, expected the viewed entry", resp)
	}

	var unseen libraryResponse
	f.do(t, http.MethodGet, "/api/library?user=u&filter=unseen", nil, &unseen)
	if unseen.Total != 0 {
		t.Errorf("unseen = %+v, expected none", unseen)
	}

	rr = f.do(t, http.MethodGet, "/api/library?filter=bogus", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bogus filter status = %d, expected 400", rr.Code)
	}
}

func TestClearSession(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/search", searchRequest{ConversationID: "conv", Query: "cast away"}, nil)

	rr := f.do(t, http.MethodPost, "/api/session/clear", clearRequest{ConversationID: "conv"}, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, expected 204", rr.Code)
	}

	var nav navigateResponse
	f.do(t, http.MethodPost, "/api/navigate", navigateRequest{ConversationID: "conv", Direction: "next"}, &nav)
	if nav.Changed {
		t.Error("navigation worked after the session was cleared")
	}
}
