package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"

	"kinoliba/models"
	assistsvc "kinoliba/services/assist"
	enrichsvc "kinoliba/services/enrich"
	"kinoliba/services/hubble"
	librarysvc "kinoliba/services/library"
	"kinoliba/services/resolver"
	sessionsvc "kinoliba/services/session"
)

type resolverService interface {
	Resolve(ctx context.Context, query string) (*resolver.Resolution, error)
}

type enrichService interface {
	Enrich(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error)
}

type sessionManager interface {
	Replace(conversationID string, results []models.ContentRef) *models.CarouselSession
	Current(conversationID string) (*models.CarouselSession, bool)
	Navigate(conversationID string, dir sessionsvc.Direction) (*models.CarouselSession, bool)
	SetWatchURL(conversationID, watchURL string)
	Teardown(conversationID string)
}

type libraryService interface {
	Add(ctx context.Context, userID string, rec models.ContentRecord) (bool, error)
	MarkViewed(ctx context.Context, userID string, rec models.ContentRecord) (bool, error)
	Delete(ctx context.Context, userID string, ref models.ContentRef) (bool, error)
	SetRecommend(ctx context.Context, userID string, ref models.ContentRef, value bool) (bool, error)
	Get(ctx context.Context, userID string, ref models.ContentRef) (*models.LibraryEntry, error)
	Filter(ctx context.Context, userID string, f models.Filter) ([]models.LibraryEntry, error)
}

type similarsClient interface {
	Similars(ctx context.Context, ref models.ContentRef) ([]models.ContentRecord, error)
}

type suggester interface {
	SuggestByMood(ctx context.Context, mood string) (string, error)
	SuggestRandom(ctx context.Context) (string, error)
}

var (
	_ resolverService = (*resolver.Resolver)(nil)
	_ enrichService   = (*enrichsvc.Enricher)(nil)
	_ sessionManager  = (*sessionsvc.Manager)(nil)
	_ libraryService  = (*librarysvc.Service)(nil)
	_ similarsClient  = (*hubble.Client)(nil)
	_ suggester       = (*assistsvc.Client)(nil)
)

// CardsHandler serves the card-centric surface the presentation layer
// talks to: resolve a query into a carousel, navigate it, apply library
// actions to the displayed card, branch into similars, and ask for
// suggestions.
type CardsHandler struct {
	Resolver resolverService
	Enricher enrichService
	Sessions sessionManager
	Library  libraryService
	Similars similarsClient
	Suggest  suggester // nil when no assistant is configured
}

// NewCardsHandler wires the card surface. suggest may be nil.
func NewCardsHandler(res resolverService, enr enrichService, sessions sessionManager, lib libraryService, similars similarsClient, suggest suggester) *CardsHandler {
	return &CardsHandler{
		Resolver: res,
		Enricher: enr,
		Sessions: sessions,
		Library:  lib,
		Similars: similars,
		Suggest:  suggest,
	}
}

type searchRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Query          string `json:"query"`
}

type navigateRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Direction      string `json:"direction"`
}

type actionRequest struct {
	ConversationID string      `json:"conversationId"`
	UserID         string      `json:"userId"`
	Action         string      `json:"action"` // add | viewed | delete | recommend
	Kind           models.Kind `json:"kind"`
	ID             string      `json:"id"`
	Recommend      *bool       `json:"recommend,omitempty"`
}

type similarsRequest struct {
	ConversationID string      `json:"conversationId"`
	UserID         string      `json:"userId"`
	Kind           models.Kind `json:"kind"`
	ID             string      `json:"id"`
}

type suggestRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Mode           string `json:"mode"` // library | mood | random
	Mood           string `json:"mood,omitempty"`
}

type clearRequest struct {
	ConversationID string `json:"conversationId"`
}

type cardResponse struct {
	Found   bool         `json:"found"`
	Card    *models.Card `json:"card,omitempty"`
	Message string       `json:"message,omitempty"`
}

type navigateResponse struct {
	Changed bool         `json:"changed"`
	Card    *models.Card `json:"card,omitempty"`
}

type actionResponse struct {
	Applied bool         `json:"applied"`
	Message string       `json:"message,omitempty"`
	Card    *models.Card `json:"card,omitempty"`
}

// Search resolves a free-text query into a fresh carousel and returns the
// card for the primary match.
func (h *CardsHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ConversationID == "" {
		http.Error(w, "conversationId is required", http.StatusBadRequest)
		return
	}
	query := strings.TrimSpace(req.Query)
	if !resolver.IsQueryValid(query) {
		http.Error(w, "query must be between 1 and 100 characters", http.StatusBadRequest)
		return
	}

	h.resolveAndPresent(w, r.Context(), req.ConversationID, userOrDefault(req.UserID), query)
}

// resolveAndPresent runs the resolution pipeline and renders the outcome:
// a card for the primary match, a friendly not-found message, or a
// distinct try-again-later response when search itself is down.
func (h *CardsHandler) resolveAndPresent(w http.ResponseWriter, ctx context.Context, conversationID, userID, query string) {
	res, err := h.Resolver.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, resolver.ErrSearchUnavailable) {
			log.Printf("[cards] search unavailable for %q: %v", query, err)
			writeJSON(w, http.StatusServiceUnavailable, cardResponse{Message: pick(unavailableMessages)})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if res.Empty() {
		writeJSON(w, http.StatusOK, cardResponse{Found: false, Message: pick(notFoundMessages)})
		return
	}

	writeJSON(w, http.StatusOK, h.presentRecords(ctx, conversationID, userID, res.Records()))
}

// presentRecords replaces the conversation's session with the given result
// set and builds the card for its first item.
func (h *CardsHandler) presentRecords(ctx context.Context, conversationID, userID string, records []models.ContentRecord) cardResponse {
	refs := make([]models.ContentRef, 0, len(records))
	for _, rec := range records {
		refs = append(refs, rec.Ref())
	}
	s := h.Sessions.Replace(conversationID, refs)

	rec, err := h.Enricher.Enrich(ctx, records[0])
	if err != nil {
		// Partial data beats no card: fall back to the search stub.
		log.Printf("[cards] enrichment degraded for %s: %v", records[0].Ref().Key(), err)
		rec = records[0]
	}
	if rec.WatchURL != "" {
		h.Sessions.SetWatchURL(conversationID, rec.WatchURL)
		s.WatchURL = rec.WatchURL
	}

	card := models.NewCard(rec, h.entryFor(ctx, userID, rec.Ref()), s)
	return cardResponse{Found: true, Card: &card}
}

// Navigate moves the carousel cursor and renders the newly selected item.
// Steps past either end are silent no-ops.
func (h *CardsHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dir, ok := sessionsvc.ParseDirection(req.Direction)
	if !ok {
		http.Error(w, "direction must be next or prev", http.StatusBadRequest)
		return
	}

	s, moved := h.Sessions.Navigate(req.ConversationID, dir)
	if !moved {
		writeJSON(w, http.StatusOK, navigateResponse{Changed: false})
		return
	}

	card := h.cardForSession(r.Context(), req.ConversationID, userOrDefault(req.UserID), s)
	writeJSON(w, http.StatusOK, navigateResponse{Changed: true, Card: &card})
}

// Action applies a library mutation and re-renders the card at the current
// cursor from fresh library state, leaving results and cursor untouched.
func (h *CardsHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Kind.Valid() || req.ID == "" {
		http.Error(w, "kind and id are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	userID := userOrDefault(req.UserID)
	ref := models.ContentRef{Kind: req.Kind, ID: req.ID}

	var (
		wasApplied bool
		err        error
		message    string
	)
	switch req.Action {
	case "add":
		wasApplied, err = h.Library.Add(ctx, userID, h.recordFor(ctx, ref))
		message = actionMessage(wasApplied, pick(addedMessages), pick(alreadyInLibraryMessages))
	case "viewed":
		wasApplied, err = h.Library.MarkViewed(ctx, userID, h.recordFor(ctx, ref))
		message = actionMessage(wasApplied, pick(viewedMessages), "Already marked as viewed.")
	case "delete":
		wasApplied, err = h.Library.Delete(ctx, userID, ref)
		message = actionMessage(wasApplied, pick(deletedMessages), "That one is not in your library.")
	case "recommend":
		if req.Recommend == nil {
			http.Error(w, "recommend value is required", http.StatusBadRequest)
			return
		}
		wasApplied, err = h.Library.SetRecommend(ctx, userID, ref, *req.Recommend)
		message = actionMessage(wasApplied, recommendMessage(*req.Recommend), "Nothing to change.")
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := actionResponse{Applied: wasApplied, Message: message}
	if s, ok := h.Sessions.Current(req.ConversationID); ok {
		card := h.cardForSession(ctx, req.ConversationID, userID, s)
		resp.Card = &card
	}
	writeJSON(w, http.StatusOK, resp)
}

// SimilarsCard spawns a new carousel rooted at the titles similar to the
// given reference.
func (h *CardsHandler) SimilarsCard(w http.ResponseWriter, r *http.Request) {
	var req similarsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Kind.Valid() || req.ID == "" {
		http.Error(w, "kind and id are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ref := models.ContentRef{Kind: req.Kind, ID: req.ID}
	records, err := h.Similars.Similars(ctx, ref)
	if err != nil {
		log.Printf("[cards] similars lookup failed for %s: %v", ref.Key(), err)
		writeJSON(w, http.StatusBadGateway, cardResponse{Message: pick(unavailableMessages)})
		return
	}

	records = models.DedupRecords(records, maxCarouselResults)
	if len(records) == 0 {
		writeJSON(w, http.StatusOK, cardResponse{Found: false, Message: "No similar titles found."})
		return
	}

	writeJSON(w, http.StatusOK, h.presentRecords(ctx, req.ConversationID, userOrDefault(req.UserID), records))
}

// SuggestCard offers a title to watch: a random unseen entry from the
// user's own library, or an assistant pick by mood or at random, resolved
// through the normal search flow.
func (h *CardsHandler) SuggestCard(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	userID := userOrDefault(req.UserID)

	if req.Mode == "library" {
		h.suggestFromLibrary(w, ctx, userID)
		return
	}

	if h.Suggest == nil {
		http.Error(w, "suggestions are not configured", http.StatusServiceUnavailable)
		return
	}

	var (
		title string
		err   error
	)
	switch req.Mode {
	case "mood":
		if strings.TrimSpace(req.Mood) == "" {
			http.Error(w, "mood is required", http.StatusBadRequest)
			return
		}
		title, err = h.Suggest.SuggestByMood(ctx, req.Mood)
	case "random":
		title, err = h.Suggest.SuggestRandom(ctx)
	default:
		http.Error(w, "mode must be library, mood or random", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("[cards] suggestion failed: %v", err)
		title = ""
	}
	if title == "" {
		writeJSON(w, http.StatusOK, cardResponse{Found: false, Message: "Couldn't think of anything, try again."})
		return
	}

	h.resolveAndPresent(w, ctx, req.ConversationID, userID, title)
}

func (h *CardsHandler) suggestFromLibrary(w http.ResponseWriter, ctx context.Context, userID string) {
	entries, err := h.Library.Filter(ctx, userID, models.FilterUnseen)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(entries) == 0 {
		entries, err = h.Library.Filter(ctx, userID, models.FilterAll)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusOK, cardResponse{Found: false, Message: "Your library is empty, add something via search first."})
		return
	}

	entry := entries[rand.IntN(len(entries))]
	card := models.NewCard(entry.ContentRecord, &entry, nil)
	writeJSON(w, http.StatusOK, cardResponse{Found: true, Card: &card})
}

// ClearSession tears down the conversation's carousel explicitly.
func (h *CardsHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.Sessions.Teardown(req.ConversationID)
	w.WriteHeader(http.StatusNoContent)
}

// maxCarouselResults mirrors the resolution pipeline's candidate cap for
// result sets assembled outside of it.
const maxCarouselResults = 10

// cardForSession enriches and renders the item under the session cursor.
// Enrichment failures degrade to the bare reference so the card still
// renders; the resolved watch link is cached back onto the session.
func (h *CardsHandler) cardForSession(ctx context.Context, conversationID, userID string, s *models.CarouselSession) models.Card {
	stub := models.ContentRecord{ContentRef: s.Current(), WatchURL: s.WatchURL}
	rec, err := h.Enricher.Enrich(ctx, stub)
	if err != nil {
		log.Printf("[cards] enrichment degraded for %s: %v", stub.Ref().Key(), err)
		rec = stub
	}
	if rec.WatchURL != "" && rec.WatchURL != s.WatchURL {
		h.Sessions.SetWatchURL(conversationID, rec.WatchURL)
	}
	return models.NewCard(rec, h.entryFor(ctx, userID, rec.Ref()), s)
}

// recordFor builds the record to persist for a library mutation. The
// enriched form is stored so library listings carry genres and ratings.
func (h *CardsHandler) recordFor(ctx context.Context, ref models.ContentRef) models.ContentRecord {
	stub := models.ContentRecord{ContentRef: ref}
	rec, err := h.Enricher.Enrich(ctx, stub)
	if err != nil {
		log.Printf("[cards] storing stub for %s, enrichment failed: %v", ref.Key(), err)
		return stub
	}
	return rec
}

// entryFor fetches the user's library entry for affordance computation.
// Store errors degrade to "not in library" so a card always renders.
func (h *CardsHandler) entryFor(ctx context.Context, userID string, ref models.ContentRef) *models.LibraryEntry {
	entry, err := h.Library.Get(ctx, userID, ref)
	if err != nil {
		log.Printf("[cards] library lookup failed for %s: %v", ref.Key(), err)
		return nil
	}
	return entry
}

func userOrDefault(userID string) string {
	if userID == "" {
		return models.DefaultUserID
	}
	return userID
}

func actionMessage(wasApplied bool, ok, conflict string) string {
	if wasApplied {
		return ok
	}
	return conflict
}

func recommendMessage(value bool) string {
	if value {
		return "Noted, glad you liked it!"
	}
	return "Fair enough, we don't recommend the bad ones."
}

// decodeJSON parses the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
