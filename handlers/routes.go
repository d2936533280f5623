package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the card and library surfaces under /api.
func RegisterRoutes(r *mux.Router, cards *CardsHandler, library *LibraryHandler) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/search", cards.Search).Methods(http.MethodPost)
	api.HandleFunc("/navigate", cards.Navigate).Methods(http.MethodPost)
	api.HandleFunc("/card/action", cards.Action).Methods(http.MethodPost)
	api.HandleFunc("/similars", cards.SimilarsCard).Methods(http.MethodPost)
	api.HandleFunc("/suggest", cards.SuggestCard).Methods(http.MethodPost)
	api.HandleFunc("/session/clear", cards.ClearSession).Methods(http.MethodPost)

	api.HandleFunc("/library", library.List).Methods(http.MethodGet)
}
