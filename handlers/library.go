package handlers

import (
	"net/http"

	"kinoliba/models"
)

// LibraryHandler serves read access to a user's watch library.
type LibraryHandler struct {
	Library libraryService
}

func NewLibraryHandler(lib libraryService) *LibraryHandler {
	return &LibraryHandler{Library: lib}
}

type libraryResponse struct {
	Entries []models.LibraryEntry `json:"entries"`
	Total   int                   `json:"total"`
	Filter  models.Filter         `json:"filter"`
}

// List returns the user's library in insertion order, optionally narrowed
// by the filter query parameter.
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := userOrDefault(r.URL.Query().Get("user"))

	f := models.FilterAll
	if param := r.URL.Query().Get("filter"); param != "" {
		f = models.Filter(param)
		if !f.Valid() {
			http.Error(w, "unknown filter", http.StatusBadRequest)
			return
		}
	}

	entries, err := h.Library.Filter(r.Context(), userID, f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.LibraryEntry{}
	}

	writeJSON(w, http.StatusOK, libraryResponse{
		Entries: entries,
		Total:   len(entries),
		Filter:  f,
	})
}
