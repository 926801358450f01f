package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/shelfauth"
)

const (
	defaultMaxResults = 20
	maxMaxResults     = 40
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, r, "search query is required", http.StatusBadRequest)
		return
	}

	startIndex := queryInt(r, "startIndex", 0)
	if startIndex < 0 {
		startIndex = 0
	}
	maxResults := queryInt(r, "maxResults", defaultMaxResults)
	if maxResults < 1 || maxResults > maxMaxResults {
		maxResults = defaultMaxResults
	}

	res, err := s.engine.Search(r.Context(), q, startIndex, maxResults)
	if err != nil {
		if errors.Is(err, shelfauth.ErrEmptyQuery) {
			writeError(w, r, "search query is required", http.StatusBadRequest)
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("search.failed")
		writeError(w, r, "search unavailable", http.StatusServiceUnavailable)
		return
	}
	if res.Items == nil {
		res.Items = []shelfauth.SearchItem{}
	}
	writeJSON(w, r, res, http.StatusOK)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, r, "book not found", http.StatusNotFound)
		return
	}

	book, ok := s.engine.Book(r.Context(), id)
	if !ok {
		writeError(w, r, "book not found", http.StatusNotFound)
		return
	}
	writeJSON(w, r, book, http.StatusOK)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
