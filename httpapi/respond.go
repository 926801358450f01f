package httpapi

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("http.write_failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, status int) {
	writeJSON(w, r, errorResponse{
		Error:     msg,
		RequestID: chimw.GetReqID(r.Context()),
	}, status)
}
