package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/middleware"
)

const maxBodyBytes = 64 << 10

type loginRequest struct {
	IDToken string `json:"id_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	// RefreshToken is only echoed to clients that sent theirs in the body.
	RefreshToken string              `json:"refresh_token,omitempty"`
	User         shelfauth.Principal `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil || strings.TrimSpace(req.IDToken) == "" {
		writeError(w, r, "id_token is required", http.StatusBadRequest)
		return
	}

	res := s.engine.LoginResult(r.Context(), req.IDToken)
	switch res.Outcome {
	case shelfauth.OutcomeOK:
		s.setRefreshCookie(w, res.Session)
		writeJSON(w, r, newSessionResponse(res.Session, false), http.StatusOK)
	case shelfauth.OutcomeInvalidAssertion, shelfauth.OutcomeAudienceMismatch:
		writeError(w, r, "invalid google token", http.StatusUnauthorized)
	case shelfauth.OutcomeRateLimited:
		w.Header().Set("Retry-After", "60")
		writeError(w, r, "too many login attempts", http.StatusTooManyRequests)
	default:
		zerolog.Ctx(r.Context()).Error().Err(res.Err).Msg("login.failed")
		writeError(w, r, "login unavailable", http.StatusServiceUnavailable)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, fromBody := s.refreshTokenFrom(w, r)
	if token == "" {
		s.clearRefreshCookie(w)
		writeError(w, r, "invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	res := s.engine.RefreshResult(r.Context(), token)
	switch res.Outcome {
	case shelfauth.OutcomeOK:
		s.setRefreshCookie(w, res.Session)
		writeJSON(w, r, newSessionResponse(res.Session, fromBody), http.StatusOK)
	case shelfauth.OutcomeInvalidRefreshToken:
		s.clearRefreshCookie(w)
		writeError(w, r, "invalid or expired refresh token", http.StatusUnauthorized)
	default:
		zerolog.Ctx(r.Context()).Error().Err(res.Err).Msg("refresh.failed")
		writeError(w, r, "refresh unavailable", http.StatusServiceUnavailable)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := s.refreshTokenFrom(w, r)
	s.clearRefreshCookie(w)

	if err := s.engine.Logout(r.Context(), token); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("logout.failed")
		writeError(w, r, "logout unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, r, p, http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health.cache_unreachable")
		writeJSON(w, r, map[string]string{"status": "unavailable"}, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
}

// refreshTokenFrom prefers the cookie and falls back to a JSON body. The bool
// reports whether the token came from the body.
func (s *Server) refreshTokenFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	if c, err := r.Cookie(s.cookie.Name); err == nil && c.Value != "" {
		return c.Value, false
	}

	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		return "", false
	}
	token := strings.TrimSpace(req.RefreshToken)
	return token, token != ""
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, sess *shelfauth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    sess.RefreshToken,
		Path:     s.cookie.Path,
		MaxAge:   int(s.cookie.MaxAge / time.Second),
		Expires:  sess.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: s.cookie.SameSite,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     s.cookie.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: s.cookie.SameSite,
	})
}

func newSessionResponse(sess *shelfauth.Session, includeRefresh bool) sessionResponse {
	resp := sessionResponse{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.ExpiresAt.UTC(),
		User:        sess.Principal,
	}
	if includeRefresh {
		resp.RefreshToken = sess.RefreshToken
	}
	return resp
}

var errEmptyBody = errors.New("empty body")

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}
