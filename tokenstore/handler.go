package tokenstore

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/token"
	"github.com/rs/zerolog"
)

const (
	contentTypeJSON = "application/json"
	maxRequestBytes = 1 << 20
)

// Route patterns of the token store contract.
const (
	RouteGetToken           = "GET /tokens/{userID}"
	RouteUpsertToken        = "POST /tokens"
	RouteGetRefreshToken    = "GET /refresh-tokens/{userID}"
	RouteUpsertRefreshToken = "POST /refresh-tokens"
)

type handler struct {
	repo   Repo
	apiKey string
	log    zerolog.Logger
}

// NewHandler serves the token store contract over repo. A non-empty apiKey is
// required as a bearer token on every request.
func NewHandler(repo Repo, apiKey string, logger zerolog.Logger) http.Handler {
	h := &handler{repo: repo, apiKey: apiKey, log: logger}

	mux := http.NewServeMux()
	mux.HandleFunc(RouteGetToken, h.requireKey(h.getToken))
	mux.HandleFunc(RouteUpsertToken, h.requireKey(h.upsertToken))
	mux.HandleFunc(RouteGetRefreshToken, h.requireKey(h.getRefreshToken))
	mux.HandleFunc(RouteUpsertRefreshToken, h.requireKey(h.patchToken))
	return mux
}

func (h *handler) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey != "" {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(h.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
				return
			}
		}
		next(w, r)
	}
}

func (h *handler) getToken(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("userID"))
	record, err := h.repo.Get(r.Context(), userID)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handler) upsertToken(w http.ResponseWriter, r *http.Request) {
	var record token.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be a token record")
		return
	}
	record.Normalize()
	if err := record.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.repo.Upsert(r.Context(), &record); err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	h.log.Debug().Str("user_id", record.UserID).Int64("expires_at", record.ExpiresAt).Msg("token record stored")
	writeJSON(w, http.StatusOK, map[string]string{"user_id": record.UserID})
}

func (h *handler) getRefreshToken(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("userID"))
	refreshToken, err := h.repo.GetRefreshToken(r.Context(), userID)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshTokenEntry{UserID: userID, RefreshToken: refreshToken})
}

func (h *handler) patchToken(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be a refresh token entry")
		return
	}
	patch.UserID = strings.TrimSpace(patch.UserID)
	patch.RefreshToken = strings.TrimSpace(patch.RefreshToken)
	if err := patch.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.repo.Patch(r.Context(), patch); err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	h.log.Debug().Str("user_id", patch.UserID).Msg("refresh token stored")
	writeJSON(w, http.StatusOK, map[string]string{"user_id": patch.UserID})
}

func (h *handler) writeRepoError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no token record for user")
	case errors.Is(err, errors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("token repo failure")
		writeError(w, http.StatusInternalServerError, "internal_error", "token store failure")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
