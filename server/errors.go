package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-token-broker/internal/errors"
)

// errorResponse is the body of every non-2xx JSON reply. LoginURL is set when the
// caller has to send the user through the authorization flow again.
type errorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	LoginURL string `json:"login_url,omitempty"`
}

type errorMapping struct {
	kind        error
	status      int
	code        string
	message     string
	reauthorize bool
}

// Order matters: a refresh that failed because the provider was down is a 502, not a 401.
var errorMappings = []errorMapping{
	{errors.ErrInvalidInput, http.StatusBadRequest, "invalid_input", "", false},
	{errors.ErrNotFound, http.StatusNotFound, "not_found", "Not found", false},
	{errors.ErrNoIdentity, http.StatusUnauthorized, "no_identity", "No user identity, please log in", true},
	{errors.ErrSessionExpired, http.StatusUnauthorized, "session_expired", "Session expired, please re-authenticate", true},
	{errors.ErrNoCredentials, http.StatusUnauthorized, "no_credentials", "No stored credentials, please authorize", true},
	{errors.ErrUpstreamUnavailable, http.StatusBadGateway, "upstream_unavailable", "Upstream service unavailable", false},
	{errors.ErrRefreshFailed, http.StatusUnauthorized, "refresh_failed", "Token refresh failed, please re-authenticate", true},
	{errors.ErrAuthorizationFailed, http.StatusUnauthorized, "authorization_failed", "Authorization failed", true},
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an error kind to a status and a body that never carries the cause,
// since causes can quote provider responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		resp := errorResponse{Error: m.code, Message: m.message}
		if m.kind == errors.ErrInvalidInput {
			resp.Message = err.Error()
		}
		if m.reauthorize {
			resp.LoginURL = RouteLogin
		}
		s.log.Debug().Err(err).Str("path", r.URL.Path).Int("status", m.status).Msg("request failed")
		writeJSON(w, m.status, resp)
		return
	}

	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "internal_error",
		Message: "Internal server error",
	})
}
