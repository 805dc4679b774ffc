package server

import (
	"net/http"

	"github.com/jrsteele09/go-token-broker/internal/errors"
)

type callbackResponse struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// LoginHandler sends the browser to the provider's consent page.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.services.Login.AuthCodeURL(""), http.StatusFound)
	}
}

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.FormValue("code")
		errorParam := r.FormValue("error")

		// The user declined, or the provider refused the request
		if errorParam != "" {
			s.writeError(w, r, errors.Kindf(errors.ErrInvalidInput, nil, "authorization denied: %s", errorParam))
			return
		}
		if code == "" {
			s.writeError(w, r, errors.Kindf(errors.ErrInvalidInput, nil, "missing code parameter"))
			return
		}

		record, err := s.services.Tokens.Authorize(r.Context(), code)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		if s.services.Sessions != nil {
			if err := s.services.Sessions.Issue(w, r, record.UserID); err != nil {
				s.writeError(w, r, err)
				return
			}
		}

		if redirect := s.config.GetPostLoginRedirect(); redirect != "" {
			http.Redirect(w, r, redirect, http.StatusSeeOther)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, callbackResponse{UserID: record.UserID, ExpiresAt: record.ExpiresAt})
	}
}

// LogoutHandler forgets the session; stored tokens are kept for the next login.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services.Sessions != nil {
			s.services.Sessions.Clear(w, r)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
