package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-token-broker/identity"
	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/internal/metrics"
)

// activityQueryParams are the list filters forwarded to the resource API.
var activityQueryParams = []string{"page", "per_page", "before", "after"}

type tokenResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (s *Server) ActivitiesHandler(users identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, err := activityQuery(r.URL.Query())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.relay(w, r, users, RouteActivities, upstreamActivities, query)
	}
}

func (s *Server) ActivityHandler(users identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !isDigits(id) {
			s.writeError(w, r, errors.Kindf(errors.ErrInvalidInput, nil, "activity id must be numeric"))
			return
		}
		s.relay(w, r, users, RouteActivity, upstreamActivity+id, nil)
	}
}

func (s *Server) AthleteHandler(users identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.relay(w, r, users, RouteAthlete, upstreamAthlete, nil)
	}
}

// AthleteStatsHandler reads the stats of the athlete the tokens belong to.
func (s *Server) AthleteStatsHandler(users identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := users.ResolveUserID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !isDigits(userID) {
			s.writeError(w, r, errors.Kindf(errors.ErrInvalidInput, nil, "athlete stats need a numeric user id"))
			return
		}
		s.relayFor(w, r, userID, RouteAthleteStats, upstreamAthletesRoot+userID+"/stats", nil)
	}
}

// TokenHandler hands a valid access token to callers that talk to the API themselves.
func (s *Server) TokenHandler(users identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := users.ResolveUserID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		record, err := s.services.Tokens.GetValidRecord(r.Context(), userID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{
			UserID:      record.UserID,
			AccessToken: record.AccessToken,
			ExpiresAt:   record.ExpiresAt,
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) relay(w http.ResponseWriter, r *http.Request, users identity.Resolver, route, path string, query url.Values) {
	userID, err := users.ResolveUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.relayFor(w, r, userID, route, path, query)
}

// relayFor writes the upstream reply as is; only transport failures and 401s become broker errors.
func (s *Server) relayFor(w http.ResponseWriter, r *http.Request, userID, route, path string, query url.Values) {
	resp, err := s.services.Resources.Fetch(r.Context(), userID, path, query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.UpstreamResponses.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("client went away during relay")
	}
}

func activityQuery(in url.Values) (url.Values, error) {
	out := url.Values{}
	for _, name := range activityQueryParams {
		v := strings.TrimSpace(in.Get(name))
		if v == "" {
			continue
		}
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return nil, errors.Kindf(errors.ErrInvalidInput, nil, "%s must be an integer", name)
		}
		out.Set(name, v)
	}
	return out, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
