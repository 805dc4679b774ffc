// Package provider talks to the OAuth provider's token endpoint.
package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/internal/httpclient"
	"github.com/jrsteele09/go-token-broker/token"
	"golang.org/x/oauth2"
)

var _ token.Provider = (*Client)(nil)

// Client exchanges authorization codes and refresh tokens with the provider.
type Client struct {
	oauth      *oauth2.Config
	scopes     []string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default bounded-timeout client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Client) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithRedirectURL sets the callback used when the config has none.
func WithRedirectURL(redirectURL string) Option {
	return func(p *Client) {
		if p.oauth.RedirectURL == "" {
			p.oauth.RedirectURL = redirectURL
		}
	}
}

// New builds a Client from the OAuth settings; credentials are sent in the form body.
func New(cfg config.OAuthConfig, opts ...Option) *Client {
	p := &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.GetClientID(),
			ClientSecret: cfg.GetClientSecret(),
			RedirectURL:  cfg.GetRedirectURL(),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.GetAuthURL(),
				TokenURL:  cfg.GetTokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		scopes:     cfg.GetScopes(),
		httpClient: httpclient.New(httpclient.DefaultTimeout),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthCodeURL is where the user is sent to grant access.
// Scopes are comma separated, which is what the provider expects.
func (p *Client) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("approval_prompt", "auto"),
		oauth2.SetAuthURLParam("scope", strings.Join(p.scopes, ",")),
	)
}

// Exchange trades an authorization code for the user's first token record.
func (p *Client) Exchange(ctx context.Context, code string) (*token.Record, error) {
	tok, err := p.oauth.Exchange(p.withClient(ctx), code)
	if err != nil {
		return nil, classify("authorization code exchange", err)
	}
	return recordFromToken(tok)
}

// Refresh trades a refresh token for a new record. The user id is left empty.
func (p *Client) Refresh(ctx context.Context, refreshToken string) (*token.Record, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.Kindf(errors.ErrInvalidInput, nil, "refresh token is required")
	}
	// An expired token with only a refresh token forces the token source to hit the endpoint.
	src := p.oauth.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classify("refresh token exchange", err)
	}
	return recordFromToken(tok)
}

func (p *Client) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// classify maps token endpoint failures to error kinds: 400, 401 and 403 mean the grant
// was refused; rate limits, timeouts and every other status mean the provider could not serve it.
func classify(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		if grantRefused(status) {
			return errors.Kindf(errors.ErrInvalidGrant, nil, "%s: status %d: %s", op, status, describe(re))
		}
		return errors.Kindf(errors.ErrUpstreamUnavailable, nil, "%s: status %d: %s", op, status, describe(re))
	}
	return errors.Kindf(errors.ErrUpstreamUnavailable, err, "%s", op)
}

func grantRefused(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

const maxErrorBody = 256

func describe(re *oauth2.RetrieveError) string {
	switch {
	case re.ErrorCode != "" && re.ErrorDescription != "":
		return re.ErrorCode + ": " + re.ErrorDescription
	case re.ErrorCode != "":
		return re.ErrorCode
	}
	body := strings.TrimSpace(string(re.Body))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if body == "" {
		return "empty response"
	}
	return body
}
