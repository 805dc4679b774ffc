package tokenstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/internal/httpclient"
	"github.com/jrsteele09/go-token-broker/token"
)

var (
	_ token.Store              = (*Client)(nil)
	_ token.RefreshTokenWriter = (*Client)(nil)
)

const maxResponseBytes = 1 << 20

// Client is a token.Store backed by the token store HTTP service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpclient.New(httpclient.DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches the user's record. A store that omits user_id gets it filled in.
func (c *Client) Get(ctx context.Context, userID string) (*token.Record, error) {
	var record token.Record
	if err := c.do(ctx, http.MethodGet, "/tokens/"+url.PathEscape(userID), nil, &record); err != nil {
		return nil, err
	}
	if record.UserID == "" {
		record.UserID = userID
	}
	record.Normalize()
	return &record, nil
}

func (c *Client) Upsert(ctx context.Context, record *token.Record) error {
	return c.do(ctx, http.MethodPost, "/tokens", record, nil)
}

func (c *Client) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	var entry RefreshTokenEntry
	if err := c.do(ctx, http.MethodGet, "/refresh-tokens/"+url.PathEscape(userID), nil, &entry); err != nil {
		return "", err
	}
	if entry.RefreshToken == "" {
		return "", errors.Kindf(errors.ErrNotFound, nil, "no refresh token for user %s", userID)
	}
	return entry.RefreshToken, nil
}

// Patch writes a partial record through POST /refresh-tokens.
func (c *Client) Patch(ctx context.Context, patch Patch) error {
	return c.do(ctx, http.MethodPost, "/refresh-tokens", patch, nil)
}

func (c *Client) UpsertRefreshToken(ctx context.Context, userID, refreshToken string) error {
	return c.Patch(ctx, Patch{UserID: userID, RefreshToken: refreshToken})
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Kindf(errors.ErrUpstreamUnavailable, err, "token store %s %s", method, path)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return errors.Kindf(errors.ErrNotFound, nil, "token store %s %s", method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return errors.Kindf(errors.ErrUpstreamUnavailable, nil, "token store %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return errors.Kindf(errors.ErrUpstreamUnavailable, err, "token store %s %s: decode response", method, path)
	}
	return nil
}
