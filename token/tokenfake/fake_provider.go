package tokenfake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/token"
)

var _ token.Provider = (*FakeProvider)(nil)

// FakeProvider issues numbered token pairs ("a1"/"r1", "a2"/"r2", ...) and optionally
// enforces refresh-token rotation like a real provider.
type FakeProvider struct {
	lock sync.Mutex

	// Codes maps an authorization code to the user id returned with it.
	Codes map[string]string
	// Lifetime of issued access tokens.
	Lifetime time.Duration
	// Rotate rejects refresh tokens other than the latest issued per chain.
	Rotate bool
	// Delay is waited before answering a refresh, to widen race windows in tests.
	Delay time.Duration
	// RefreshErr / ExchangeErr fail the respective calls.
	RefreshErr  error
	ExchangeErr error
	Now         func() time.Time

	issued        int
	live          map[string]bool
	RefreshCalls  []string
	ExchangeCalls []string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Codes:    make(map[string]string),
		Lifetime: 6 * time.Hour,
		Now:      time.Now,
		live:     make(map[string]bool),
	}
}

func (p *FakeProvider) Exchange(_ context.Context, code string) (*token.Record, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.ExchangeCalls = append(p.ExchangeCalls, code)
	if p.ExchangeErr != nil {
		return nil, p.ExchangeErr
	}
	userID, ok := p.Codes[code]
	if !ok {
		return nil, fmt.Errorf("%w: bad code", errors.ErrInvalidGrant)
	}
	r := p.issue()
	r.UserID = userID
	return r, nil
}

func (p *FakeProvider) Refresh(ctx context.Context, refreshToken string) (*token.Record, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	p.RefreshCalls = append(p.RefreshCalls, refreshToken)
	if p.RefreshErr != nil {
		return nil, p.RefreshErr
	}
	if p.Rotate {
		if !p.live[refreshToken] {
			return nil, fmt.Errorf("%w: invalid refresh token", errors.ErrInvalidGrant)
		}
		delete(p.live, refreshToken)
	}
	return p.issue(), nil
}

// Accept marks an externally seeded refresh token as live for rotation checks.
func (p *FakeProvider) Accept(refreshToken string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.live[refreshToken] = true
}

// RefreshCount is the number of refresh calls made so far.
func (p *FakeProvider) RefreshCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.RefreshCalls)
}

func (p *FakeProvider) issue() *token.Record {
	p.issued++
	rt := fmt.Sprintf("r%d", p.issued+1)
	p.live[rt] = true
	return &token.Record{
		AccessToken:  fmt.Sprintf("a%d", p.issued+1),
		RefreshToken: rt,
		ExpiresAt:    p.Now().Add(p.Lifetime).Unix(),
	}
}
