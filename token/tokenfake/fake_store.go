package tokenfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/token"
)

var _ token.Store = (*FakeStore)(nil)

// FakeStore is an in-memory token store with failure injection and call counters.
type FakeStore struct {
	records map[string]token.Record
	lock    sync.RWMutex

	GetErr             error
	UpsertErr          error
	GetRefreshTokenErr error

	GetCalls             int
	UpsertCalls          int
	GetRefreshTokenCalls int
}

func NewFakeStore(records ...token.Record) *FakeStore {
	s := &FakeStore{records: make(map[string]token.Record)}
	for _, r := range records {
		s.records[r.UserID] = r
	}
	return s
}

func (s *FakeStore) Get(_ context.Context, userID string) (*token.Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.GetCalls++
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	r, ok := s.records[userID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &r, nil
}

func (s *FakeStore) Upsert(_ context.Context, record *token.Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.UpsertCalls++
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	s.records[record.UserID] = *record
	return nil
}

func (s *FakeStore) GetRefreshToken(_ context.Context, userID string) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.GetRefreshTokenCalls++
	if s.GetRefreshTokenErr != nil {
		return "", s.GetRefreshTokenErr
	}
	r, ok := s.records[userID]
	if !ok || r.RefreshToken == "" {
		return "", errors.ErrNotFound
	}
	return r.RefreshToken, nil
}

// Record returns the stored record for userID, bypassing counters and injected errors.
func (s *FakeStore) Record(userID string) (token.Record, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	r, ok := s.records[userID]
	return r, ok
}

// SetFailing makes every call fail with err (nil restores normal behaviour).
func (s *FakeStore) SetFailing(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.GetErr = err
	s.UpsertErr = err
	s.GetRefreshTokenErr = err
}

var _ token.RefreshTokenWriter = (*FakeStore)(nil)

// UpsertRefreshToken keeps the user's record and replaces only its refresh token.
func (s *FakeStore) UpsertRefreshToken(_ context.Context, userID, refreshToken string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.UpsertCalls++
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	r := s.records[userID]
	r.UserID = userID
	r.RefreshToken = refreshToken
	s.records[userID] = r
	return nil
}
