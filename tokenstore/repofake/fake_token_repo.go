package tokenfakerepo

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/token"
	"github.com/jrsteele09/go-token-broker/tokenstore"
)

var _ tokenstore.Repo = (*FakeTokenRepo)(nil)

// FakeTokenRepo keeps token records in memory. It backs TOKENSTORE_DSN=memory://.
type FakeTokenRepo struct {
	records map[string]token.Record
	lock    sync.RWMutex
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		records: make(map[string]token.Record),
	}
}

func (tr *FakeTokenRepo) Get(_ context.Context, userID string) (*token.Record, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	r, ok := tr.records[userID]
	if !ok {
		return nil, errors.Kindf(errors.ErrNotFound, nil, "user %s", userID)
	}
	return &r, nil
}

func (tr *FakeTokenRepo) Upsert(_ context.Context, record *token.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.records[record.UserID] = *record
	return nil
}

func (tr *FakeTokenRepo) GetRefreshToken(_ context.Context, userID string) (string, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	r, ok := tr.records[userID]
	if !ok || r.RefreshToken == "" {
		return "", errors.Kindf(errors.ErrNotFound, nil, "no refresh token for user %s", userID)
	}
	return r.RefreshToken, nil
}

func (tr *FakeTokenRepo) Patch(_ context.Context, patch tokenstore.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	tr.lock.Lock()
	defer tr.lock.Unlock()
	var current *token.Record
	if r, ok := tr.records[patch.UserID]; ok {
		current = &r
	}
	tr.records[patch.UserID] = *patch.Apply(current)
	return nil
}

// UserIDs lists stored users in order.
func (tr *FakeTokenRepo) UserIDs() []string {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	ids := make([]string, 0, len(tr.records))
	for id := range tr.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
