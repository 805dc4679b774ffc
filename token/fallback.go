package token

import "sync"

// fallback remembers the last refresh token seen per user so a refresh can still
// happen while the store is unreachable. It is bounded and never holds access tokens.
type fallback struct {
	mu       sync.Mutex
	capacity int
	tokens   map[string]string
	order    []string // oldest first
}

func newFallback(capacity int) *fallback {
	if capacity < 0 {
		capacity = 0
	}
	return &fallback{
		capacity: capacity,
		tokens:   make(map[string]string, capacity),
	}
}

func (f *fallback) remember(userID, refreshToken string) {
	if f.capacity == 0 || userID == "" || refreshToken == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tokens[userID]; ok {
		f.removeFromOrder(userID)
	} else if len(f.tokens) >= f.capacity {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.tokens, oldest)
	}
	f.tokens[userID] = refreshToken
	f.order = append(f.order, userID)
}

func (f *fallback) get(userID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.tokens[userID]
	return rt, ok
}

// forget drops the entry only if it still holds refreshToken.
func (f *fallback) forget(userID, refreshToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rt, ok := f.tokens[userID]; ok && rt == refreshToken {
		delete(f.tokens, userID)
		f.removeFromOrder(userID)
	}
}

func (f *fallback) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

func (f *fallback) removeFromOrder(userID string) {
	for i, id := range f.order {
		if id == userID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			return
		}
	}
}
