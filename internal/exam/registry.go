package exam

import (
	"sync"

	"examtrainer/internal/model"
)

// Registry holds the live exam states, keyed by login token. A state is
// created lazily on first use and dropped on logout or token expiry.
type Registry struct {
	mu     sync.Mutex
	states map[string]*State
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*State)}
}

// Get returns the state for a token, creating a fresh intro state when
// none exists. A stale state left behind by a token reused for another
// user is replaced.
func (r *Registry) Get(token string, u model.User) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[token]
	if !ok || st.User.ID != u.ID {
		st = NewState(u)
		r.states[token] = st
	}
	return st
}

// Delete drops the state for a token.
func (r *Registry) Delete(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, token)
}
