package dashclient

import "sync"

// UserProfile is the signed-in user as reported by the dashboard backend.
type UserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SessionStore holds the session token and profile between calls.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	Token() string
	User() *UserProfile
	SetSession(token string, user *UserProfile)
	Clear()
}

// MemorySessionStore keeps the session in process memory.
type MemorySessionStore struct {
	mutex sync.RWMutex
	token string
	user  *UserProfile
}

// NewMemorySessionStore constructs an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// Token returns the stored session token, or empty when signed out.
func (store *MemorySessionStore) Token() string {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.token
}

// User returns a copy of the stored profile, or nil when signed out.
func (store *MemorySessionStore) User() *UserProfile {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	if store.user == nil {
		return nil
	}
	cloned := *store.user
	return &cloned
}

// SetSession replaces the stored token and profile.
func (store *MemorySessionStore) SetSession(token string, user *UserProfile) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.token = token
	if user == nil {
		store.user = nil
		return
	}
	cloned := *user
	store.user = &cloned
}

// Clear forgets the session.
func (store *MemorySessionStore) Clear() {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.token = ""
	store.user = nil
}
