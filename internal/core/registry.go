package core

import "sync"

// Identity is the public view of an authenticated user.
type Identity struct {
	UserID      int64
	Username    string
	DisplayName string
}

// Name returns the display name, falling back to the username.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Username
}

// Session binds one live connection to the identity it authenticated as.
type Session struct {
	Client   *Client
	Identity Identity
}

// Registry maps connections to identities and back. A user may hold many sessions.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Session
	byUser map[int64]map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*Session),
		byUser: make(map[int64]map[string]*Session),
	}
}

// Add registers a session for c. A closed client is refused so a connection
// that went away mid-authentication never leaves a session behind.
func (r *Registry) Add(c *Client, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.closed() {
		return ErrClientClosed
	}
	if _, exists := r.byConn[c.ID]; exists {
		return ErrAlreadyAuthenticated
	}

	s := &Session{Client: c, Identity: id}
	r.byConn[c.ID] = s
	sessions, ok := r.byUser[id.UserID]
	if !ok {
		sessions = make(map[string]*Session)
		r.byUser[id.UserID] = sessions
	}
	sessions[c.ID] = s
	return nil
}

// Remove drops the session of connID. Removing an unknown connection is a no-op.
func (r *Registry) Remove(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byConn[connID]
	if !ok {
		return Session{}, false
	}
	delete(r.byConn, connID)
	if sessions, ok := r.byUser[s.Identity.UserID]; ok {
		delete(sessions, connID)
		if len(sessions) == 0 {
			delete(r.byUser, s.Identity.UserID)
		}
	}
	return *s, true
}

// Lookup returns the session bound to connID.
func (r *Registry) Lookup(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byConn[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Connections returns every live client of userID.
func (r *Registry) Connections(userID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.byUser[userID]
	clients := make([]*Client, 0, len(sessions))
	for _, s := range sessions {
		clients = append(clients, s.Client)
	}
	return clients
}

// IdentityOf returns the identity of a connected user.
func (r *Registry) IdentityOf(userID int64) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.byUser[userID] {
		return s.Identity, true
	}
	return Identity{}, false
}

// Count returns the number of authenticated connections and distinct users.
func (r *Registry) Count() (connections, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn), len(r.byUser)
}
