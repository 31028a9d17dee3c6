package directory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session binds an opaque token to exactly one user identity. Possession of
// a valid token is sufficient to open a transport connection as that user;
// the core never re-authenticates after the initial bind.
type Session struct {
	Token     string
	UserID    string
	Username  string
	CreatedAt time.Time
}

// SessionStore maps tokens to sessions, keeping token and identity 1:1.
type SessionStore struct {
	mu      sync.Mutex
	byToken map[string]Session
	byUser  map[string]string
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		byToken: make(map[string]Session),
		byUser:  make(map[string]string),
	}
}

// Create issues a fresh token for user, revoking any token the user held
// before so a token never resolves to more than one identity and an identity
// never holds more than one valid token.
func (s *SessionStore) Create(user User) Session {
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byUser[user.ID]; ok {
		delete(s.byToken, old)
	}
	s.byToken[sess.Token] = sess
	s.byUser[user.ID] = sess.Token
	return sess
}

// Validate resolves a token to its session.
func (s *SessionStore) Validate(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	return sess, ok
}

// Revoke invalidates a token. Revoking an unknown token is a no-op.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok {
		return
	}
	delete(s.byToken, token)
	if s.byUser[sess.UserID] == token {
		delete(s.byUser, sess.UserID)
	}
}
