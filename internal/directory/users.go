// Package directory implements the identity, session, and contact stores the
// routing core consumes. All state is in-memory for the lifetime of the
// process; the core only ever references users by id.
package directory

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUsernameTaken is returned when registering a name that exists.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials is returned for unknown users or bad passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrMissingCredentials is returned for empty usernames or passwords.
	ErrMissingCredentials = errors.New("username and password are required")
)

// User is a registered identity. Immutable once created.
type User struct {
	ID       string
	Username string
}

type userRecord struct {
	user         User
	passwordHash []byte
}

// UserStore holds registered users keyed by name and id.
type UserStore struct {
	mu     sync.RWMutex
	byName map[string]userRecord
	byID   map[string]User
}

// NewUserStore creates an empty user store.
func NewUserStore() *UserStore {
	return &UserStore{
		byName: make(map[string]userRecord),
		byID:   make(map[string]User),
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *UserStore) Register(username, password string) (User, error) {
	if username == "" || password == "" {
		return User{}, ErrMissingCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[username]; exists {
		return User{}, ErrUsernameTaken
	}
	user := User{ID: uuid.NewString(), Username: username}
	s.byName[username] = userRecord{user: user, passwordHash: hash}
	s.byID[user.ID] = user
	return user, nil
}

// Authenticate verifies a username/password pair.
func (s *UserStore) Authenticate(username, password string) (User, error) {
	if username == "" || password == "" {
		return User{}, ErrMissingCredentials
	}

	s.mu.RLock()
	rec, ok := s.byName[username]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return rec.user, nil
}

// ByUsername fetches a user by display name.
func (s *UserStore) ByUsername(username string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byName[username]
	return rec.user, ok
}

// ByID fetches a user by id.
func (s *UserStore) ByID(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	return user, ok
}
