package client

import (
	"log"
	"sync"
	"time"

	"github.com/zlnvch/flashlist/models"
)

type State int

const (
	Anonymous State = iota
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "anonymous"
	}
}

type Credentials struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt int64       `json:"expiresAt"`
}

// CredentialStore persists credentials between runs. CredentialFile is
// the file backed implementation.
type CredentialStore interface {
	Load() (Credentials, bool, error)
	Save(creds Credentials) error
	Remove() error
}

// Session holds the current authentication state. It starts anonymous,
// becomes authenticated at login, and expires when the token runs out or
// the service rejects it.
type Session struct {
	mu    sync.Mutex
	state State
	creds Credentials
	store CredentialStore
	now   func() time.Time
}

// NewSession restores saved credentials from store when they are still
// valid. A nil store keeps the session in memory only.
func NewSession(store CredentialStore) *Session {
	s := &Session{store: store, now: time.Now}
	if store == nil {
		return s
	}

	creds, ok, err := store.Load()
	if err != nil {
		log.Printf("Failed to load credentials: %v", err)
		return s
	}
	if !ok || creds.Token == "" {
		return s
	}

	s.state = Authenticated
	s.creds = creds
	s.checkExpiry()
	return s
}

// checkExpiry must be called with mu held or before the session is shared.
func (s *Session) checkExpiry() {
	if s.state == Authenticated && s.creds.ExpiresAt > 0 && s.now().UnixMilli() >= s.creds.ExpiresAt {
		s.expire()
	}
}

func (s *Session) expire() {
	s.state = Expired
	s.creds = Credentials{}
	if s.store != nil {
		if err := s.store.Remove(); err != nil {
			log.Printf("Failed to remove credentials: %v", err)
		}
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkExpiry()
	return s.state
}

// Token returns the bearer token while the session is authenticated.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkExpiry()
	if s.state != Authenticated {
		return "", false
	}
	return s.creds.Token, true
}

func (s *Session) User() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkExpiry()
	if s.state != Authenticated {
		return models.User{}, false
	}
	return s.creds.User, true
}

// Authenticate stores a successful login. The session is authenticated
// even when persisting fails; the error is returned for reporting.
func (s *Session) Authenticate(result models.LoginResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Authenticated
	s.creds = Credentials{Token: result.Token, User: result.User, ExpiresAt: result.ExpiresAt}
	if s.store == nil {
		return nil
	}
	return s.store.Save(s.creds)
}

// Expire drops the credentials after the service rejected them.
func (s *Session) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Authenticated {
		s.expire()
	}
}

// Clear returns to anonymous, purging any saved credentials.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	s.state = Anonymous
}
