package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const sessionTokenBytes = 16

// Session holds the metadata associated with an opaque session token.
type Session struct {
	Token     string    `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionEntry struct {
	session Session
	expiry  *time.Timer
}

// SessionStore issues and validates opaque session tokens. Sessions live
// in process memory only; each token is scheduled for removal at its
// expiry when it is created. A lookup between nominal expiry and the
// timer firing still reports the session as absent.
type SessionStore struct {
	sessions *SyncMap[string, *sessionEntry]
	// now is swapped out in tests
	now func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: NewSyncMap[string, *sessionEntry](),
		now:      time.Now,
	}
}

// Create issues a new session for the username, valid for ttl, and
// returns the opaque token for the caller to deliver as a cookie.
func (s *SessionStore) Create(username string, ttl time.Duration) (string, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(raw)

	now := s.now()
	entry := &sessionEntry{
		session: Session{
			Token:     token,
			Username:  username,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		},
		expiry: time.AfterFunc(ttl, func() {
			s.sessions.Delete(token)
		}),
	}
	s.sessions.Store(token, entry)

	return token, nil
}

// Validate returns the username bound to the token. The second return
// value is false if the token is unknown or the session has expired.
func (s *SessionStore) Validate(token string) (string, bool) {
	entry, ok := s.sessions.Load(token)
	if !ok {
		return "", false
	}
	if !s.now().Before(entry.session.ExpiresAt) {
		return "", false
	}
	return entry.session.Username, true
}

// Get returns the full session metadata for a valid token.
func (s *SessionStore) Get(token string) (Session, bool) {
	entry, ok := s.sessions.Load(token)
	if !ok {
		return Session{}, false
	}
	if !s.now().Before(entry.session.ExpiresAt) {
		return Session{}, false
	}
	return entry.session, true
}

// Destroy removes the session immediately. It is idempotent.
func (s *SessionStore) Destroy(token string) {
	entry, ok := s.sessions.LoadAndDelete(token)
	if !ok {
		return
	}
	entry.expiry.Stop()
}
