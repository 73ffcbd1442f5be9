package ws

import (
	"net/http"

	"example.com/chat-broker/core"
)

// SessionAuthenticator gates websocket upgrades on a valid session
// cookie. A missing, malformed or expired token is refused with 401
// before the upgrade; the request never reaches the hub.
type SessionAuthenticator struct {
	sessions   *core.SessionStore
	cookieName string
}

func NewSessionAuthenticator(sessions *core.SessionStore, cookieName string) *SessionAuthenticator {
	return &SessionAuthenticator{
		sessions:   sessions,
		cookieName: cookieName,
	}
}

func (a *SessionAuthenticator) Authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(a.cookieName)
	if err != nil || cookie.Value == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return "", false
	}

	username, ok := a.sessions.Validate(cookie.Value)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return "", false
	}

	return username, true
}
