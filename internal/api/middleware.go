package api

import (
	"context"
	"net/http"

	"example.com/chat-broker/core"
)

type sessionKeyType struct{}

var sessionKey sessionKeyType

func contextWithSession(ctx context.Context, session core.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

func sessionFromContext(ctx context.Context) (core.Session, bool) {
	session, ok := ctx.Value(sessionKey).(core.Session)
	return session, ok
}

// SessionFromRequest extracts the session from the request context. It
// must only be called in handlers protected by SessionMiddleware; it
// panics otherwise.
func SessionFromRequest(r *http.Request) core.Session {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		panic("session not found in request context: handler is not behind SessionMiddleware")
	}
	return session
}

// SessionMiddleware resolves the session cookie against the store and
// attaches the session to the request context. A missing or malformed
// cookie is treated identically to an invalid token: 401, nothing else.
func SessionMiddleware(sessions *core.SessionStore, cookieName string) ApiMiddleware {

	return func(next http.Handler) ApiHandleFunc {

		authErr := NewApiError("unauthenticated", http.StatusUnauthorized)

		return func(w http.ResponseWriter, r *http.Request) error {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				return authErr
			}

			session, ok := sessions.Get(cookie.Value)
			if !ok {
				return authErr
			}

			next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), session)))
			return nil
		}
	}
}
