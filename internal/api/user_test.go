package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {

	t.Run("creates a user", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)

		resp := f.do(http.MethodPost, "/users/signup",
			SignupPayload{Username: "alice", Password: "secret", Name: "Alice"}, nil)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("rejects a duplicate username", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)
		f.signup("alice", "secret", "Alice")

		resp := f.do(http.MethodPost, "/users/signup",
			SignupPayload{Username: "alice", Password: "other", Name: "Alice"}, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)

		resp := f.do(http.MethodPost, "/users/signup",
			SignupPayload{Username: "alice"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)

		req, err := http.NewRequest(http.MethodPost, f.server.URL+"/users/signup",
			strings.NewReader("not json"))
		require.NoError(t, err)
		resp, err := f.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSignin(t *testing.T) {

	t.Run("sets a session cookie", func(t *testing.T) {
		f := NewApiFixture(t, 15*time.Second)
		f.signup("alice", "secret", "Alice")

		cookie := f.signin("alice", "secret")
		assert.NotEmpty(t, cookie.Value)
		assert.Equal(t, 15, cookie.MaxAge)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("returns the session expiry", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)
		f.signup("alice", "secret", "Alice")

		resp := f.do(http.MethodPost, "/users/signin",
			SigninPayload{Username: "alice", Password: "secret"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[SigninResponse](t, resp)
		assert.Equal(t, "alice", body.Username)
		assert.WithinDuration(t, time.Now().Add(time.Minute), body.ExpireAt, 5*time.Second)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)
		f.signup("alice", "secret", "Alice")

		resp := f.do(http.MethodPost, "/users/signin",
			SigninPayload{Username: "alice", Password: "wrong"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects an unknown user", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)

		resp := f.do(http.MethodPost, "/users/signin",
			SigninPayload{Username: "nobody", Password: "secret"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestSignout(t *testing.T) {

	t.Run("destroys the session immediately", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)
		f.signup("alice", "secret", "Alice")
		cookie := f.signin("alice", "secret")

		resp := f.do(http.MethodPost, "/users/signout", nil, cookie)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		// the token no longer opens the gate
		resp = f.do(http.MethodGet, "/chat", nil, cookie)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("succeeds without a session", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)

		resp := f.do(http.MethodPost, "/users/signout", nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}

func TestSessionGate(t *testing.T) {

	t.Run("rejects a request without a cookie", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)

		resp := f.do(http.MethodGet, "/chat", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects an unknown token", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)

		resp := f.do(http.MethodGet, "/chat", nil,
			&http.Cookie{Name: DefaultCookieName, Value: "bogus"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admits a valid token", func(t *testing.T) {
		f := NewApiFixture(t, time.Minute)
		f.signup("alice", "secret", "Alice")
		cookie := f.signin("alice", "secret")

		resp := f.do(http.MethodGet, "/chat", nil, cookie)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		f := NewApiFixture(t, 50*time.Millisecond)
		f.signup("alice", "secret", "Alice")
		cookie := f.signin("alice", "secret")

		time.Sleep(100 * time.Millisecond)

		resp := f.do(http.MethodGet, "/chat", nil, cookie)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestMe(t *testing.T) {
	f := NewApiFixture(t, time.Minute)
	f.signup("alice", "secret", "Alice")
	cookie := f.signin("alice", "secret")

	resp := f.do(http.MethodGet, "/users/me", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[UserResponse](t, resp)
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, "Alice", body.Name)
}
