package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreCreate(t *testing.T) {

	t.Run("issues unique opaque tokens", func(t *testing.T) {
		s := NewSessionStore()

		t1, err := s.Create("alice", time.Minute)
		require.NoError(t, err)
		t2, err := s.Create("alice", time.Minute)
		require.NoError(t, err)

		assert.NotEqual(t, t1, t2)
		// 16 random bytes hex-encoded
		assert.Len(t, t1, 32)
	})

	t.Run("validate resolves the username", func(t *testing.T) {
		s := NewSessionStore()

		token, err := s.Create("bob", time.Minute)
		require.NoError(t, err)

		username, ok := s.Validate(token)
		require.True(t, ok)
		assert.Equal(t, "bob", username)
	})

	t.Run("unknown token is absent", func(t *testing.T) {
		s := NewSessionStore()

		_, ok := s.Validate("deadbeefdeadbeefdeadbeefdeadbeef")
		assert.False(t, ok)
	})
}

func TestSessionStoreExpiry(t *testing.T) {

	t.Run("expired session is absent even before the sweep fires", func(t *testing.T) {
		s := NewSessionStore()

		token, err := s.Create("alice", time.Minute)
		require.NoError(t, err)

		// move the clock past expiry without waiting for the timer
		s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		_, ok := s.Validate(token)
		assert.False(t, ok)
	})

	t.Run("timer removes the session", func(t *testing.T) {
		s := NewSessionStore()

		token, err := s.Create("alice", 10*time.Millisecond)
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			_, ok := s.sessions.Load(token)
			return !ok
		}, time.Second, 5*time.Millisecond)
	})
}

func TestSessionStoreDestroy(t *testing.T) {

	t.Run("destroy is immediate and idempotent", func(t *testing.T) {
		s := NewSessionStore()

		token, err := s.Create("alice", time.Minute)
		require.NoError(t, err)

		s.Destroy(token)
		_, ok := s.Validate(token)
		assert.False(t, ok)

		// second destroy is a no-op
		s.Destroy(token)
	})
}

func TestSessionStoreConcurrent(t *testing.T) {
	s := NewSessionStore()

	var wg sync.WaitGroup
	tokens := make([]string, 50)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := s.Create("user", time.Minute)
			require.NoError(t, err)
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			_, ok := s.Validate(token)
			assert.True(t, ok)
			s.Destroy(token)
		}(token)
	}
	wg.Wait()

	for _, token := range tokens {
		_, ok := s.Validate(token)
		assert.False(t, ok)
	}
}
