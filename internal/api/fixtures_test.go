package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"example.com/chat-broker/core"
)

type ApiFixture struct {
	api           *Api
	db            *sql.DB
	conversations *core.SQLiteConversationStore
	server        *httptest.Server
	ctx           context.Context
	t             *testing.T
}

func NewApiFixture(t *testing.T, ttl time.Duration) *ApiFixture {
	ctx, cancel := context.WithCancel(context.Background())

	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	goose.SetBaseFS(os.DirFS("../../migrations"))
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.Up(db, "."))

	a := NewApi(ctx, db, ApiConfig{
		SessionTTL: ttl,
		BlockSize:  10,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, a.SeedRooms(ctx))

	server := httptest.NewServer(a.Mux())

	t.Cleanup(func() {
		server.Close()
		cancel()
		db.Close()
	})

	return &ApiFixture{
		api:           a,
		db:            db,
		conversations: core.NewSQLiteConversationStore(db),
		server:        server,
		ctx:           ctx,
		t:             t,
	}
}

// do issues a request against the fixture server, optionally carrying a
// session cookie and a JSON body.
func (f *ApiFixture) do(method, path string, body any, cookie *http.Cookie) *http.Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(f.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *ApiFixture) signup(username, password, name string) {
	resp := f.do(http.MethodPost, "/users/signup",
		SignupPayload{Username: username, Password: password, Name: name}, nil)
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)
}

// signin authenticates and returns the session cookie the server set.
func (f *ApiFixture) signin(username, password string) *http.Cookie {
	resp := f.do(http.MethodPost, "/users/signin",
		SigninPayload{Username: username, Password: password}, nil)
	require.Equal(f.t, http.StatusOK, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	f.t.Fatal("no session cookie set")
	return nil
}

func (f *ApiFixture) createRoom(name string, cookie *http.Cookie) RoomResponse {
	resp := f.do(http.MethodPost, "/chat", core.RoomCreateInput{Name: name}, cookie)
	require.Equal(f.t, http.StatusOK, resp.StatusCode)

	var room RoomResponse
	require.NoError(f.t, json.NewDecoder(resp.Body).Decode(&room))
	return room
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
