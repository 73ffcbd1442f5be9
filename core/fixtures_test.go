package core

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

type StoreFixture struct {
	db            *sql.DB
	userStore     *SQLiteUserStore
	conversations *SQLiteConversationStore
	ctx           context.Context
	tearDown      func()
	t             *testing.T
}

func NewStoreFixture(t *testing.T) *StoreFixture {
	ctx, cancel := context.WithCancel(context.Background())

	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}

	migrationfs := os.DirFS("../migrations")
	goose.SetBaseFS(migrationfs)

	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatal(err)
	}

	if err := goose.Up(db, "."); err != nil {
		t.Fatal(err)
	}

	f := &StoreFixture{
		db:            db,
		userStore:     NewSQLiteUserStore(db),
		conversations: NewSQLiteConversationStore(db),
		ctx:           ctx,
		tearDown: func() {
			cancel()
			db.Close()
		},
		t: t,
	}

	return f
}

func (f *StoreFixture) seedRoom(name string) *Room {
	room, err := f.conversations.AddRoom(f.ctx, RoomCreateInput{Name: name})
	if err != nil {
		f.t.Fatal(err)
	}
	return room
}

func seedUsers(ctx context.Context, t *testing.T, userStore UserStore, users ...User) {
	for _, u := range users {
		if err := userStore.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
}
