package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"example.com/chat-broker/core"
	"example.com/chat-broker/ws"
	"github.com/go-chi/cors"
)

const DefaultCookieName = "chat-session"

type ApiConfig struct {
	// SessionTTL is the lifetime of a session and its cookie.
	SessionTTL time.Duration
	// CookieName is the name of the session cookie.
	CookieName string
	// BlockSize is the number of messages per sealed conversation block.
	BlockSize int
	// AllowedOrigins is the CORS allow list.
	AllowedOrigins []string
	Logger         *slog.Logger
}

type Api struct {
	db            *sql.DB
	mux           *ApiMux
	config        ApiConfig
	logger        *slog.Logger
	sessions      *core.SessionStore
	conversations core.ConversationStore
	batcher       *core.ConversationBatcher
	hub           *ws.ConnHub
}

func NewApi(ctx context.Context, db *sql.DB, config ApiConfig) *Api {
	if config.CookieName == "" {
		config.CookieName = DefaultCookieName
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	api := &Api{
		db:     db,
		mux:    NewApiRouter(),
		config: config,
		logger: config.Logger,
	}
	api.mountHandlers()
	return api
}

func (a *Api) Mux() http.Handler {
	return a.mux
}

// Hub returns the websocket hub so the server can start and close it.
func (a *Api) Hub() *ws.ConnHub {
	return a.hub
}

// Sessions returns the session store backing the api.
func (a *Api) Sessions() *core.SessionStore {
	return a.sessions
}

// Batcher returns the conversation batcher backing the api.
func (a *Api) Batcher() *core.ConversationBatcher {
	return a.batcher
}

// SeedRooms opens a live buffer for every persisted room. It must be
// called before the broker starts accepting messages.
func (a *Api) SeedRooms(ctx context.Context) error {
	rooms, err := a.conversations.GetRooms(ctx)
	if err != nil {
		return fmt.Errorf("get rooms: %w", err)
	}
	for _, room := range rooms {
		a.batcher.Track(room.ID)
	}
	return nil
}

func (a *Api) mountHandlers() {
	userStore := core.NewSQLiteUserStore(a.db)
	a.conversations = core.NewSQLiteConversationStore(a.db)
	a.sessions = core.NewSessionStore()
	a.batcher = core.NewConversationBatcher(a.conversations,
		core.WithBlockSize(a.config.BlockSize),
		core.WithBatcherLogger(a.logger))

	relay := ws.NewChatRelay(a.batcher, a.logger)
	a.hub = ws.New(
		ws.NewWSConnFactory(ws.WithConnLogger(a.logger)),
		ws.NewSessionAuthenticator(a.sessions, a.config.CookieName),
		ws.WithLogger(a.logger),
	)
	a.hub.OnMessage(relay.HandleMessage)

	userHandler := NewUserHandler(userStore, a.sessions, a.config.CookieName, a.config.SessionTTL)
	chatHandler := NewChatHandler(a.conversations, a.batcher)

	allowedOrigins := a.config.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	a.mux.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	sessionMiddleware := SessionMiddleware(a.sessions, a.config.CookieName)

	a.mux.Route("/users", func(r *ApiMux) {
		r.Post("/signup", userHandler.SignupHandler)
		r.Post("/signin", userHandler.SigninHandler)
		r.Post("/signout", userHandler.SignoutHandler)

		r.With(sessionMiddleware).Get("/me", userHandler.MeHandler)
	})

	a.mux.Route("/chat", func(r *ApiMux) {
		r.Use(sessionMiddleware)
		r.Get("/", chatHandler.GetRoomsHandler)
		r.Post("/", chatHandler.CreateRoomHandler)
		r.Get("/{roomID}/messages", chatHandler.GetLastConversationHandler)
	})

	a.mux.Router.Get("/ws", a.hub.ServeHTTP)
}
