package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/chat-broker/config"
	"example.com/chat-broker/core"
	"example.com/chat-broker/internal/api"
	"github.com/go-chi/chi/v5"
)

type Server struct {
	config *config.Config
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{
		config: cfg,
		logger: logger,
	}
}

func (s *Server) Start() {

	serverCtx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	db, err := core.NewSQLiteDB(s.config.SQLite.File, s.config.SQLite.Migrations, nil)
	if err != nil {
		s.logger.Error("open db", slog.Any("err", err))
		os.Exit(1)
	}

	if err := db.Migrate(); err != nil {
		s.logger.Error("migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	_api := api.NewApi(serverCtx, db.DB, api.ApiConfig{
		SessionTTL:     s.config.Session.TTL,
		CookieName:     s.config.Session.CookieName,
		BlockSize:      s.config.Chat.BlockSize,
		AllowedOrigins: s.config.AllowedOrigins,
		Logger:         s.logger,
	})

	if err := _api.SeedRooms(serverCtx); err != nil {
		s.logger.Error("seed room buffers", slog.Any("err", err))
		os.Exit(1)
	}

	_api.Hub().Start()

	r := chi.NewRouter()
	r.Mount("/", _api.Mux())

	server := &http.Server{
		Addr:    s.config.Addr(),
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return serverCtx
		},
	}

	done := make(chan struct{})

	go func() {
		<-serverCtx.Done()

		s.logger.Info("server is shutting down")

		exitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		go func() {
			<-exitCtx.Done()
			if exitCtx.Err() == context.DeadlineExceeded {
				s.logger.Error("graceful shutdown timed out, forcing exit")
				os.Exit(1)
			}
		}()

		if err := server.Shutdown(exitCtx); err != nil {
			s.logger.Error("server shutdown", slog.Any("err", err))
			os.Exit(1)
		}

		_api.Hub().Close()
		// drain in-flight block persistence before closing the db
		_api.Batcher().Wait()
		db.Close()
		close(done)
	}()

	s.logger.Info("server started", slog.String("addr", server.Addr))

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error("server exit", slog.Any("err", err))
		os.Exit(1)
	}
	<-done
}
