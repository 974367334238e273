// Package ws serves the control API and the overlay WebSocket.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const DefaultAddr = ":8080"

type Config struct {
	Addr string
}

func (c Config) addr() string {
	if strings.TrimSpace(c.Addr) == "" {
		return DefaultAddr
	}
	return c.Addr
}

// Publisher carries WebSocket intake such as tts:speak onto the event bus.
type Publisher interface {
	Publish(topic string, payload any)
}

type Server struct {
	addr     string
	logger   *log.Logger
	upgrader websocket.Upgrader
	bus      Publisher
	api      *apiHandlers

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	httpSrv *http.Server
}

func NewServer(cfg Config, deps Deps, bus Publisher, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("ws")
	return &Server{
		addr:   cfg.addr(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bus:     bus,
		api:     newAPIHandlers(deps, logger),
		clients: make(map[*wsClient]struct{}),
	}
}

// Handler returns the routed handler without listening.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.ClientCount()})
	})
	s.api.register(mux)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			setCORSHeaders(w)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("shutdown failed", "err", err)
		}
		s.closeClients()
	}()

	s.logger.Info("listening", "addr", s.addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
