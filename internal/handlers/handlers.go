package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"sao-connect/internal/config"
	"sao-connect/internal/conversation"
	"sao-connect/internal/database"
	"sao-connect/internal/middleware"
	"sao-connect/internal/utils"
	"sao-connect/internal/websocket"

	ws "github.com/gorilla/websocket"
)

const adminAlias = "admin"

// Server holds all server dependencies
type Server struct {
	Config        *config.Config
	Store         database.Adapter
	Auth          *middleware.SessionAuthenticator
	Hub           *websocket.Hub
	Delivery      *websocket.Delivery
	Conversations *conversation.Aggregator
	Metrics       *utils.MetricsCollector
	Logger        *slog.Logger

	RequestTimeout time.Duration

	upgrader ws.Upgrader
	cors     *middleware.CORSConfig
}

// NewServer wires the registry, delivery engine and aggregator around store.
func NewServer(
	cfg *config.Config,
	store database.Adapter,
	auth *middleware.SessionAuthenticator,
	metrics *utils.MetricsCollector,
	logger *slog.Logger,
) *Server {
	hub := websocket.NewHub(logger.With("component", "hub"), metrics)
	s := &Server{
		Config:         cfg,
		Store:          store,
		Auth:           auth,
		Hub:            hub,
		Delivery:       websocket.NewDelivery(hub, store, logger.With("component", "delivery"), metrics),
		Conversations:  conversation.NewAggregator(store, store, logger.With("component", "conversations")),
		Metrics:        metrics,
		Logger:         logger,
		RequestTimeout: cfg.Server.RequestTimeout,
		cors:           middleware.DefaultCORSConfig(cfg.AllowedOrigins),
	}
	s.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Routes builds the HTTP handler for the whole service.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.HandleHealth())
	if s.Config.Server.MetricsEnabled {
		mux.Handle("/metrics", s.Metrics.Handler())
	}
	mux.HandleFunc("/ws", s.HandleWebSocket())

	mux.HandleFunc("/api/auth/login", s.instrument(s.HandleLogin()))
	mux.HandleFunc("/api/auth/register", s.instrument(s.HandleUserRegistration()))
	mux.HandleFunc("/api/auth/logout", s.instrument(s.HandleLogout()))
	mux.HandleFunc("/api/auth/user", s.instrument(s.Auth.RequireAuth(s.HandleCurrentUser())))

	mux.HandleFunc("/api/messages", s.instrument(s.Auth.RequireAuth(s.HandleMessages())))
	mux.HandleFunc("/api/messages/mark-read", s.instrument(s.Auth.RequireAuth(s.HandleMarkRead())))
	mux.HandleFunc("/api/messages/unread-count", s.instrument(s.Auth.RequireAuth(s.HandleUnreadCount())))
	mux.HandleFunc("/api/conversations", s.instrument(s.Auth.RequireAuth(s.HandleConversations())))

	return middleware.CORSMiddleware(s.cors)(mux)
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument counts REST requests and 5xx answers.
func (s *Server) instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)

		s.Metrics.IncrementRequests()
		if rec.status >= http.StatusInternalServerError {
			s.Metrics.IncrementErrors()
		}
		s.Logger.Debug("request served", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	}
}
