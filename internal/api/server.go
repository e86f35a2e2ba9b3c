package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chathub/pkg/interfaces"
	"chathub/pkg/types"
)

// HealthChecker reports backing-store liveness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatsProvider exposes hub counters without coupling to the hub type.
type StatsProvider interface {
	Stats() map[string]int
}

// PresenceSource exposes the live presence snapshot.
type PresenceSource interface {
	Snapshot() []types.OnlineUserEntry
}

// Server is the HTTP surface: health plus a few read-only chat state
// endpoints. All mutation goes through the WebSocket admin frames.
type Server struct {
	health     HealthChecker
	stats      StatsProvider
	presence   PresenceSource
	moderation interfaces.ModerationStore
	router     *http.ServeMux
}

func NewServer(health HealthChecker, stats StatsProvider, presence PresenceSource, moderation interfaces.ModerationStore) *Server {
	s := &Server{
		health:     health,
		stats:      stats,
		presence:   presence,
		moderation: moderation,
		router:     http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/api/online", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleOnline))))
	s.router.Handle("/api/announcement", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleAnnouncement))))
	s.router.Handle("/api/rules", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRules))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if err := s.health.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.stats.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// GET /api/online
func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries := s.presence.Snapshot()
	if entries == nil {
		entries = []types.OnlineUserEntry{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"online": entries, "count": len(entries)})
}

// GET /api/announcement
func (s *Server) handleAnnouncement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ann, err := s.moderation.Announcement(r.Context())
	if err != nil {
		s.sendError(w, "Failed to load announcement", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"announcement": ann})
}

// GET /api/rules
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rules, err := s.moderation.Rules(r.Context())
	if err != nil {
		s.sendError(w, "Failed to load chat rules", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"rules": rules})
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// corsMiddleware allows browser clients from any origin. Deployments that
// need origin restrictions put them in the fronting proxy.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(w, r)
	})
}
