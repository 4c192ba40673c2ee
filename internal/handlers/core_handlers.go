package handlers

import (
	"context"
	"net/http"
	"time"

	"sao-connect/internal/api"

	"github.com/samber/lo"
)

// counter is implemented by backends that can cheaply report their size.
type counter interface {
	Counts(ctx context.Context) (messages int, users int, err error)
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		resp := api.HealthResponse{
			Status:      "healthy",
			Backend:     s.Config.Database.Type,
			Connections: s.Hub.Count(),
			Uptime:      s.Metrics.Uptime().Round(time.Second).String(),
			ServerTime:  time.Now().UTC(),
		}

		if c, ok := s.Store.(counter); ok {
			ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
			defer cancel()
			messages, users, err := c.Counts(ctx)
			if err != nil {
				s.Logger.Error("health check failed", "error", err)
				resp.Status = "degraded"
				api.WriteJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
			resp.Messages = lo.ToPtr(messages)
			resp.Users = lo.ToPtr(users)
		}

		api.WriteJSON(w, http.StatusOK, resp)
	}
}
