package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// HealthOutput is the health check response.
type HealthOutput struct {
	Body struct {
		Status string    `json:"status" doc:"Service status"`
		Time   time.Time `json:"time" doc:"Server time"`
	}
}

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, s.handleHealth)
}

func (s *Server) handleHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "ok"
	out.Body.Time = time.Now()
	return out, nil
}
