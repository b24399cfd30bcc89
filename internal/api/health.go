package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Database string `json:"database"`
	Market   string `json:"market"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if s.db == nil || s.db.Ping(r.Context()) != nil {
		dbStatus = "disconnected"
	}
	marketStatus := "enabled"
	if s.market == nil {
		marketStatus = "disabled"
	}

	status := "ok"
	if dbStatus != "connected" {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  healthServices{Database: dbStatus, Market: marketStatus},
	})
}
