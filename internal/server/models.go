package server

import (
	"github.com/Sakenfor/pixsim7-sub008/internal/db"
	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse reports overall launcher status.
type StatusResponse struct {
	Services int    `json:"services"`
	Running  int    `json:"running"`
	Healthy  int    `json:"healthy"`
	Version  string `json:"version,omitempty"`
}

// ServicesResponse wraps the per-service snapshots.
type ServicesResponse struct {
	Services []state.Snapshot `json:"services"`
}

// LogsResponse wraps a service's log lines.
type LogsResponse struct {
	Service string   `json:"service"`
	Lines   []string `json:"lines"`
}

// EventsResponse wraps persisted event history.
type EventsResponse struct {
	Events []db.EventRecord `json:"events"`
}
