package main

import (
	"encoding/json"
	"net/http"

	"railway-template-metrics/internal/observability"
	"railway-template-metrics/internal/orchestrator"
)

// statusSource is satisfied by *orchestrator.Scheduler.
type statusSource interface {
	Status() orchestrator.Status
}

func newMux(status statusSource) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status.Status())
	})

	return mux
}
