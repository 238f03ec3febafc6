package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railway-template-metrics/internal/orchestrator"
	"railway-template-metrics/internal/replay"
)

type fixedStatus struct {
	st orchestrator.Status
}

func (s fixedStatus) Status() orchestrator.Status { return s.st }

func TestMux_Health(t *testing.T) {
	srv := httptest.NewServer(newMux(fixedStatus{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMux_Status(t *testing.T) {
	srv := httptest.NewServer(newMux(fixedStatus{st: orchestrator.Status{Status: "running", Runs: 3, Skipped: 1, LastCycleID: "abc"}}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var got orchestrator.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 3, got.Runs)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, "abc", got.LastCycleID)
}

func TestMux_Metrics(t *testing.T) {
	srv := httptest.NewServer(newMux(fixedStatus{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"collect", "serve", "migrate", "recompute", "verify"}, names)
}

func TestCollect_MissingConfiguration(t *testing.T) {
	for _, k := range []string{"RAILWAY_API_TOKEN", "RAILWAY_CUSTOMER_ID", "RAILWAY_WORKSPACE_ID", "DATABASE_URL"} {
		t.Setenv(k, "")
	}

	root := newRootCmd()
	root.SetArgs([]string{"collect", "--env-file", t.TempDir() + "/missing.env"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAILWAY_API_TOKEN")
}

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("2025-03-01T00:00:00Z", "2025-03-31T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), end)

	start, end, err = parseRange("", "2025-03-31T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, end.Sub(start))

	_, _, err = parseRange("2025-04-01T00:00:00Z", "2025-03-31T00:00:00Z")
	assert.ErrorIs(t, err, replay.ErrInvalidRange)

	_, _, err = parseRange("yesterday", "")
	assert.ErrorContains(t, err, "--from")
}
