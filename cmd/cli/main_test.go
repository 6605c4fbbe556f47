package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, handler http.HandlerFunc, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--server", srv.URL))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSubmit(t *testing.T) {
	var got map[string]interface{}
	out, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/jobs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id":"task-1"}`))
	}, "submit", "abc", "--chat", "42", "--message", "7")

	require.NoError(t, err)
	assert.Contains(t, out, "Task queued: task-1")
	assert.Equal(t, "abc", got["locator_key"])
	assert.Equal(t, float64(42), got["chat_id"])
	assert.Equal(t, float64(7), got["message_id"])
}

func TestList(t *testing.T) {
	out, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "failed", r.URL.Query().Get("status"))
		w.Write([]byte(`[{"id":"0123456789","locator_key":"abc","chat_id":42,"message_id":7,"status":"failed"}]`))
	}, "list", "--status", "failed")

	require.NoError(t, err)
	assert.Contains(t, out, "01234...")
	assert.Contains(t, out, "42/7")
	assert.Contains(t, out, "failed")
}

func TestGet_NotFound(t *testing.T) {
	_, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"job not found"}`))
	}, "get", "missing")

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "job not found", apiErr.Message)
}

func TestStats(t *testing.T) {
	out, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"queue_depth":3,"workers":2,"pending_deletions":1,"journal":{"total":10,"failed":2}}`))
	}, "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "Queued:            3")
	assert.Contains(t, out, "Failed:     2")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 8))
	assert.Equal(t, "01234...", truncate("0123456789", 8))
}
