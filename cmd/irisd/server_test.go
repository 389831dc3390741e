package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iris-db/iris"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := iris.Open("", iris.Options{Backend: iris.BackendMem, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := &server{db: db, logger: logger}
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestServer_InsertAndGet(t *testing.T) {
	ts := newTestServer(t)

	status, out := post(t, ts, "/graphs/people", `{"insert":[{"data":{"name":"Alice"}},{"data":{"name":"Bob"}}]}`)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, out["results"], 2)
	require.Empty(t, out["errors"])

	status, out = post(t, ts, "/graphs/people", `{"get":[{"where":{"name":"Bob"}}]}`)
	require.Equal(t, http.StatusOK, status)
	results := out["results"].([]any)
	require.Len(t, results, 1)
	res := results[0].(map[string]any)
	require.Equal(t, "get", res["directive"])
	require.EqualValues(t, 1, res["count"])
	node := res["nodes"].([]any)[0].(map[string]any)
	require.EqualValues(t, 1, node["id"])
	require.Equal(t, map[string]any{"name": "Bob"}, node["data"])
}

func TestServer_DirectiveErrors(t *testing.T) {
	ts := newTestServer(t)

	status, out := post(t, ts, "/graphs/g", `{"delete":[{}],"insert":{}}`)
	require.Equal(t, http.StatusOK, status)
	errs := out["errors"].([]any)
	require.Len(t, errs, 2)
	require.Equal(t, "Missing required key: id", errs[0].(map[string]any)["msg"])
	require.Equal(t, "insert", errs[1].(map[string]any)["directive"])
}

func TestServer_InvalidBody(t *testing.T) {
	ts := newTestServer(t)

	status, out := post(t, ts, "/graphs/g", `[1, 2`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, out["error"], "invalid request")
}

func TestServer_Stats(t *testing.T) {
	ts := newTestServer(t)
	post(t, ts, "/graphs/a", `{"insert":[{"data":1}]}`)

	resp, err := http.Get(ts.URL + "/graphs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]iris.GraphStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Contains(t, stats, "a")
	require.Equal(t, 1, stats["a"].Nodes)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK", string(body))
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-help"}, nil)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	dir := t.TempDir()
	go func() {
		done <- run(ctx, io.Discard, []string{"-dir", dir, "-addr", "127.0.0.1:0", "-journal"}, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("run exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Post("http://"+addr+"/graphs/default", "application/json", strings.NewReader(`{"insert":[{"data":{"x":1}}]}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
