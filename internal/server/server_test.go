package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gestosongs/internal/app"
	"github.com/ayusman/gestosongs/internal/clock"
	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/gesture"
	"github.com/ayusman/gestosongs/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestServer_Health(t *testing.T) {
	s := New(Config{Logger: quiet})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		for _, field := range []string{"uptime", "clients", "viewers"} {
			if _, exists := response[field]; !exists {
				t.Errorf("expected %q field in response", field)
			}
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{Logger: quiet})

	for _, path := range []string{"/api/nonexistent", "/api/state", "/api/sessions", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d without its collaborator, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir, Logger: quiet})

	t.Run("serves index.html at root path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != cssContent {
			t.Errorf("expected body %q, got %q", cssContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func newGame(t *testing.T) *app.App {
	t.Helper()
	a := app.New(app.Config{
		Settings: app.Settings{
			Gestures: gesture.Config{
				gesture.Left: {detector.IndexTip: {Sound: "c4.wav", Note: "C4"}},
			},
		},
		Clock:  clock.NewManual(time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)),
		Logger: quiet,
	})
	t.Cleanup(func() { a.Close() })
	return a
}

func TestServer_GameRoutes(t *testing.T) {
	game := newGame(t)
	game.Step(nil, 1280, 720)
	ts := httptest.NewServer(New(Config{Game: game, Logger: quiet}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	var state struct {
		Tick      uint64 `json:"tick"`
		Challenge struct {
			Note string `json:"note"`
		} `json:"challenge"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	resp.Body.Close()
	assert.Equal(t, uint64(1), state.Tick)
	assert.Equal(t, "C4", state.Challenge.Note)

	resp, err = http.Post(ts.URL+"/api/mode", "application/json", strings.NewReader(`{"mode":"free"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	snap := game.Step(nil, 1280, 720)
	assert.Equal(t, app.ModeFree, snap.Mode)
	assert.Nil(t, snap.Challenge)

	resp, err = http.Get(ts.URL + "/api/bindings")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `"note":"C4"`)
}

func TestServer_Sessions(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Sessions().Create(&store.Session{ID: "s-1", Mode: "challenge"}))

	s := New(Config{Store: st, Logger: quiet})

	for _, path := range []string{"/api/sessions", "/api/sessions/s-1", "/api/sessions/s-1/attempts"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	app.NewMetrics(reg)
	s := New(Config{Gatherer: reg, Logger: quiet})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gestosongs_ticks_total")
}

func TestLiveHandler(t *testing.T) {
	s := New(Config{Logger: quiet})
	ts := httptest.NewServer(s)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Live().Clients() == 1 }, time.Second, 5*time.Millisecond)

	s.Live().Render(app.Snapshot{Tick: 7, Mode: app.ModeFree})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got app.Snapshot
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, uint64(7), got.Tick)
	assert.Equal(t, app.ModeFree, got.Mode)

	conn.Close()
	require.Eventually(t, func() bool { return s.Live().Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLiveClient_KeepsOnlyNewest(t *testing.T) {
	c := &liveClient{send: make(chan []byte, 1)}
	c.offer([]byte("1"))
	c.offer([]byte("2"))
	c.offer([]byte("3"))

	assert.Equal(t, []byte("3"), <-c.send)
	assert.Empty(t, c.send)
}

func TestStreamHandler(t *testing.T) {
	s := New(Config{Logger: quiet})
	ts := httptest.NewServer(s)
	defer ts.Close()

	assert.False(t, s.Stream().Watching())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))

	require.Eventually(t, s.Stream().Watching, time.Second, 5*time.Millisecond)
	s.Stream().PublishFrame([]byte("JPEGDATA"))

	r := bufio.NewReader(resp.Body)
	var part bytes.Buffer
	for !strings.Contains(part.String(), "JPEGDATA") {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		part.WriteString(line)
	}
	assert.Contains(t, part.String(), "--frame")
	assert.Contains(t, part.String(), "Content-Length: 8")

	cancel()
	require.Eventually(t, func() bool { return !s.Stream().Watching() }, time.Second, 5*time.Millisecond)
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStreamHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ListenAndServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	s := New(Config{Logger: quiet})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
