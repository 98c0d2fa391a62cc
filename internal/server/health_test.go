package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

func getReady(t *testing.T, pingers ...Pinger) (int, readyResponse) {
	t.Helper()

	s := newTestServer()
	s.pingers = pingers

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	s.handleReady(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode ready body: %v", err)
	}
	return w.Code, resp
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestHandleReady_NoPingers(t *testing.T) {
	t.Parallel()

	code, resp := getReady(t)
	if code != http.StatusOK || !resp.Ready {
		t.Errorf("got code=%d ready=%v, want 200/true", code, resp.Ready)
	}
	if len(resp.Checks) != 0 {
		t.Errorf("got %d checks, want none", len(resp.Checks))
	}
}

func TestHandleReady_AllHealthy(t *testing.T) {
	t.Parallel()

	code, resp := getReady(t,
		&fakePinger{name: "store"},
		&fakePinger{name: "embedder"},
	)
	if code != http.StatusOK || !resp.Ready {
		t.Fatalf("got code=%d ready=%v, want 200/true", code, resp.Ready)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("got %d checks, want 2", len(resp.Checks))
	}
	for _, c := range resp.Checks {
		if !c.OK || c.Error != "" {
			t.Errorf("check %q: ok=%v err=%q, want healthy", c.Name, c.OK, c.Error)
		}
	}
}

func TestHandleReady_OneFailing(t *testing.T) {
	t.Parallel()

	code, resp := getReady(t,
		&fakePinger{name: "store"},
		&fakePinger{name: "embedder", err: errors.New("connection refused")},
	)
	if code != http.StatusServiceUnavailable || resp.Ready {
		t.Fatalf("got code=%d ready=%v, want 503/false", code, resp.Ready)
	}

	for _, c := range resp.Checks {
		switch c.Name {
		case "store":
			if !c.OK {
				t.Error("store check should stay healthy")
			}
		case "embedder":
			if c.OK || c.Error == "" {
				t.Errorf("embedder check: ok=%v err=%q, want failure with reason", c.OK, c.Error)
			}
		}
	}
}

func TestHandleReady_AllFailing(t *testing.T) {
	t.Parallel()

	code, resp := getReady(t,
		&fakePinger{name: "store", err: errors.New("timeout")},
		&fakePinger{name: "embedder", err: errors.New("connection refused")},
	)
	if code != http.StatusServiceUnavailable || resp.Ready {
		t.Fatalf("got code=%d ready=%v, want 503/false", code, resp.Ready)
	}
	for _, c := range resp.Checks {
		if c.OK {
			t.Errorf("check %q: want ok=false", c.Name)
		}
	}
}

func TestMultiPinger(t *testing.T) {
	t.Parallel()

	mp := NewMultiPinger(
		&fakePinger{name: "store"},
		&fakePinger{name: "embedder", err: errors.New("down")},
	)
	err := mp.Ping(context.Background())
	if err == nil || err.Error() != "embedder: down" {
		t.Errorf("got %v, want embedder: down", err)
	}

	if err := NewMultiPinger(&fakePinger{name: "store"}).Ping(context.Background()); err != nil {
		t.Errorf("healthy pinger returned %v", err)
	}
}
