package rcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatsReturnsParsedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/core/stats" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Stats{
			Bytes:      1024,
			Speed:      512,
			Checking:   []string{"a.mkv"},
			TotalBytes: 2048,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	stats, ok := c.Stats(context.Background())
	if !ok {
		t.Fatal("expected Stats to succeed")
	}
	if stats.Bytes != 1024 || stats.TotalBytes != 2048 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.Checking) != 1 || stats.Checking[0] != "a.mkv" {
		t.Errorf("unexpected checking list: %+v", stats.Checking)
	}
}

func TestStatsFallsBackToUnknownOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok := c.Stats(ctx)
	if ok {
		t.Fatal("expected Stats to report failure rather than propagate an error")
	}
}

func TestStatsUnreachableHostFallsBackToUnknown(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok := c.Stats(ctx)
	if ok {
		t.Fatal("expected unreachable host to fall back to unknown")
	}
}

func TestNoopSucceedsAgainstLiveServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rc/noop" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	if !c.Noop(context.Background()) {
		t.Fatal("expected noop to succeed against a live server")
	}
}

func TestNoopFailsAgainstDeadServer(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "")
	if c.Noop(context.Background()) {
		t.Fatal("expected noop to fail against an unreachable server")
	}
}

func TestWaitUntilReachableSucceedsOnceServerComesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	if !c.WaitUntilReachable(context.Background(), 2*time.Second) {
		t.Fatal("expected server to be detected as reachable")
	}
}

func TestWaitUntilReachableTimesOut(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "")
	start := time.Now()
	if c.WaitUntilReachable(context.Background(), 300*time.Millisecond) {
		t.Fatal("expected unreachable server to time out")
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Errorf("expected to wait close to the deadline, elapsed %v", elapsed)
	}
}

func TestBasicAuthIsSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "op" || pass != "secret" {
			t.Errorf("expected basic auth op/secret, got %s/%s ok=%v", user, pass, ok)
		}
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := New(srv.URL, "op", "secret")
	if !c.Noop(context.Background()) {
		t.Fatal("expected authenticated noop to succeed")
	}
}
