package api

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"

	"github.com/jonwraymond/todoauth/events"
	"github.com/jonwraymond/todoauth/health"
	"github.com/jonwraymond/todoauth/resilience"
	"github.com/jonwraymond/todoauth/todo"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startServer(t *testing.T, h http.Handler) (addr string, stop func() error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	s := NewServer(ServerConfig{Name: "test", ShutdownTimeout: time.Second}, h, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()
	return ln.Addr().String(), func() error {
		cancel()
		return <-errc
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr, stop := startServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))

	client := &http.Client{Transport: &http.Transport{}}
	resp, err := client.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	client.CloseIdleConnections()
	if string(body) != "pong" {
		t.Errorf("body = %q", body)
	}

	if err := stop(); err != nil {
		t.Errorf("Serve() error = %v", err)
	}
}

func TestServer_ShutdownEndsStreams(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	addr, stop := startServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))

	client := &http.Client{Transport: &http.Transport{}}
	defer client.CloseIdleConnections()
	go func() {
		resp, err := client.Get("http://" + addr + "/stream")
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
	}()
	<-started

	done := make(chan error, 1)
	go func() { done <- stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown blocked on an open stream")
	}
}

func TestServer_ListenError(t *testing.T) {
	s := NewServer(ServerConfig{Name: "bad", Addr: "256.0.0.1:-1"}, http.NotFoundHandler(), nil)
	if err := s.ListenAndServe(context.Background()); err == nil {
		t.Fatal("ListenAndServe() should fail on an invalid address")
	}
}

func TestTodoEvents(t *testing.T) {
	leaks := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leaks) })

	env := newTestEnv(t, resilience.RateLimiterConfig{})
	srv := httptest.NewServer(env.api)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/todos/events", nil)
	req.Header.Set("Authorization", "Bearer "+env.user)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	waitFor(t, func() bool { return env.broker.Subscribers(events.TopicTodoCreated) == 1 })

	env.do(t, http.MethodPost, "/api/todos", env.other, todo.CreateRequest{Description: "not yours"})
	created := decode[todo.Todo](t, env.do(t, http.MethodPost, "/api/todos", env.user, todo.CreateRequest{Description: "yours"}))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "data: ") {
				lines <- sc.Text()
			}
		}
	}()

	select {
	case line := <-lines:
		if !strings.Contains(line, created.ID) {
			t.Errorf("first event = %q, want todo %s", line, created.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	for range lines {
	}
	waitFor(t, func() bool { return env.broker.Subscribers(events.TopicTodoCreated) == 0 })
}

func TestOpsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	agg := health.NewAggregator(health.AggregatorConfig{Registerer: reg})
	agg.Register(health.NewPingChecker("events", events.NewMemory(0), 0))
	h := NewOpsHandler(agg, reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/readyz Code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics Code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `todoauth_health_status{check="events"} 0`) {
		t.Errorf("/metrics missing health gauge:\n%s", rec.Body.String())
	}
}
