// Lifecycle tests for the API server: startup and shutdown logging, draining
// of in-flight requests, and the signals main listens for.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"testing"
	"time"
)

// lifecycleServer runs handler on an ephemeral port with the same timeouts
// main configures. stopped closes when Serve returns.
type lifecycleServer struct {
	addr    string
	server  *http.Server
	stopped chan struct{}
}

func startLifecycleServer(t *testing.T, handler http.Handler) *lifecycleServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ls := &lifecycleServer{
		addr: ln.Addr().String(),
		server: &http.Server{
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		stopped: make(chan struct{}),
	}

	go func() {
		if err := ls.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.Errorf("server error: %v", err)
		}
		close(ls.stopped)
	}()

	return ls
}

func (ls *lifecycleServer) shutdown(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ls.server.Shutdown(ctx); err != nil {
		t.Errorf("shutdown error: %v", err)
	}

	select {
	case <-ls.stopped:
	case <-time.After(15 * time.Second):
		t.Fatal("server failed to stop in time")
	}
}

func TestShutdown_LifecycleLogOrder(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	ls := startLifecycleServer(t, mux)
	logger.Info("starting server", "addr", ls.addr)

	resp, err := http.Get("http://" + ls.addr + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()

	logger.Info("shutting down server...")
	ls.shutdown(t)
	logger.Info("server stopped")

	logs := logBuf.String()
	order := []string{"starting server", "shutting down server", "server stopped"}
	last := -1
	for _, msg := range order {
		idx := strings.Index(logs, msg)
		if idx == -1 {
			t.Fatalf("missing %q in lifecycle logs: %s", msg, logs)
		}
		if idx < last {
			t.Errorf("%q logged out of order", msg)
		}
		last = idx
	}
}

// A request already being served must complete before Shutdown returns.
// Export renders can take seconds, so cutting them off mid-flight would
// waste the work.
func TestShutdown_WaitsForActiveExport(t *testing.T) {
	renderStarted := make(chan struct{})
	releaseRender := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/map-areas/1/export", func(w http.ResponseWriter, r *http.Request) {
		close(renderStarted)
		<-releaseRender

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"map_area_id":1}`))
	})

	ls := startLifecycleServer(t, mux)

	type exportResult struct {
		resp *http.Response
		err  error
	}
	results := make(chan exportResult, 1)
	go func() {
		resp, err := http.Post("http://"+ls.addr+"/map-areas/1/export", "application/json", nil)
		results <- exportResult{resp, err}
	}()

	select {
	case <-renderStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("export handler was never reached")
	}

	// Shutdown begins while the export is still rendering
	shutdownDone := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ls.server.Shutdown(ctx); err != nil {
			t.Errorf("shutdown error: %v", err)
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		t.Fatal("shutdown returned while an export was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(releaseRender)

	var got exportResult
	select {
	case got = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("export request never completed")
	}
	select {
	case <-shutdownDone:
	case <-time.After(15 * time.Second):
		t.Fatal("shutdown did not finish after the export drained")
	}

	if got.err != nil {
		t.Fatalf("export request error: %v", got.err)
	}
	defer got.resp.Body.Close()
	if got.resp.StatusCode != http.StatusCreated {
		t.Errorf("expected status 201, got %d", got.resp.StatusCode)
	}
	body, _ := io.ReadAll(got.resp.Body)
	var result map[string]int64
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse export response: %v", err)
	}
	if result["map_area_id"] != 1 {
		t.Errorf("expected map_area_id 1, got %d", result["map_area_id"])
	}
}

func TestShutdown_SignalChannel(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		t.Run(sig.String(), func(t *testing.T) {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			go func() {
				time.Sleep(50 * time.Millisecond)
				_ = syscall.Kill(syscall.Getpid(), sig)
			}()

			select {
			case got := <-quit:
				if got != sig {
					t.Errorf("expected %v, got %v", sig, got)
				}
			case <-time.After(2 * time.Second):
				t.Errorf("did not receive %v in time", sig)
			}
		})
	}
}
