package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/zkverify/internal/config"
)

func newTestServer(t *testing.T, p Prover, maxSessions int) (*Server, context.CancelFunc) {
	t.Helper()

	cfg := &config.Config{
		Port:         "0",
		MaxSessions:  maxSessions,
		ProveTimeout: 5 * time.Second,
	}

	srv := New(cfg, p, nil, NewRegistry())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	})

	return srv, cancel
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	return conn
}

func TestServer_SingleSession(t *testing.T) {
	p := &fakeProver{result: successResult()}
	srv, _ := newTestServer(t, p, 4)

	conn := dial(t, srv.Addr())
	defer conn.Close()

	if _, err := io.WriteString(conn, "20\n220\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if !strings.Contains(string(out), "Success: true") {
		t.Errorf("Expected successful response, got:\n%s", out)
	}
}

func TestServer_ConcurrentSessionsIndependent(t *testing.T) {
	p := &fakeProver{result: successResult(), delay: 100 * time.Millisecond}
	srv, _ := newTestServer(t, p, 8)

	results := make(chan string, 3)
	for i := 0; i < 3; i++ {
		go func() {
			conn, err := net.Dial("tcp", srv.Addr())
			if err != nil {
				results <- "dial error: " + err.Error()
				return
			}
			defer conn.Close()
			_, _ = io.WriteString(conn, "20\n220\n")
			out, _ := io.ReadAll(conn)
			results <- string(out)
		}()
	}

	for i := 0; i < 3; i++ {
		select {
		case out := <-results:
			if !strings.Contains(out, "Success: true") {
				t.Errorf("Session %d missing success response:\n%s", i, out)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("concurrent sessions timed out")
		}
	}

	if p.callCount() != 3 {
		t.Errorf("Expected 3 Prove calls, got %d", p.callCount())
	}
}

func TestServer_CapRejectsWithBusyMessage(t *testing.T) {
	p := &fakeProver{result: successResult()}
	srv, _ := newTestServer(t, p, 1)

	// First connection holds the only slot by never sending input.
	holder := dial(t, srv.Addr())
	defer holder.Close()

	// Wait for the holder's session to start (the banner arrives).
	if _, err := bufio.NewReader(holder).ReadString('\n'); err != nil {
		t.Fatalf("holder banner: %v", err)
	}

	rejected := dial(t, srv.Addr())
	defer rejected.Close()

	out, err := io.ReadAll(rejected)
	if err != nil {
		t.Fatalf("read rejected conn: %v", err)
	}

	if string(out) != busyMsg {
		t.Errorf("Expected busy message %q, got %q", busyMsg, string(out))
	}
}

func TestServer_ShutdownStopsAccepting(t *testing.T) {
	p := &fakeProver{result: successResult()}
	srv, cancel := newTestServer(t, p, 4)

	addr := srv.Addr()
	cancel()

	// The listener closes shortly after cancellation.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return
		}
		_ = conn.Close()
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("Expected dial to fail after shutdown")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	c1, c2 := net.Pipe()
	defer c2.Close()

	reg.Register("a", c1)
	if reg.Count() != 1 {
		t.Errorf("Expected 1 active session, got %d", reg.Count())
	}

	reg.Unregister("a")
	if reg.Count() != 0 {
		t.Errorf("Expected 0 active sessions, got %d", reg.Count())
	}

	reg.Register("b", c1)
	reg.CloseAll()
	if reg.Count() != 0 {
		t.Errorf("Expected registry to be empty after CloseAll, got %d", reg.Count())
	}
}
