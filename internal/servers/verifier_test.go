package servers

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// handshakeEndpoint spins up a websocket endpoint that captures the
// client's challenge and answers with reply after delay. A nil reply
// leaves the client waiting.
func handshakeEndpoint(t *testing.T, delay time.Duration, reply []byte) (addr string, challenge *string) {
	t.Helper()

	var got string
	challenge = &got
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got = string(msg)

		if reply == nil {
			// Hold the connection open until the client gives up.
			time.Sleep(delay)
			return
		}
		time.Sleep(delay)
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), challenge
}

// TestProve_Success verifies the full handshake: the verifier sends
// "Accept:" plus the hex SHA-1 of the code, and a delayed-but-in-time
// "OK" reply succeeds.
func TestProve_Success(t *testing.T) {
	addr, challenge := handshakeEndpoint(t, 100*time.Millisecond, []byte("OK"))

	v := NewVerifier()
	if err := v.Prove(context.Background(), addr, "abc123"); err != nil {
		t.Fatalf("expected handshake to succeed, got %v", err)
	}

	digest := sha1.Sum([]byte("abc123"))
	want := "Accept:" + hex.EncodeToString(digest[:])
	if *challenge != want {
		t.Errorf("challenge mismatch:\n got %q\nwant %q", *challenge, want)
	}
}

// TestProve_WrongReply verifies any payload other than the exact "OK"
// sentinel fails with the same generic error.
func TestProve_WrongReply(t *testing.T) {
	for _, reply := range []string{"ok", "OK ", "NO", ""} {
		addr, _ := handshakeEndpoint(t, 0, []byte(reply))

		v := NewVerifier()
		err := v.Prove(context.Background(), addr, "abc123")
		if !errors.Is(err, ErrVerifyFailed) {
			t.Errorf("reply %q: expected ErrVerifyFailed, got %v", reply, err)
		}
	}
}

// TestProve_Timeout verifies a reply arriving after the deadline counts
// as a failure, indistinguishable from the other failure modes.
func TestProve_Timeout(t *testing.T) {
	addr, _ := handshakeEndpoint(t, 500*time.Millisecond, []byte("OK"))

	v := NewVerifier()
	v.timeout = 150 * time.Millisecond

	start := time.Now()
	err := v.Prove(context.Background(), addr, "abc123")
	if !errors.Is(err, ErrVerifyFailed) {
		t.Fatalf("expected ErrVerifyFailed on timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("verifier waited past its deadline: %v", elapsed)
	}
}

// TestProve_Silence verifies an endpoint that never answers fails at the
// deadline rather than hanging.
func TestProve_Silence(t *testing.T) {
	addr, _ := handshakeEndpoint(t, time.Second, nil)

	v := NewVerifier()
	v.timeout = 150 * time.Millisecond

	if err := v.Prove(context.Background(), addr, "abc123"); !errors.Is(err, ErrVerifyFailed) {
		t.Errorf("expected ErrVerifyFailed, got %v", err)
	}
}

// TestProve_DialFailure verifies an unreachable address yields the same
// generic failure without leaking transport details.
func TestProve_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	v := NewVerifier()
	if err := v.Prove(context.Background(), addr, "abc123"); !errors.Is(err, ErrVerifyFailed) {
		t.Errorf("expected ErrVerifyFailed, got %v", err)
	}
}
