package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wordmaster-live/internal/auth"
	"wordmaster-live/internal/stomp"
)

type brokerConn struct {
	conn   *websocket.Conn
	frames chan stomp.Frame
	auth   string
}

func (b *brokerConn) send(f stomp.Frame) error {
	return b.conn.WriteMessage(websocket.TextMessage, stomp.Encode(f))
}

type fakeBroker struct {
	upgrader websocket.Upgrader
	conns    chan *brokerConn
	reject   atomic.Bool
	dials    atomic.Int32
}

func newFakeBroker(t *testing.T) (*fakeBroker, string) {
	t.Helper()
	b := &fakeBroker{conns: make(chan *brokerConn, 8)}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/websocket"
}

func (b *fakeBroker) serve(w http.ResponseWriter, r *http.Request) {
	b.dials.Add(1)
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	connect, err := stomp.Decode(raw)
	if err != nil || connect.Command != stomp.CmdConnect {
		return
	}
	bc := &brokerConn{conn: conn, frames: make(chan stomp.Frame, 32), auth: connect.Get("Authorization")}
	if b.reject.Load() {
		_ = bc.send(stomp.New(stomp.CmdError, "message", "invalid token"))
		return
	}
	if err := bc.send(stomp.New(stomp.CmdConnected, "version", "1.2")); err != nil {
		return
	}
	b.conns <- bc
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			close(bc.frames)
			return
		}
		f, err := stomp.Decode(raw)
		if err != nil {
			continue
		}
		bc.frames <- f
	}
}

func (b *fakeBroker) nextConn(t *testing.T) *brokerConn {
	t.Helper()
	select {
	case bc := <-b.conns:
		return bc
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

func expectFrame(t *testing.T, bc *brokerConn, command string) stomp.Frame {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case f, ok := <-bc.frames:
			if !ok {
				t.Fatalf("connection closed while waiting for %s", command)
			}
			if f.Command == command {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", command)
		}
	}
}

func newTestClient(url string, cfg Config) *Client {
	cfg.URL = url
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 20 * time.Millisecond
	}
	return New(cfg)
}

func TestSubscribeReceivesMessages(t *testing.T) {
	broker, url := newFakeBroker(t)
	c := newTestClient(url, Config{Credentials: auth.Static("tok-1")})
	defer c.Disconnect()

	got := make(chan string, 1)
	c.Subscribe("/topic/game/42/turn", func(body []byte) { got <- string(body) })
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	bc := broker.nextConn(t)
	if bc.auth != "Bearer tok-1" {
		t.Fatalf("CONNECT Authorization = %q, want Bearer tok-1", bc.auth)
	}
	sub := expectFrame(t, bc, stomp.CmdSubscribe)
	if sub.Get("destination") != "/topic/game/42/turn" {
		t.Fatalf("destination = %q", sub.Get("destination"))
	}
	msg := stomp.New(stomp.CmdMessage, "subscription", sub.Get("id"), "destination", "/topic/game/42/turn")
	msg.Body = []byte(`{"turnNumber":4}`)
	if err := bc.send(msg); err != nil {
		t.Fatalf("send MESSAGE: %v", err)
	}
	select {
	case body := <-got:
		if body != `{"turnNumber":4}` {
			t.Fatalf("body = %q", body)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestResubscribesAfterReconnect(t *testing.T) {
	broker, url := newFakeBroker(t)
	c := newTestClient(url, Config{})
	defer c.Disconnect()

	c.Subscribe("/topic/game/42/chat", func([]byte) {})
	c.Subscribe("/topic/game/42/timer", func([]byte) {})
	_ = c.Connect(context.Background())

	first := broker.nextConn(t)
	expectFrame(t, first, stomp.CmdSubscribe)
	expectFrame(t, first, stomp.CmdSubscribe)
	_ = first.conn.Close()

	second := broker.nextConn(t)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[expectFrame(t, second, stomp.CmdSubscribe).Get("destination")] = true
	}
	if !seen["/topic/game/42/chat"] || !seen["/topic/game/42/timer"] {
		t.Fatalf("resubscribed topics = %v", seen)
	}
}

func TestDuplicateSubscribeSendsOneFrame(t *testing.T) {
	broker, url := newFakeBroker(t)
	c := newTestClient(url, Config{})
	defer c.Disconnect()
	_ = c.Connect(context.Background())
	bc := broker.nextConn(t)

	var calls atomic.Int32
	c.Subscribe("/topic/game/42/scores", func([]byte) { calls.Add(100) })
	c.Subscribe("/topic/game/42/scores", func([]byte) { calls.Add(1) })
	sub := expectFrame(t, bc, stomp.CmdSubscribe)

	msg := stomp.New(stomp.CmdMessage, "subscription", sub.Get("id"), "destination", "/topic/game/42/scores")
	_ = bc.send(msg)
	_ = bc.send(stomp.New(stomp.CmdReceipt, "receipt-id", "sync"))

	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want exactly one delivery to the latest handler", calls.Load())
	}
	select {
	case f := <-bc.frames:
		if f.Command == stomp.CmdSubscribe {
			t.Fatal("second SUBSCRIBE frame sent for the same topic")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish(t *testing.T) {
	broker, url := newFakeBroker(t)
	c := newTestClient(url, Config{})
	defer c.Disconnect()

	if err := c.Publish("/app/game/42/word", map[string]string{"word": "x"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Publish() before connect err = %v, want ErrNotConnected", err)
	}
	_ = c.Connect(context.Background())
	bc := broker.nextConn(t)
	for !c.Connected() {
		time.Sleep(5 * time.Millisecond)
	}
	if err := c.Publish("/app/game/42/word", map[string]string{"word": "hello"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	f := expectFrame(t, bc, stomp.CmdSend)
	if f.Get("destination") != "/app/game/42/word" || string(f.Body) != `{"word":"hello"}` {
		t.Fatalf("unexpected SEND: %+v body=%s", f.Headers, f.Body)
	}
}

func TestRejectedHandshakeWarnsOnce(t *testing.T) {
	broker, url := newFakeBroker(t)
	broker.reject.Store(true)

	var warnings atomic.Int32
	c := newTestClient(url, Config{OnWarning: func(string) { warnings.Add(1) }})
	_ = c.Connect(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for broker.dials.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Disconnect()
	if broker.dials.Load() < 3 {
		t.Fatalf("dials = %d, want retries after rejection", broker.dials.Load())
	}
	if warnings.Load() != 1 {
		t.Fatalf("warnings = %d, want 1", warnings.Load())
	}
}

func TestMissingCredentialDelaysDial(t *testing.T) {
	broker, url := newFakeBroker(t)
	var ready atomic.Bool
	creds := auth.ResolverFunc(func(context.Context) (string, error) {
		if !ready.Load() {
			return "", auth.ErrNoCredential
		}
		return "late-token", nil
	})
	c := newTestClient(url, Config{Credentials: creds})
	defer c.Disconnect()
	_ = c.Connect(context.Background())

	time.Sleep(60 * time.Millisecond)
	if broker.dials.Load() != 0 {
		t.Fatalf("dials = %d before credential was available", broker.dials.Load())
	}
	ready.Store(true)
	bc := broker.nextConn(t)
	if bc.auth != "Bearer late-token" {
		t.Fatalf("Authorization = %q", bc.auth)
	}
}

func TestDisconnectStopsReconnecting(t *testing.T) {
	broker, url := newFakeBroker(t)
	c := newTestClient(url, Config{})
	_ = c.Connect(context.Background())
	broker.nextConn(t)
	c.Disconnect()

	dials := broker.dials.Load()
	time.Sleep(100 * time.Millisecond)
	if broker.dials.Load() != dials {
		t.Fatal("client kept dialing after Disconnect")
	}
	if err := c.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Connect() after Disconnect err = %v, want ErrClosed", err)
	}
}
