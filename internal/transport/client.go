package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"wordmaster-live/internal/auth"
	"wordmaster-live/internal/stomp"
)

var (
	ErrNotConnected = errors.New("not_connected")
	ErrClosed       = errors.New("transport_closed")
	errRejected     = errors.New("connect_rejected")
)

// Handler receives the body of each MESSAGE frame for a topic. It runs on the
// read goroutine and must not block.
type Handler func(body []byte)

type Config struct {
	URL            string
	Credentials    auth.Resolver
	ReconnectDelay time.Duration
	WriteTimeout   time.Duration
	Dialer         *websocket.Dialer

	// OnWarning is called once per outage when the server rejects the handshake.
	OnWarning func(text string)
	// OnConnected is called after every successful (re)connect.
	OnConnected func()
}

type subscription struct {
	id      string
	topic   string
	handler Handler
}

type Client struct {
	cfg Config

	mu        sync.Mutex
	subs      map[string]*subscription
	byID      map[string]*subscription
	nextSubID int
	conn      *websocket.Conn
	warned    bool
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool

	writeMu sync.Mutex
}

func New(cfg Config) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Credentials == nil {
		cfg.Credentials = auth.Anonymous{}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Client{
		cfg:  cfg,
		subs: map[string]*subscription{},
		byID: map[string]*subscription{},
	}
}

// Connect starts the connection loop and returns immediately. Dial failures
// and drops are retried every ReconnectDelay until Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Subscribe registers handler for topic. A topic has at most one subscription;
// subscribing again swaps the handler without a second SUBSCRIBE frame.
func (c *Client) Subscribe(topic string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[topic]
	if ok {
		sub.handler = handler
		return c.unsubscribeFunc(sub)
	}
	c.nextSubID++
	sub = &subscription{id: "sub-" + strconv.Itoa(c.nextSubID), topic: topic, handler: handler}
	c.subs[topic] = sub
	c.byID[sub.id] = sub
	if c.conn != nil {
		if err := c.writeFrame(c.conn, subscribeFrame(sub)); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("subscribe_failed")
		}
	}
	return c.unsubscribeFunc(sub)
}

func (c *Client) unsubscribeFunc(sub *subscription) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.subs[sub.topic] != sub {
				return
			}
			delete(c.subs, sub.topic)
			delete(c.byID, sub.id)
			if c.conn != nil {
				_ = c.writeFrame(c.conn, stomp.New(stomp.CmdUnsubscribe, "id", sub.id))
			}
		})
	}
}

// Publish sends payload as JSON to destination. It fails fast while the
// connection is down; callers decide whether to retry.
func (c *Client) Publish(destination string, payload any) error {
	var body []byte
	switch v := payload.(type) {
	case []byte:
		body = v
	case string:
		body = []byte(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		body = raw
	}
	c.mu.Lock()
	conn, closed := c.conn, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}
	f := stomp.New(stomp.CmdSend, "destination", destination, "content-type", "application/json")
	f.Body = body
	if err := c.writeFrame(conn, f); err != nil {
		return err
	}
	framesSent.Inc()
	return nil
}

// Disconnect tears the connection down and stops reconnecting. Subscriptions
// are dropped.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel, done, conn := c.cancel, c.done, c.conn
	c.subs = map[string]*subscription{}
	c.byID = map[string]*subscription{}
	c.mu.Unlock()

	if conn != nil {
		_ = c.writeFrame(conn, stomp.New(stomp.CmdDisconnect))
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for attempt := 0; ; attempt++ {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		reconnects.Inc()
		log.Info().Err(err).Int("attempt", attempt+1).Dur("delay", c.cfg.ReconnectDelay).Msg("transport_reconnecting")
		t := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	credential, err := c.cfg.Credentials.Credential(ctx)
	if err != nil {
		return err
	}
	endpoint, err := withToken(c.cfg.URL, credential)
	if err != nil {
		return err
	}
	header := http.Header{}
	if h := auth.BearerHeader(credential); h != "" {
		header.Set("Authorization", h)
	}
	conn, _, err := c.cfg.Dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	if err := c.handshake(conn, credential); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.conn = conn
	c.warned = false
	for _, sub := range c.subs {
		if err := c.writeFrame(conn, subscribeFrame(sub)); err != nil {
			c.conn = nil
			c.mu.Unlock()
			return err
		}
	}
	onConnected := c.cfg.OnConnected
	c.mu.Unlock()

	connects.Inc()
	log.Info().Str("url", c.cfg.URL).Msg("transport_connected")
	if onConnected != nil {
		onConnected()
	}

	err = c.readLoop(conn)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	return err
}

func (c *Client) handshake(conn *websocket.Conn, credential string) error {
	host := ""
	if u, err := url.Parse(c.cfg.URL); err == nil {
		host = u.Hostname()
	}
	f := stomp.New(stomp.CmdConnect, "accept-version", "1.2", "host", host, "heart-beat", "0,0")
	if h := auth.BearerHeader(credential); h != "" {
		f.Set("Authorization", h)
	}
	if err := c.writeFrame(conn, f); err != nil {
		return err
	}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		reply, err := stomp.Decode(raw)
		if errors.Is(err, stomp.ErrEmptyFrame) {
			continue
		}
		if err != nil {
			return err
		}
		switch reply.Command {
		case stomp.CmdConnected:
			return nil
		case stomp.CmdError:
			c.warnOnce(reply)
			return errRejected
		default:
			return errRejected
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f, err := stomp.Decode(raw)
		if errors.Is(err, stomp.ErrEmptyFrame) {
			continue
		}
		if err != nil {
			log.Debug().Err(err).Msg("transport_bad_frame")
			continue
		}
		framesReceived.WithLabelValues(f.Command).Inc()
		switch f.Command {
		case stomp.CmdMessage:
			if h := c.handlerFor(f); h != nil {
				h(f.Body)
			}
		case stomp.CmdError:
			c.warnOnce(f)
			return errRejected
		}
	}
}

func (c *Client) handlerFor(f stomp.Frame) Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.byID[f.Get("subscription")]; ok {
		return sub.handler
	}
	if sub, ok := c.subs[f.Get("destination")]; ok {
		return sub.handler
	}
	return nil
}

func (c *Client) warnOnce(f stomp.Frame) {
	text := f.Get("message")
	if text == "" {
		text = string(f.Body)
	}
	if text == "" {
		text = "connection rejected by server"
	}
	c.mu.Lock()
	already := c.warned
	c.warned = true
	onWarning := c.cfg.OnWarning
	c.mu.Unlock()

	log.Warn().Str("reason", text).Msg("transport_rejected")
	if !already && onWarning != nil {
		onWarning(text)
	}
}

func (c *Client) writeFrame(conn *websocket.Conn, f stomp.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, stomp.Encode(f))
}

func subscribeFrame(sub *subscription) stomp.Frame {
	return stomp.New(stomp.CmdSubscribe, "id", sub.id, "destination", sub.topic, "ack", "auto")
}

// withToken mirrors the bearer credential into the query string for servers
// that authenticate the upgrade request before STOMP CONNECT.
func withToken(raw, credential string) (string, error) {
	if credential == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
