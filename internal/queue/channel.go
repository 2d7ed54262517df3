package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/gorilla/websocket"
)

// Inbound envelope types.
const (
	EventQueueUpdated = "queue_updated"
	EventTrackAdded   = "track_added"
	EventTrackVoted   = "track_voted"
	EventTrackChanged = "track_changed"
	EventError        = "error"

	// EventSubscribed is generated locally after every successful dial.
	EventSubscribed = "subscribed"
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// Envelope is one push frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscribed is the payload of an [EventSubscribed] envelope.
type Subscribed struct {
	HiveID    string `json:"hiveId"`
	Reconnect bool   `json:"reconnect"`
}

// Handler receives envelopes on the channel's read goroutine.
type Handler func(Envelope)

// ChannelOptions configures a [Channel].
type ChannelOptions struct {
	// URL is the music service host, e.g. ws://127.0.0.1:8084. http(s) schemes are rewritten.
	URL        string
	Header     http.Header
	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *log.Logger
}

// Channel is a reconnecting push subscription scoped to one hive at a time.
type Channel struct {
	opts   ChannelOptions
	dialer *websocket.Dialer
	logger *log.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	hiveID    string
	connected bool
}

func NewChannel(opts ChannelOptions) *Channel {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(defaultMaxBackoff, opts.MinBackoff)
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Channel{
		opts:   opts,
		dialer: dialer,
		logger: shared.WithLogger(opts.Logger, "component", "channel"),
	}
}

// ChannelURL builds the subscription URL for hiveID on base.
func ChannelURL(base, hiveID string) (string, error) {
	if hiveID == "" {
		return "", fmt.Errorf("%w: hive id", shared.ErrMissingArgument)
	}
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: websocket url %q", shared.ErrInvalidConfig, base)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: websocket scheme %q", shared.ErrInvalidConfig, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/music"
	u.RawQuery = url.Values{"hiveId": {hiveID}}.Encode()
	return u.String(), nil
}

// HiveID returns the hive of the live subscription, or "".
func (c *Channel) HiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hiveID
}

// Connected reports whether a socket is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribe tears down any live subscription, waits for it to finish, then starts one for hiveID.
// It returns once the read loop is started; the first dial happens in the background.
func (c *Channel) Subscribe(hiveID string, handler Handler) error {
	target, err := ChannelURL(c.opts.URL, hiveID)
	if err != nil {
		return err
	}
	c.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel, c.done, c.hiveID = cancel, done, hiveID
	c.mu.Unlock()

	go c.run(ctx, target, hiveID, handler, done)
	return nil
}

// Unsubscribe closes the live subscription and blocks until its read loop has exited.
func (c *Channel) Unsubscribe() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done, c.hiveID = nil, nil, ""
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close is [Channel.Unsubscribe].
func (c *Channel) Close() error {
	c.Unsubscribe()
	return nil
}

func (c *Channel) run(ctx context.Context, target, hiveID string, handler Handler, done chan<- struct{}) {
	defer close(done)
	logger := c.logger.With("hive", hiveID)

	backoff := c.opts.MinBackoff
	reconnect := false
	for {
		conn, _, err := c.dialer.DialContext(ctx, target, c.opts.Header)
		if err == nil {
			backoff = c.opts.MinBackoff
			logger.Info("subscribed", "reconnect", reconnect)
			payload, _ := json.Marshal(Subscribed{HiveID: hiveID, Reconnect: reconnect})
			c.deliver(handler, Envelope{Type: EventSubscribed, Payload: payload})

			err = c.read(ctx, conn, handler)
			reconnect = true
		}
		if ctx.Err() != nil {
			return
		}

		logger.Warn("push channel down, retrying", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.opts.MaxBackoff)
	}
}

func (c *Channel) read(ctx context.Context, conn *websocket.Conn, handler Handler) error {
	c.setConnected(true)
	defer c.setConnected(false)

	stop := context.AfterFunc(ctx, func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "unsubscribe")
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
	})
	defer func() {
		if stop() {
			_ = conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrChannelDown, err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.logger.Debug("dropping malformed frame", "size", len(data))
			continue
		}
		c.deliver(handler, env)
	}
}

func (c *Channel) deliver(handler Handler, env Envelope) {
	defer shared.Recover(c.logger, "channel handler", nil)
	handler(env)
}

func (c *Channel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
