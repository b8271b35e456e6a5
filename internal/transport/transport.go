// Package transport owns the live websocket connection for one session:
// dialing, keepalive, inbound frame parsing and the channel-membership
// check. A Transport is single-use; reconnection always goes through a
// fresh instance, never by reviving a closed one.
package transport

import (
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/domain"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/log"
)

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned when Connect is called twice; a
	// Transport never leaves StateClosed once it gets there.
	ErrAlreadyStarted = errors.New("transport already started")
	// ErrClosed is returned when the transport was closed while the
	// handshake was still in flight.
	ErrClosed = errors.New("transport closed")
)

type Config struct {
	URL              string
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	MaxMessageSize   int64
}

// Transport maintains exactly one live connection addressed by the
// channel id. Inbound message frames that pass validation and the
// membership check are handed to onMessage; everything else is dropped.
type Transport struct {
	cfg       Config
	channel   domain.Channel
	onMessage func(domain.Message)

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	done  chan struct{}
}

func New(cfg Config, channel domain.Channel, onMessage func(domain.Message)) *Transport {
	return &Transport{
		cfg:       cfg,
		channel:   channel,
		onMessage: onMessage,
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect performs the handshake and, on success, starts the read loop
// and the keepalive ticker. The keepalive sends a JSON ping frame each
// period while the connection is open.
func (t *Transport) Connect() error {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.state = StateConnecting
	t.mu.Unlock()

	endpoint, err := channelURL(t.cfg.URL, t.channel.ID)
	if err != nil {
		t.moveToClosed()
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		t.moveToClosed()
		return err
	}

	t.mu.Lock()
	if t.state != StateConnecting {
		// Closed while the handshake was in flight; the completion
		// must be a no-op against the superseded session.
		t.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	t.conn = conn
	t.state = StateOpen
	t.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldChannelID, t.channel.ID).Msg("transport open")

	go t.readLoop(conn)
	go t.keepalive(conn)
	return nil
}

// Close moves the transport to StateClosed and cancels the keepalive
// unconditionally. It is safe to call from any state and more than once.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return
	}
	prev := t.state
	t.state = StateClosed
	conn := t.conn
	close(t.done)
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	l := log.L()
	l.Debug().
		Str(log.FieldChannelID, t.channel.ID).
		Str(log.FieldState, prev.String()).
		Msg("transport closed")
}

// moveToClosed marks a failed handshake terminal without touching the
// connection (there is none yet).
func (t *Transport) moveToClosed() {
	t.mu.Lock()
	if t.state != StateClosed {
		t.state = StateClosed
		close(t.done)
	}
	t.mu.Unlock()
}

// fail handles a transport-level error: log, close, no reconnect.
// Reconnection is solely the lifecycle controller's responsibility.
func (t *Transport) fail(err error) {
	t.mu.Lock()
	closed := t.state == StateClosed
	t.mu.Unlock()
	if closed {
		return
	}

	l := log.L()
	l.Error().Err(err).Str(log.FieldChannelID, t.channel.ID).Msg("transport error")
	t.Close()
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	if t.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(t.cfg.MaxMessageSize)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.fail(err)
			return
		}
		t.handleFrame(data)
	}
}

// handleFrame parses one inbound frame. Malformed frames never crash the
// session and never reach the store.
func (t *Transport) handleFrame(data []byte) {
	l := log.L()

	var base domain.BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		l.Warn().Err(err).Str(log.FieldChannelID, t.channel.ID).Msg("discarding malformed frame")
		return
	}

	if base.Type == domain.FrameTypePong {
		// Keepalive acknowledgement, not a message.
		return
	}

	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		l.Warn().Err(err).Str(log.FieldChannelID, t.channel.ID).Msg("discarding undecodable frame")
		return
	}
	if err := msg.Validate(); err != nil {
		l.Warn().Err(err).Str(log.FieldChannelID, t.channel.ID).Msg("discarding incomplete frame")
		return
	}

	if !t.channel.HasPair(msg.SenderID, msg.ReceiverID) {
		// Stale frame from a superseded channel.
		l.Debug().
			Str(log.FieldChannelID, t.channel.ID).
			Str(log.FieldMessageID, msg.ID).
			Msg("dropping frame outside conversation")
		return
	}

	t.onMessage(msg)
}

func (t *Transport) keepalive(conn *websocket.Conn) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	ping, _ := json.Marshal(domain.NewPingFrame())

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				t.fail(err)
				return
			}
		}
	}
}

func channelURL(base, channelID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("channel", channelID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
