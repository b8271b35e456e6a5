package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/domain"
)

type wsServer struct {
	*httptest.Server
	conns chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()

	upgrader := websocket.Upgrader{}
	s := &wsServer{conns: make(chan *websocket.Conn, 4)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func testConfig(url string) Config {
	return Config{
		URL:              url,
		PingInterval:     time.Hour, // effectively off unless the test shortens it
		HandshakeTimeout: 2 * time.Second,
		WriteWait:        time.Second,
		MaxMessageSize:   4096,
	}
}

var testChannel = domain.Channel{ID: "c1", ParticipantA: "u1", ParticipantB: "u2"}

func TestTransport_DeliversValidFrames(t *testing.T) {
	srv := newWSServer(t)

	received := make(chan domain.Message, 8)
	tr := New(testConfig(srv.wsURL()), testChannel, func(m domain.Message) {
		received <- m
	})
	require.NoError(t, tr.Connect())
	defer tr.Close()
	require.Equal(t, StateOpen, tr.State())

	conn := srv.accept(t)
	defer conn.Close()

	frames := []string{
		`{"id":"m1","senderId":"u2","receiverId":"u1","text":"hello","createdAt":"2024-06-10T09:00:00Z"}`,
		`not json at all`, // malformed: logged and dropped
		`{"type":"pong"}`, // keepalive ack: discarded
		`{"id":"zz","senderId":"u3","receiverId":"u1","text":"stale","createdAt":"2024-06-10T09:01:00Z"}`, // wrong pair
		`{"senderId":"u2","receiverId":"u1","text":"no id","createdAt":"2024-06-10T09:02:00Z"}`,          // incomplete
		`{"id":"m2","senderId":"u1","receiverId":"u2","text":"echo","createdAt":"2024-06-10T09:03:00Z"}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	var got []string
	for len(got) < 2 {
		select {
		case m := <-received:
			got = append(got, m.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, []string{"m1", "m2"}, got)

	// Nothing else slipped through and the session survived the junk.
	select {
	case m := <-received:
		t.Fatalf("unexpected message %q", m.ID)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, StateOpen, tr.State())
}

func TestTransport_KeepaliveLifecycle(t *testing.T) {
	srv := newWSServer(t)

	cfg := testConfig(srv.wsURL())
	cfg.PingInterval = 20 * time.Millisecond

	tr := New(cfg, testChannel, func(domain.Message) {})
	require.NoError(t, tr.Connect())

	conn := srv.accept(t)
	defer conn.Close()

	// Exactly one recurring ping stream: consecutive reads yield ping
	// control frames.
	for i := 0; i < 2; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame domain.BaseFrame
		require.NoError(t, json.Unmarshal(data, &frame))
		assert.Equal(t, domain.FrameTypePing, frame.Type)
	}

	// Closing cancels the keepalive; the server sees the connection
	// drop instead of further pings.
	tr.Close()
	assert.Equal(t, StateClosed, tr.State())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "no frames may arrive after close")
}

func TestTransport_SingleUse(t *testing.T) {
	srv := newWSServer(t)

	tr := New(testConfig(srv.wsURL()), testChannel, func(domain.Message) {})
	require.NoError(t, tr.Connect())
	defer tr.Close()

	assert.ErrorIs(t, tr.Connect(), ErrAlreadyStarted)

	// A closed transport can never be reopened; reconnection requires a
	// new instance.
	tr2 := New(testConfig(srv.wsURL()), testChannel, func(domain.Message) {})
	tr2.Close()
	assert.Equal(t, StateClosed, tr2.State())
	assert.ErrorIs(t, tr2.Connect(), ErrAlreadyStarted)
}

func TestTransport_ServerDropMovesToClosed(t *testing.T) {
	srv := newWSServer(t)

	tr := New(testConfig(srv.wsURL()), testChannel, func(domain.Message) {})
	require.NoError(t, tr.Connect())

	conn := srv.accept(t)
	conn.Close()

	require.Eventually(t, func() bool {
		return tr.State() == StateClosed
	}, 2*time.Second, 10*time.Millisecond)

	// No automatic reconnect: the server sees no new dial.
	select {
	case <-srv.conns:
		t.Fatal("transport reconnected on its own")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestTransport_DialFailure(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1/ws")
	cfg.HandshakeTimeout = 200 * time.Millisecond

	tr := New(cfg, testChannel, func(domain.Message) {})
	assert.Error(t, tr.Connect())
	assert.Equal(t, StateClosed, tr.State())
}

func TestTransport_CloseIdempotent(t *testing.T) {
	srv := newWSServer(t)

	tr := New(testConfig(srv.wsURL()), testChannel, func(domain.Message) {})
	require.NoError(t, tr.Connect())

	tr.Close()
	tr.Close()
	assert.Equal(t, StateClosed, tr.State())
}
