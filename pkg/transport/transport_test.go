package transport

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anil-CAI/vrteleop/pkg/control"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cmds := []control.Command{
		{},
		{Linear: 0.6, Angular: -1.2},
		{Linear: -0.123456789012345, Angular: 0.987654321098765},
		{Linear: 1e-300, Angular: -5e-324},
	}
	for _, cmd := range cmds {
		data, err := Encode(cmd)
		require.NoError(t, err)

		msg, err := Decode(data)
		require.NoError(t, err)
		assert.True(t, msg.IsCmdVel())
		assert.InDelta(t, cmd.Linear, msg.Linear, 1e-9)
		assert.InDelta(t, cmd.Angular, msg.Angular, 1e-9)
		assert.Equal(t, cmd, msg.Command(), "encoding/json round-trips float64 exactly")
	}
}

func TestEncode_WireShape(t *testing.T) {
	data, err := Encode(control.Command{Linear: 0.3, Angular: -0.6})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"cmd_vel","linear":0.3,"angular":-0.6}`, string(data))

	data, err = Encode(control.Stop)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"cmd_vel","linear":0,"angular":0}`, string(data))
}

func TestEncode_RejectsNonFinite(t *testing.T) {
	_, err := Encode(control.Command{Linear: math.NaN()})
	assert.ErrorIs(t, err, ErrNotFinite)
	_, err = Encode(control.Command{Angular: math.Inf(-1)})
	assert.ErrorIs(t, err, ErrNotFinite)
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"pose","linear":1}`))
	require.NoError(t, err)
	assert.False(t, msg.IsCmdVel())

	_, err = Decode([]byte(`{not json`))
	assert.Error(t, err)
}

func TestKeyCommand(t *testing.T) {
	tests := []struct {
		keys Keys
		want control.Command
	}{
		{Keys{}, control.Stop},
		{Keys{Forward: true}, control.Command{Linear: 0.2}},
		{Keys{Back: true, Left: true}, control.Command{Linear: -0.2, Angular: 1}},
		{Keys{Forward: true, Back: true, Right: true}, control.Command{Angular: -1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyCommand(tt.keys), "%+v", tt.keys)
	}
}

// bridgeStub accepts one WebSocket and forwards received text frames.
func bridgeStub(t *testing.T) (*httptest.Server, <-chan []byte, <-chan *websocket.Conn) {
	t.Helper()
	msgs := make(chan []byte, 64)
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- data
		}
	}))
	t.Cleanup(srv.Close)
	return srv, msgs, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_SendWhenOpen(t *testing.T) {
	srv, msgs, _ := bridgeStub(t)

	ws, err := DialWebSocket(context.Background(), WebSocketConfig{URL: wsURL(srv)}, golog.NewTestLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return ws.State() == Open }, 2*time.Second, 5*time.Millisecond)

	sent := []control.Command{{Linear: 0.1, Angular: 0.2}, control.Stop, {Linear: -0.3}}
	for _, cmd := range sent {
		ws.Send(cmd)
	}
	for _, want := range sent {
		select {
		case data := <-msgs:
			msg, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, want, msg.Command())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for command")
		}
	}
	assert.Equal(t, Stats{Sent: 3}, ws.Stats())
}

func TestWebSocket_DropsWhenNotOpen(t *testing.T) {
	// Nothing listens on this port; the dial fails and the state goes to Closed.
	ws, err := DialWebSocket(context.Background(), WebSocketConfig{
		URL:              "ws://127.0.0.1:1/",
		HandshakeTimeout: 200 * time.Millisecond,
	}, golog.NewTestLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	ws.Send(control.Command{Linear: 0.5})
	require.Eventually(t, func() bool { return ws.State() == Closed }, 2*time.Second, 5*time.Millisecond)
	ws.Send(control.Command{Linear: 0.5})

	assert.Equal(t, uint64(0), ws.Stats().Sent)
	assert.Equal(t, uint64(2), ws.Stats().Dropped)
}

func TestWebSocket_PeerCloseStopsSending(t *testing.T) {
	srv, _, conns := bridgeStub(t)

	ws, err := DialWebSocket(context.Background(), WebSocketConfig{URL: wsURL(srv)}, golog.NewTestLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	peer := <-conns
	require.Eventually(t, func() bool { return ws.State() == Open }, 2*time.Second, 5*time.Millisecond)
	peer.Close()

	require.Eventually(t, func() bool { return ws.State() == Closed }, 2*time.Second, 5*time.Millisecond)
	ws.Send(control.Command{Angular: 1})
	assert.Equal(t, uint64(1), ws.Stats().Dropped)
}

func TestWebSocket_Reconnects(t *testing.T) {
	srv, msgs, conns := bridgeStub(t)

	ws, err := DialWebSocket(context.Background(), WebSocketConfig{
		URL:          wsURL(srv),
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 40 * time.Millisecond,
	}, golog.NewTestLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	(<-conns).Close()
	<-conns // second connection

	require.Eventually(t, func() bool {
		if ws.State() != Open {
			return false
		}
		ws.Send(control.Command{Linear: 0.4})
		return true
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case data := <-msgs:
		msg, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, 0.4, msg.Linear)
	case <-time.After(2 * time.Second):
		t.Fatal("no command after reconnect")
	}
}

func TestDialWebSocket_BadURL(t *testing.T) {
	_, err := DialWebSocket(context.Background(), WebSocketConfig{URL: "http://bridge:8765"}, nil)
	assert.Error(t, err)
}

func TestDialMQTT_RequiresBroker(t *testing.T) {
	_, err := DialMQTT(MQTTConfig{}, nil)
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	var s Sender = Discard{}
	s.Send(control.Command{Linear: 1})
	assert.Equal(t, Closed, s.State())
	assert.NoError(t, s.Close())
}
