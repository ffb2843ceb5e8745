package ws_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/absmach/fedcoord/dispatcher"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/transport/ws"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type event struct {
	name    string
	connID  string
	decoded map[string]any
	err     error
}

type fakeDispatcher struct {
	ackErr       error
	connected    chan dispatcher.Conn
	disconnected chan string
	events       chan event
}

func newFakeDispatcher(ackErr error) *fakeDispatcher {
	return &fakeDispatcher{
		ackErr:       ackErr,
		connected:    make(chan dispatcher.Conn, 4),
		disconnected: make(chan string, 4),
		events:       make(chan event, 8),
	}
}

func (f *fakeDispatcher) Connect(_ context.Context, conn dispatcher.Conn) error {
	f.connected <- conn

	return conn.Send(dispatcher.EventDownload, map[string]any{"modelVersion": 3})
}

func (f *fakeDispatcher) Disconnect(connID string) {
	f.disconnected <- connID
}

func (f *fakeDispatcher) HandleData(_ context.Context, connID string, payload dispatcher.Payload, ack dispatcher.AckFunc) {
	f.handle(dispatcher.EventData, connID, payload, ack)
}

func (f *fakeDispatcher) HandleUpload(_ context.Context, connID string, payload dispatcher.Payload, ack dispatcher.AckFunc) {
	f.handle(dispatcher.EventUpload, connID, payload, ack)
}

func (f *fakeDispatcher) handle(name, connID string, payload dispatcher.Payload, ack dispatcher.AckFunc) {
	ack(f.ackErr)

	decoded := map[string]any{}
	err := payload.Decode(&decoded)
	f.events <- event{name: name, connID: connID, decoded: decoded, err: err}
}

func dial(t *testing.T, d ws.Dispatcher) *websocket.Conn {
	t.Helper()
	h := ws.NewHandler(d, ws.Config{SendBuffer: 8, WriteTimeout: time.Second}, slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c
}

type jsonFrame struct {
	Event   string          `json:"event"`
	ID      any             `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type cborFrame struct {
	Event   string          `cbor:"event"`
	ID      any             `cbor:"id"`
	Payload cbor.RawMessage `cbor:"payload"`
}

type ackReply struct {
	OK    bool   `json:"ok"    cbor:"ok"`
	Error string `json:"error" cbor:"error"`
}

func readJSON(t *testing.T, c *websocket.Conn) jsonFrame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(waitFor)))
	mt, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)

	var f jsonFrame
	require.NoError(t, json.Unmarshal(data, &f))

	return f
}

func readCBOR(t *testing.T, c *websocket.Conn) cborFrame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(waitFor)))
	mt, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, mt)

	var f cborFrame
	require.NoError(t, cbor.Unmarshal(data, &f))

	return f
}

func TestConnectReceivesDownload(t *testing.T) {
	d := newFakeDispatcher(nil)
	c := dial(t, d)

	f := readJSON(t, c)
	assert.Equal(t, dispatcher.EventDownload, f.Event)
	assert.JSONEq(t, `{"modelVersion":3}`, string(f.Payload))

	select {
	case conn := <-d.connected:
		assert.NotEmpty(t, conn.ID())
	case <-time.After(waitFor):
		require.FailNow(t, "connect not called")
	}
}

func TestJSONEventIsAcked(t *testing.T) {
	d := newFakeDispatcher(nil)
	c := dial(t, d)
	readJSON(t, c)

	msg := `{"event":"data","id":7,"payload":{"modelVersion":1,"timestamp":1700000000000}}`
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(msg)))

	f := readJSON(t, c)
	assert.Equal(t, dispatcher.EventAck, f.Event)
	assert.Equal(t, float64(7), f.ID)
	var reply ackReply
	require.NoError(t, json.Unmarshal(f.Payload, &reply))
	assert.True(t, reply.OK)
	assert.Empty(t, reply.Error)

	ev := <-d.events
	assert.Equal(t, dispatcher.EventData, ev.name)
	require.NoError(t, ev.err)
	assert.Equal(t, float64(1), ev.decoded["modelVersion"])
}

func TestCBOREventIsAckedInCBOR(t *testing.T) {
	d := newFakeDispatcher(pkgerrors.ErrQueueFull)
	c := dial(t, d)
	readJSON(t, c)

	data, err := cbor.Marshal(map[string]any{
		"event":   "upload",
		"id":      "u1",
		"payload": map[string]any{"modelVersion": 2, "numExamples": 5},
	})
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, data))

	f := readCBOR(t, c)
	assert.Equal(t, dispatcher.EventAck, f.Event)
	assert.Equal(t, "u1", f.ID)
	var reply ackReply
	require.NoError(t, cbor.Unmarshal(f.Payload, &reply))
	assert.False(t, reply.OK)
	assert.Equal(t, pkgerrors.ErrQueueFull.Error(), reply.Error)

	ev := <-d.events
	assert.Equal(t, dispatcher.EventUpload, ev.name)
	require.NoError(t, ev.err)
	assert.EqualValues(t, 5, ev.decoded["numExamples"])
}

func TestUnknownEventAndMalformedFrame(t *testing.T) {
	cases := []struct {
		desc  string
		frame string
		id    any
	}{
		{desc: "unknown event", frame: `{"event":"train","id":"x"}`, id: "x"},
		{desc: "malformed json", frame: `{"event":`, id: nil},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			c := dial(t, newFakeDispatcher(nil))
			readJSON(t, c)

			require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(tc.frame)))
			f := readJSON(t, c)
			assert.Equal(t, dispatcher.EventAck, f.Event)
			assert.Equal(t, tc.id, f.ID)

			var reply ackReply
			require.NoError(t, json.Unmarshal(f.Payload, &reply))
			assert.False(t, reply.OK)
			assert.NotEmpty(t, reply.Error)
		})
	}
}

func TestCloseDisconnects(t *testing.T) {
	d := newFakeDispatcher(nil)
	c := dial(t, d)
	readJSON(t, c)

	conn := <-d.connected
	require.NoError(t, c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	select {
	case id := <-d.disconnected:
		assert.Equal(t, conn.ID(), id)
	case <-time.After(waitFor):
		require.FailNow(t, "disconnect not called")
	}
}
