package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/fedcoord/dispatcher"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full, frame dropped")
)

type conn struct {
	id     string
	remote string
	ws     *websocket.Conn
	cfg    Config
	logger *slog.Logger

	send chan frame

	// download holds at most one pending model; a newer one replaces it.
	download chan frame
	done     chan struct{}
	once     sync.Once

	// binary is set while the client speaks CBOR.
	binary atomic.Bool
}

func newConn(id string, ws *websocket.Conn, cfg Config, logger *slog.Logger) *conn {
	return &conn{
		id:       id,
		remote:   ws.RemoteAddr().String(),
		ws:       ws,
		cfg:      cfg,
		logger:   logger.With(slog.String("session_id", id)),
		send:     make(chan frame, cfg.SendBuffer),
		download: make(chan frame, 1),
		done:     make(chan struct{}),
	}
}

func (c *conn) ID() string {
	return c.id
}

func (c *conn) RemoteAddr() string {
	return c.remote
}

// Send queues a frame without blocking. A download replaces any download not
// yet written; other events are dropped when the buffer is full.
func (c *conn) Send(event string, payload any) error {
	f := frame{Event: event, Payload: payload}
	if event == dispatcher.EventDownload {
		return c.replaceDownload(f)
	}

	return c.enqueue(f)
}

// Close stops the connection. The write pump sends a close frame and releases the socket.
func (c *conn) Close() error {
	c.once.Do(func() {
		close(c.done)
	})

	return nil
}

func (c *conn) ack(id any, err error) {
	p := ackPayload{OK: err == nil}
	if err != nil {
		p.Error = err.Error()
	}
	if err := c.enqueue(frame{Event: "ack", ID: id, Payload: p}); err != nil {
		c.logger.Warn("failed to queue ack", slog.String("error", err.Error()))
	}
}

func (c *conn) enqueue(f frame) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		c.logger.Warn("dropping frame", slog.String("event", f.Event))

		return errSendBufferFull
	}
}

func (c *conn) replaceDownload(f frame) error {
	for {
		select {
		case <-c.done:
			return errConnClosed
		default:
		}

		select {
		case c.download <- f:
			return nil
		default:
		}

		select {
		case <-c.download:
			c.logger.Debug("replacing pending download")
		default:
		}
	}
}

func (c *conn) encode(f frame) (int, []byte, error) {
	if c.binary.Load() {
		data, err := cbor.Marshal(f)

		return websocket.BinaryMessage, data, err
	}
	data, err := json.Marshal(f)

	return websocket.TextMessage, data, err
}

// write encodes and writes one frame. Only an I/O error is returned; a frame
// that fails to encode is logged and skipped.
func (c *conn) write(f frame) error {
	mt, data, err := c.encode(f)
	if err != nil {
		c.logger.Warn("failed to encode frame", slog.String("event", f.Event), slog.String("error", err.Error()))

		return nil
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.ws.WriteMessage(mt, data); err != nil {
		c.logger.Warn("failed to write frame", slog.String("event", f.Event), slog.String("error", err.Error()))

		return err
	}

	return nil
}

// writePump owns every write to the socket. A write error closes only this connection.
func (c *conn) writePump() {
	var tick <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.ws.Close()
	defer c.Close()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))

			return
		case f := <-c.download:
			if err := c.write(f); err != nil {
				return
			}
		case f := <-c.send:
			if err := c.write(f); err != nil {
				return
			}
		case <-tick:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("failed to ping", slog.String("error", err.Error()))

				return
			}
		}
	}
}
