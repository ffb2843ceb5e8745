// Package ws carries dispatcher events over WebSocket. Text frames hold JSON
// envelopes and binary frames hold CBOR envelopes; replies to a client use the
// encoding it last sent.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/absmach/fedcoord/dispatcher"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Config struct {
	// SendBuffer is the number of outbound frames queued per connection.
	SendBuffer     int           `env:"COORDINATOR_SEND_BUFFER"         envDefault:"32"`
	WriteTimeout   time.Duration `env:"COORDINATOR_WS_WRITE_TIMEOUT"    envDefault:"10s"`
	PingInterval   time.Duration `env:"COORDINATOR_WS_PING_INTERVAL"    envDefault:"30s"`
	MaxMessageSize int64         `env:"COORDINATOR_WS_MAX_MESSAGE_SIZE" envDefault:"67108864"`
}

// Dispatcher receives connection lifecycle and client events.
type Dispatcher interface {
	Connect(ctx context.Context, conn dispatcher.Conn) error
	Disconnect(connID string)
	HandleData(ctx context.Context, connID string, payload dispatcher.Payload, ack dispatcher.AckFunc)
	HandleUpload(ctx context.Context, connID string, payload dispatcher.Payload, ack dispatcher.AckFunc)
}

type Handler struct {
	dispatcher Dispatcher
	cfg        Config
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(d Dispatcher, cfg Config, logger *slog.Logger) *Handler {
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return &Handler{
		dispatcher: d,
		cfg:        cfg,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", slog.String("remote_addr", r.RemoteAddr), slog.String("error", err.Error()))

		return
	}

	c := newConn(uuid.NewString(), wsConn, h.cfg, h.logger)
	go c.writePump()
	defer c.Close()

	ctx := r.Context()
	if err := h.dispatcher.Connect(ctx, c); err != nil {
		h.logger.Warn("failed to register connection", slog.String("session_id", c.id), slog.String("error", err.Error()))

		return
	}
	defer h.dispatcher.Disconnect(c.id)

	h.readLoop(ctx, c)
}

func (h *Handler) readLoop(ctx context.Context, c *conn) {
	if h.cfg.MaxMessageSize > 0 {
		c.ws.SetReadLimit(h.cfg.MaxMessageSize)
	}
	if h.cfg.PingInterval > 0 {
		wait := 2 * h.cfg.PingInterval
		_ = c.ws.SetReadDeadline(time.Now().Add(wait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("connection closed unexpectedly", slog.String("error", err.Error()))
			}

			return
		}
		if h.cfg.PingInterval > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
		}

		var in inbound
		switch mt {
		case websocket.TextMessage:
			c.binary.Store(false)
			in, err = decodeJSON(data)
		case websocket.BinaryMessage:
			c.binary.Store(true)
			in, err = decodeCBOR(data)
		default:
			continue
		}
		if err != nil {
			c.logger.Warn("dropping frame", slog.String("error", err.Error()))
			c.ack(nil, err)

			continue
		}

		id := in.id
		ack := func(err error) { c.ack(id, err) }

		switch in.event {
		case dispatcher.EventData:
			h.dispatcher.HandleData(ctx, c.id, in.payload, ack)
		case dispatcher.EventUpload:
			h.dispatcher.HandleUpload(ctx, c.id, in.payload, ack)
		default:
			ack(fmt.Errorf("%w: %q", dispatcher.ErrUnknownEvent, in.event))
		}
	}
}
