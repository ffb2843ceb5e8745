// Package dispatcher connects client sessions to the coordinator. Every
// session gets a bounded inbox drained by its own goroutine, so a slow or
// malformed client never holds up another one.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/codec"
	"github.com/absmach/fedcoord/pkg/fl"
	"golang.org/x/sync/errgroup"
)

const (
	PolicyReject = "reject"
	PolicyBlock  = "block"
)

type Config struct {
	QueueSize int `env:"COORDINATOR_QUEUE_SIZE"   envDefault:"64"`
	// QueuePolicy decides what a full inbox does: reject fails the event at
	// once, block waits up to EnqueueTimeout.
	QueuePolicy          string        `env:"COORDINATOR_QUEUE_POLICY"            envDefault:"reject"`
	EnqueueTimeout       time.Duration `env:"COORDINATOR_ENQUEUE_TIMEOUT"         envDefault:"5s"`
	DecodeTimeout        time.Duration `env:"COORDINATOR_DECODE_TIMEOUT"          envDefault:"10s"`
	ExitOnLastDisconnect bool          `env:"COORDINATOR_EXIT_ON_LAST_DISCONNECT" envDefault:"false"`
}

func (c Config) Validate() error {
	switch strings.ToLower(c.QueuePolicy) {
	case PolicyReject, PolicyBlock:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, c.QueuePolicy)
	}
}

type Option func(*Dispatcher)

// WithTerminate sets the hook called when the last session disconnects and
// ExitOnLastDisconnect is set.
func WithTerminate(fn func()) Option {
	return func(d *Dispatcher) {
		d.terminate = fn
	}
}

func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		d.notifier = n
	}
}

func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

type Dispatcher struct {
	ctx       context.Context
	cfg       Config
	svc       coordinator.Service
	logger    *slog.Logger
	terminate func()
	notifier  Notifier
	metrics   Metrics
	names     namegenerator.NameGenerator

	mu       sync.RWMutex
	sessions map[string]*session
	live     int64

	// broadcastMu orders every download sent, including the one a new
	// session receives on connect.
	broadcastMu   sync.Mutex
	lastBroadcast uint64

	loops errgroup.Group
}

// New creates a dispatcher. ctx bounds the work done by session loops.
func New(ctx context.Context, cfg Config, svc coordinator.Service, logger *slog.Logger, opts ...Option) *Dispatcher {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	cfg.QueuePolicy = strings.ToLower(cfg.QueuePolicy)

	d := &Dispatcher{
		ctx:      ctx,
		cfg:      cfg,
		svc:      svc,
		logger:   logger,
		metrics:  discardMetrics(),
		names:    namegenerator.NewGenerator(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Connect registers conn and sends it the model current at this moment.
func (d *Dispatcher) Connect(ctx context.Context, conn Conn) error {
	d.broadcastMu.Lock()
	defer d.broadcastMu.Unlock()

	snap := d.svc.Snapshot(ctx)
	msg, err := d.download(ctx, snap)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if _, ok := d.sessions[conn.ID()]; ok {
		d.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrSessionExists, conn.ID())
	}
	s := newSession(conn, d.names.Generate(), d.cfg.QueueSize)
	d.sessions[s.id] = s
	d.live++
	live := d.live
	d.mu.Unlock()

	d.metrics.Connections.Set(float64(live))
	d.loops.Go(func() error {
		d.serve(s)

		return nil
	})

	d.logger.Info("client connected",
		slog.String("session_id", s.id),
		slog.String("name", s.name),
		slog.String("remote_addr", s.remoteAddr),
		slog.Int64("live", live),
	)

	d.lastBroadcast = max(d.lastBroadcast, snap.Version)

	if err := conn.Send(EventDownload, msg); err != nil {
		d.logger.Warn("failed to send model",
			slog.String("session_id", s.id),
			slog.Uint64("model_version", snap.Version),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// Disconnect unregisters the session. Events already queued are still processed.
func (d *Dispatcher) Disconnect(connID string) {
	d.mu.Lock()
	s, ok := d.sessions[connID]
	if !ok {
		d.mu.Unlock()

		return
	}
	delete(d.sessions, connID)
	d.live--
	live := d.live
	d.mu.Unlock()

	s.close()
	d.metrics.Connections.Set(float64(live))

	d.logger.Info("client disconnected",
		slog.String("session_id", s.id),
		slog.String("name", s.name),
		slog.Int64("live", live),
	)

	if live == 0 && d.cfg.ExitOnLastDisconnect && d.terminate != nil {
		d.logger.Info("last client disconnected, terminating")
		d.terminate()
	}
}

// HandleData queues a telemetry sample. ack runs once the event is queued,
// before the payload is decoded.
func (d *Dispatcher) HandleData(ctx context.Context, connID string, payload Payload, ack AckFunc) {
	d.enqueue(ctx, connID, EventData, payload, ack)
}

// HandleUpload queues a client update. ack runs once the event is queued,
// before the payload is decoded.
func (d *Dispatcher) HandleUpload(ctx context.Context, connID string, payload Payload, ack AckFunc) {
	d.enqueue(ctx, connID, EventUpload, payload, ack)
}

// SetHyperparams replaces the hyperparameters and pushes them to every session.
func (d *Dispatcher) SetHyperparams(ctx context.Context, params map[string]any) error {
	if err := d.svc.SetHyperparams(ctx, params); err != nil {
		return err
	}

	return d.broadcast(ctx, d.svc.Snapshot(ctx))
}

// Sessions lists the connected sessions, oldest first.
func (d *Dispatcher) Sessions(_ context.Context) []Session {
	d.mu.RLock()
	out := make([]Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s.info())
	}
	d.mu.RUnlock()

	slices.SortFunc(out, func(a, b Session) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return out
}

// Close disconnects every session and waits for their queued events to finish.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	sessions := make([]*session, 0, len(d.sessions))
	for id, s := range d.sessions {
		sessions = append(sessions, s)
		delete(d.sessions, id)
	}
	d.live = 0
	d.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	d.metrics.Connections.Set(0)

	return d.loops.Wait()
}

func (d *Dispatcher) enqueue(ctx context.Context, connID, event string, payload Payload, ack AckFunc) {
	d.mu.RLock()
	s, ok := d.sessions[connID]
	d.mu.RUnlock()

	var err error
	switch {
	case !ok:
		err = fmt.Errorf("%w: %s", ErrUnknownSession, connID)
	default:
		j := job{event: event, payload: payload, received: time.Now().UTC()}
		err = s.push(ctx, j, d.cfg.QueuePolicy == PolicyBlock, d.cfg.EnqueueTimeout)
	}

	status := "queued"
	if err != nil {
		status = "rejected"
		d.logger.Warn("failed to queue event",
			slog.String("session_id", connID),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
	d.metrics.Events.With("event", event, "status", status).Add(1)

	if ack != nil {
		ack(err)
	}
}

func (d *Dispatcher) serve(s *session) {
	for j := range s.inbox {
		err := d.process(s, j)

		status := "processed"
		if err != nil {
			status = "failed"
			d.logger.Warn("failed to process event",
				slog.String("session_id", s.id),
				slog.String("event", j.event),
				slog.String("error", err.Error()),
			)
		}
		d.metrics.Events.With("event", j.event, "status", status).Add(1)
	}
}

func (d *Dispatcher) process(s *session, j job) error {
	ctx := d.ctx
	if d.cfg.DecodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.DecodeTimeout)
		defer cancel()
	}

	switch j.event {
	case EventData:
		return d.processData(ctx, s, j)
	case EventUpload:
		return d.processUpload(ctx, s, j)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, j.event)
	}
}

func (d *Dispatcher) processData(ctx context.Context, s *session, j job) error {
	var msg DataMessage
	if err := j.payload.Decode(&msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	input, err := codec.SerializedToJSON(msg.Input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	target, err := codec.SerializedToJSON(msg.Target)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	var output *codec.TensorJSON
	if msg.Output != nil {
		out, err := codec.SerializedToJSON(*msg.Output)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		output = &out
	}

	ts := j.received
	if msg.Timestamp > 0 {
		ts = time.UnixMilli(msg.Timestamp).UTC()
	}

	rec := fl.DataRecord{
		ClientID:     s.id,
		ModelVersion: msg.ModelVersion,
		Input:        input,
		Target:       target,
		Output:       output,
		Timestamp:    ts,
		Metadata:     msg.Metadata,
	}
	if err := d.svc.RecordTelemetry(ctx, rec); err != nil {
		return err
	}
	s.data.Add(1)

	return nil
}

func (d *Dispatcher) processUpload(ctx context.Context, s *session, j job) error {
	var msg UploadMessage
	if err := j.payload.Decode(&msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	vars, err := codec.DeserializeAll(ctx, msg.Vars)
	if err != nil {
		return err
	}

	rec := fl.UpdateRecord{
		ClientID:     s.id,
		ModelVersion: msg.ModelVersion,
		NumExamples:  msg.NumExamples,
		Vars:         vars,
		ReceivedAt:   j.received,
	}
	if err := d.svc.SubmitUpdate(d.ctx, rec); err != nil {
		return err
	}
	s.uploads.Add(1)

	if msg.ModelVersion != d.svc.CurrentVersion(d.ctx) {
		return nil
	}

	snap, ok, err := d.svc.TryAggregate(d.ctx)
	if err != nil || !ok {
		return err
	}
	if err := d.broadcast(d.ctx, snap); err != nil {
		return err
	}
	d.notify(d.ctx, snap)

	return nil
}

// broadcast sends snap to every session unless a newer version already went out.
func (d *Dispatcher) broadcast(ctx context.Context, snap fl.Snapshot) error {
	d.broadcastMu.Lock()
	defer d.broadcastMu.Unlock()

	if snap.Version < d.lastBroadcast {
		d.logger.Debug("skipping stale broadcast",
			slog.Uint64("model_version", snap.Version),
			slog.Uint64("last_broadcast", d.lastBroadcast),
		)

		return nil
	}

	msg, err := d.download(ctx, snap)
	if err != nil {
		return err
	}
	d.lastBroadcast = snap.Version

	d.mu.RLock()
	conns := make([]Conn, 0, len(d.sessions))
	for _, s := range d.sessions {
		conns = append(conns, s.conn)
	}
	d.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(EventDownload, msg); err != nil {
			d.logger.Warn("failed to send model",
				slog.String("session_id", conn.ID()),
				slog.Uint64("model_version", snap.Version),
				slog.String("error", err.Error()),
			)
		}
	}
	d.metrics.Broadcasts.Add(1)

	d.logger.Info("model broadcast",
		slog.Uint64("model_version", snap.Version),
		slog.Int("clients", len(conns)),
	)

	return nil
}

func (d *Dispatcher) notify(ctx context.Context, snap fl.Snapshot) {
	if d.notifier == nil {
		return
	}

	d.mu.RLock()
	live := d.live
	d.mu.RUnlock()

	a := Announcement{
		ModelVersion: snap.Version,
		Clients:      live,
		Timestamp:    time.Now().UnixMilli(),
	}
	if err := d.notifier.NotifyModel(ctx, a); err != nil {
		d.logger.Warn("failed to announce model",
			slog.Uint64("model_version", snap.Version),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) download(ctx context.Context, snap fl.Snapshot) (DownloadMessage, error) {
	vars, err := codec.SerializeAll(snap.Vars)
	if err != nil {
		return DownloadMessage{}, fmt.Errorf("failed to serialize model %d: %w", snap.Version, err)
	}

	return DownloadMessage{
		ModelVersion: snap.Version,
		Vars:         vars,
		Hyperparams:  d.svc.Hyperparams(ctx),
	}, nil
}
