package dispatcher

import (
	"github.com/absmach/fedcoord/pkg/codec"
)

const (
	EventDownload = "download"
	EventData     = "data"
	EventUpload   = "upload"
	EventAck      = "ack"
)

// DownloadMessage carries the current model to clients.
type DownloadMessage struct {
	ModelVersion uint64                   `json:"modelVersion"`
	Vars         []codec.SerializedTensor `json:"vars"`
	Hyperparams  map[string]any           `json:"hyperparams"`
}

// DataMessage is a telemetry sample sent by a client.
type DataMessage struct {
	Input        codec.SerializedTensor  `json:"input"`
	Target       codec.SerializedTensor  `json:"target"`
	Output       *codec.SerializedTensor `json:"output,omitempty"`
	ModelVersion uint64                  `json:"modelVersion"`
	// Timestamp is in Unix milliseconds.
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// UploadMessage is a client's trained update.
type UploadMessage struct {
	Vars         []codec.SerializedTensor `json:"vars"`
	ModelVersion uint64                   `json:"modelVersion"`
	NumExamples  int                      `json:"numExamples"`
}

// Payload is an event body that has not been decoded yet.
type Payload interface {
	Decode(v any) error
}

// PayloadFunc adapts a decode function to Payload.
type PayloadFunc func(v any) error

func (f PayloadFunc) Decode(v any) error {
	return f(v)
}

// AckFunc reports to the sender whether an event was accepted.
type AckFunc func(err error)

// Conn is one client connection as seen by the dispatcher.
type Conn interface {
	ID() string
	RemoteAddr() string
	// Send queues an event for delivery and must not block.
	Send(event string, payload any) error
	Close() error
}

// Announcement is published after every aggregation.
type Announcement struct {
	ModelVersion uint64 `json:"model_version"`
	Clients      int64  `json:"clients"`
	Timestamp    int64  `json:"timestamp"`
}
