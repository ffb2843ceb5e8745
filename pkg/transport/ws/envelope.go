package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/absmach/fedcoord/dispatcher"
	"github.com/fxamacker/cbor/v2"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	errEmptyPayload   = errors.New("empty payload")
)

// frame is the outbound envelope. ID echoes the request's id on acks.
type frame struct {
	Event   string `json:"event"             cbor:"event"`
	ID      any    `json:"id,omitempty"      cbor:"id,omitempty"`
	Payload any    `json:"payload,omitempty" cbor:"payload,omitempty"`
}

type ackPayload struct {
	OK    bool   `json:"ok"              cbor:"ok"`
	Error string `json:"error,omitempty" cbor:"error,omitempty"`
}

type jsonEnvelope struct {
	Event   string          `json:"event"`
	ID      any             `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type cborEnvelope struct {
	Event   string          `cbor:"event"`
	ID      any             `cbor:"id,omitempty"`
	Payload cbor.RawMessage `cbor:"payload,omitempty"`
}

// inbound is a decoded envelope whose payload is still raw.
type inbound struct {
	event   string
	id      any
	payload dispatcher.Payload
}

func decodeJSON(data []byte) (inbound, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return inbound{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	raw := env.Payload

	return inbound{
		event: env.Event,
		id:    env.ID,
		payload: dispatcher.PayloadFunc(func(v any) error {
			if len(raw) == 0 {
				return errEmptyPayload
			}

			return json.Unmarshal(raw, v)
		}),
	}, nil
}

func decodeCBOR(data []byte) (inbound, error) {
	var env cborEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return inbound{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	raw := env.Payload

	return inbound{
		event: env.Event,
		id:    env.ID,
		payload: dispatcher.PayloadFunc(func(v any) error {
			if len(raw) == 0 {
				return errEmptyPayload
			}

			return cbor.Unmarshal(raw, v)
		}),
	}, nil
}
