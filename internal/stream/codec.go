package stream

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

// Codec serializes events for one subscriber. Clients pick a codec at
// subscribe time via the `format` query parameter; JSON is the default and
// CBOR is the compact binary option.
type Codec interface {
	// Name is the wire name clients use to request the codec.
	Name() string

	// MessageType is the websocket frame type the codec's output is sent as.
	MessageType() int

	// Encode serializes one event.
	Encode(ev *Event) ([]byte, error)
}

// JSONCodec encodes events as JSON text frames.
type JSONCodec struct{}

// Name returns "json".
func (JSONCodec) Name() string { return "json" }

// MessageType returns the text frame type.
func (JSONCodec) MessageType() int { return websocket.TextMessage }

// Encode serializes the event as JSON.
func (JSONCodec) Encode(ev *Event) ([]byte, error) {
	return json.Marshal(ev)
}

// CBORCodec encodes events as CBOR binary frames.
type CBORCodec struct{}

// Name returns "cbor".
func (CBORCodec) Name() string { return "cbor" }

// MessageType returns the binary frame type.
func (CBORCodec) MessageType() int { return websocket.BinaryMessage }

// Encode serializes the event as CBOR.
func (CBORCodec) Encode(ev *Event) ([]byte, error) {
	return cbor.Marshal(ev)
}

// CodecFor resolves a requested codec name. An empty name selects JSON.
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported wire format %q", name)
	}
}
