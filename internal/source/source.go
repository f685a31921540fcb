// Package source delivers gaze, face and region events to a reading session.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/verte-zerg/readaid/internal/model"
)

// Kind names an event type on the wire.
type Kind string

// Event kinds.
const (
	KindGaze      Kind = "gaze"
	KindFace      Kind = "face"
	KindFaceFrame Kind = "face_frame"
	KindRegions   Kind = "regions"
	KindDismiss   Kind = "dismiss"
)

// ErrUnknownKind reports an envelope with an unsupported type.
var ErrUnknownKind = errors.New("unknown event type")

// Event is one inbound message. Only the field matching Kind is set.
type Event struct {
	Kind      Kind
	Gaze      model.GazeSample
	Face      model.FaceSignal
	FaceFrame model.FaceFrame
	Regions   model.RegionSnapshot
}

// Source opens a stream of events for one reading session.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an acquired event stream. Events is closed when the stream ends;
// Err then reports why, or nil on a clean end.
type Stream interface {
	Events() <-chan Event
	Err() error
	Close() error
}

type streamSource struct {
	stream Stream
}

// FromStream wraps an already acquired stream as a Source.
func FromStream(stream Stream) Source {
	return streamSource{stream: stream}
}

func (s streamSource) Open(context.Context) (Stream, error) {
	return s.stream, nil
}

type envelope struct {
	Type Kind `json:"type"`
}

// Decode parses a flat JSON envelope such as {"type":"gaze","x":1,"y":2,"timestamp_ms":0}.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	ev := Event{Kind: env.Type}
	var target any
	switch env.Type {
	case KindGaze:
		target = &ev.Gaze
	case KindFace:
		target = &ev.Face
	case KindFaceFrame:
		target = &ev.FaceFrame
	case KindRegions:
		target = &ev.Regions
	case KindDismiss:
		return ev, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return Event{}, fmt.Errorf("failed to decode %s event: %w", env.Type, err)
	}
	return ev, nil
}

// Encode renders an event as a flat JSON envelope.
func Encode(ev Event) ([]byte, error) {
	var payload any
	switch ev.Kind {
	case KindGaze:
		payload = ev.Gaze
	case KindFace:
		payload = ev.Face
	case KindFaceFrame:
		payload = ev.FaceFrame
	case KindRegions:
		payload = ev.Regions
	case KindDismiss:
		return json.Marshal(envelope{Type: KindDismiss})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(ev.Kind)
	if err != nil {
		return nil, err
	}
	fields["type"] = kind
	return json.Marshal(fields)
}
