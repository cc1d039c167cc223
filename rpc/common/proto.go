package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Envelope Structure
// --------------------------------------------------------------------------

// Envelope is the unit exchanged between ranks. It carries the matching
// information (context, source, tag) next to the already marshalled payload.
// The payload layout is owned by the wire package; the envelope only records
// how many elements it holds so that a receiver can size its buffer before
// decoding (probe).
type Envelope struct {
	// Kind of frame
	Kind FrameKind `json:"kind"`

	// Matching fields
	Context uint32 `json:"ctx"`           // Communicator context (collective bit included)
	Src     int32  `json:"src"`           // Rank of the sender within the context
	Dst     int32  `json:"dst"`           // Rank of the receiver within the context
	Tag     int32  `json:"tag,omitempty"` // User tag (or collective op tag)

	// Payload description
	Count uint32 `json:"count,omitempty"` // Number of elements in Payload
	Seq   uint64 `json:"seq,omitempty"`   // Per-destination sequence number (diagnostics)

	// Marshalled elements
	Payload []byte `json:"payload,omitempty"`
}

// String returns a short description of the envelope (without payload).
func (e Envelope) String() string {
	return fmt.Sprintf("Envelope{Kind: %s, Ctx: %d, Src: %d, Dst: %d, Tag: %d, Count: %d, Seq: %d, Bytes: %d}",
		e.Kind, e.Context, e.Src, e.Dst, e.Tag, e.Count, e.Seq, len(e.Payload))
}

// NewDataEnvelope creates a new data envelope
func NewDataEnvelope(context uint32, src, dst, tag int, count int, payload []byte) *Envelope {
	return &Envelope{
		Kind:    FrameTData,
		Context: context,
		Src:     int32(src),
		Dst:     int32(dst),
		Tag:     int32(tag),
		Count:   uint32(count),
		Payload: payload,
	}
}

// NewAbortEnvelope creates a new abort envelope. The exit code is carried in the tag.
func NewAbortEnvelope(context uint32, src int, code int) *Envelope {
	return &Envelope{
		Kind:    FrameTAbort,
		Context: context,
		Src:     int32(src),
		Tag:     int32(code),
	}
}

// --------------------------------------------------------------------------
// Frame Kind Definition
// --------------------------------------------------------------------------

// FrameKind defines the kind of frame exchanged between ranks.
type FrameKind uint8

// String returns the string representation of a FrameKind.
func (k FrameKind) String() string {
	switch k {
	case FrameTData:
		return "data"
	case FrameTAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for FrameKind.
func (k FrameKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for FrameKind.
func (k *FrameKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "data":
		*k = FrameTData
	case "abort":
		*k = FrameTAbort
	default:
		return fmt.Errorf("unknown frame kind: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Frame Kind Constants
// --------------------------------------------------------------------------

const (
	FrameTUnknown FrameKind = iota
	FrameTData              // Point-to-point or collective payload
	FrameTAbort             // Terminate every participant of the context
)
