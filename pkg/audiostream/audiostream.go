// Package audiostream is the wire contract between edge devices and the brain
// service. It is the Go equivalent of:
//
//	syntax = "proto3";
//	package audiostream;
//
//	service AudioStreamer {
//	  rpc StreamAudio(stream Chunk) returns (StreamReceipt);
//	}
//	message Chunk { bytes audio_chunk = 1; }
//	message StreamReceipt { string status_message = 1; }
//
// Messages are encoded as protobuf wire format by [Codec], so peers built
// from the .proto file interoperate with this package.
package audiostream

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Chunk carries one slice of raw 16-bit little-endian mono PCM.
type Chunk struct {
	AudioChunk []byte
}

// GetAudioChunk returns the payload, tolerating a nil receiver.
func (c *Chunk) GetAudioChunk() []byte {
	if c == nil {
		return nil
	}
	return c.AudioChunk
}

// StreamReceipt is the single terminal response of a stream.
type StreamReceipt struct {
	StatusMessage string
}

// GetStatusMessage returns the message, tolerating a nil receiver.
func (r *StreamReceipt) GetStatusMessage() string {
	if r == nil {
		return ""
	}
	return r.StatusMessage
}

const (
	chunkAudioField   protowire.Number = 1
	receiptStatusField protowire.Number = 1
)

func (c *Chunk) marshal() []byte {
	if len(c.AudioChunk) == 0 {
		return nil
	}
	b := protowire.AppendTag(nil, chunkAudioField, protowire.BytesType)
	return protowire.AppendBytes(b, c.AudioChunk)
}

func (c *Chunk) unmarshal(b []byte) error {
	c.AudioChunk = nil
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != chunkAudioField || typ != protowire.BytesType {
			return -1, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		c.AudioChunk = append([]byte(nil), v...)
		return n, nil
	})
}

func (r *StreamReceipt) marshal() []byte {
	if r.StatusMessage == "" {
		return nil
	}
	b := protowire.AppendTag(nil, receiptStatusField, protowire.BytesType)
	return protowire.AppendString(b, r.StatusMessage)
}

func (r *StreamReceipt) unmarshal(b []byte) error {
	r.StatusMessage = ""
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != receiptStatusField || typ != protowire.BytesType {
			return -1, nil
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		r.StatusMessage = v
		return n, nil
	})
}

// consumeFields walks every field of a message. field returns the bytes it
// consumed after the tag, or -1 to have the field skipped as unknown.
func consumeFields(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("audiostream: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		m, err := field(num, typ, b)
		if err != nil {
			return fmt.Errorf("audiostream: field %d: %w", num, err)
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("audiostream: skip field %d: %w", num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

// ---- codec ------------------------------------------------------------------

// Codec marshals Chunk and StreamReceipt values. Its name is "proto" so
// requests carry the standard application/grpc+proto content subtype.
type Codec struct{}

// Name implements encoding.Codec.
func (Codec) Name() string { return "proto" }

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *Chunk:
		return m.marshal(), nil
	case *StreamReceipt:
		return m.marshal(), nil
	default:
		return nil, fmt.Errorf("audiostream: cannot marshal %T", v)
	}
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *Chunk:
		return m.unmarshal(data)
	case *StreamReceipt:
		return m.unmarshal(data)
	case nil:
		return errors.New("audiostream: unmarshal into nil")
	default:
		return fmt.Errorf("audiostream: cannot unmarshal into %T", v)
	}
}
