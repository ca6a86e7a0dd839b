// Package codec encodes outbound frames and decodes inbound gateway events.
package codec

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/palemoky/room-chat/internal/protocol"
)

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// GetBuffer retrieves a bytes.Buffer from the pool
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer returns a bytes.Buffer to the pool
// The buffer is reset but capacity is preserved
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// Encode marshals an outbound frame. The returned slice is owned by the caller.
func Encode(frame any) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(frame); err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}
	// Encoder appends a newline.
	out := bytes.TrimRight(buf.Bytes(), "\n")
	return append([]byte(nil), out...), nil
}

// DecodeEvent parses a raw WebSocket frame into a ChatEvent.
func DecodeEvent(raw []byte) (*protocol.ChatEvent, error) {
	var ev protocol.ChatEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, errors.Wrap(err, "decode event")
	}
	if ev.Type == "" {
		return nil, errors.New("decode event: missing type")
	}
	return &ev, nil
}

// DecodeItem parses a MessageItem payload.
func DecodeItem(raw []byte) (protocol.MessageItem, error) {
	var item protocol.MessageItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, errors.Wrap(err, "decode item")
	}
	return item, nil
}

// MergeItem overlays the fields present in raw onto base. Fields absent from
// raw keep base's values; explicit nulls clear them.
func MergeItem(base protocol.MessageItem, raw []byte) (protocol.MessageItem, error) {
	merged := base
	// json.Unmarshal writes through non-nil pointers, so detach them first.
	if base.ToUserID != nil {
		v := *base.ToUserID
		merged.ToUserID = &v
	}
	if base.ReplyToID != nil {
		v := *base.ReplyToID
		merged.ReplyToID = &v
	}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return base, errors.Wrap(err, "merge item")
	}
	return merged, nil
}
