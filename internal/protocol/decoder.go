package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidMessageID is returned when a frame's id byte does not match one
// of the nine known message kinds.
var ErrInvalidMessageID = errors.New("protocol: invalid message id")

// Decoder incrementally decodes framed messages out of a byte stream that
// is fed to it in arbitrary-sized chunks. It never blocks: Decode inspects
// the length prefix without consuming any bytes, and only advances its
// internal buffer once a complete frame is confirmed present. Callers that
// get ok=false should Feed more bytes (from the network) and retry.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty decoder ready to Feed.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends freshly-read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Buffered reports how many undecoded bytes are currently held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Decode attempts to decode one frame from the buffered bytes. It reports
// ok=false (with a nil error) when fewer than a full frame is currently
// available; the length prefix itself is only ever peeked, never consumed,
// until the rest of the frame is confirmed present.
//
// A nil *Message with ok=true denotes a keep-alive frame. A non-nil error
// means the frame's bytes were present but malformed (unknown id, or a
// payload size that doesn't match its id); the caller should sever the
// connection rather than retry.
func (d *Decoder) Decode() (m *Message, ok bool, err error) {
	if len(d.buf) < 4 {
		return nil, false, nil
	}

	length := binary.BigEndian.Uint32(d.buf[0:4])
	total := 4 + int(length)
	if len(d.buf) < total {
		return nil, false, nil
	}

	frame := d.buf[:total]
	d.buf = d.buf[total:]

	if length == 0 {
		return nil, true, nil
	}

	id := MessageID(frame[4])
	if !validMessageID(id) {
		return nil, true, fmt.Errorf("%w: %d", ErrInvalidMessageID, id)
	}

	payload := append([]byte(nil), frame[5:total]...)
	msg := &Message{ID: id, Payload: payload}
	if err := msg.ValidatePayloadSize(); err != nil {
		return msg, true, err
	}
	return msg, true, nil
}

func validMessageID(id MessageID) bool {
	switch id {
	case Choke, Unchoke, Interested, NotInterested, Have, Bitfield, Request, Piece, Cancel:
		return true
	default:
		return false
	}
}
