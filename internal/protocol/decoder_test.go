package protocol

import (
	"errors"
	"testing"
)

func TestDecoderWaitsForFullFrame(t *testing.T) {
	d := NewDecoder()

	full := mustBytes(t, MessageHave(5))
	d.Feed(full[:2]) // length prefix only half present

	if _, ok, err := d.Decode(); ok || err != nil {
		t.Fatalf("Decode on partial prefix = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	d.Feed(full[2:4]) // length prefix now complete, payload still missing
	if _, ok, err := d.Decode(); ok || err != nil {
		t.Fatalf("Decode on missing payload = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	d.Feed(full[4:])
	m, ok, err := d.Decode()
	if !ok || err != nil {
		t.Fatalf("Decode on full frame = (ok=%v, err=%v), want (true, nil)", ok, err)
	}
	if idx, parseOk := m.ParseHave(); !parseOk || idx != 5 {
		t.Fatalf("decoded Have = (%d,%v), want (5,true)", idx, parseOk)
	}
}

func TestDecoderKeepAlive(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte{0, 0, 0, 0})

	m, ok, err := d.Decode()
	if !ok || err != nil || m != nil {
		t.Fatalf("Decode keep-alive = (%+v, ok=%v, err=%v), want (nil, true, nil)", m, ok, err)
	}
}

func TestDecoderMultipleFramesInOneFeed(t *testing.T) {
	d := NewDecoder()
	d.Feed(mustBytes(t, MessageChoke()))
	d.Feed(mustBytes(t, MessageUnchoke()))

	m1, ok, err := d.Decode()
	if !ok || err != nil || m1.ID != Choke {
		t.Fatalf("first decode = (%+v, %v, %v), want Choke", m1, ok, err)
	}
	m2, ok, err := d.Decode()
	if !ok || err != nil || m2.ID != Unchoke {
		t.Fatalf("second decode = (%+v, %v, %v), want Unchoke", m2, ok, err)
	}
	if _, ok, err := d.Decode(); ok || err != nil {
		t.Fatalf("third decode on empty buffer = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

func TestDecoderInvalidMessageID(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte{0, 0, 0, 1, 0xFF}) // length=1, unknown id 0xFF

	_, ok, err := d.Decode()
	if !ok || !errors.Is(err, ErrInvalidMessageID) {
		t.Fatalf("Decode unknown id = (ok=%v, err=%v), want (true, ErrInvalidMessageID)", ok, err)
	}
}

func TestDecoderBadPayloadSize(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte{0, 0, 0, 1, byte(Have)}) // Have with empty payload, wants 4 bytes

	_, ok, err := d.Decode()
	if !ok || !errors.Is(err, ErrBadPayloadSize) {
		t.Fatalf("Decode bad payload = (ok=%v, err=%v), want (true, ErrBadPayloadSize)", ok, err)
	}
}

func mustBytes(t *testing.T, m *Message) []byte {
	t.Helper()
	b, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	return b
}
