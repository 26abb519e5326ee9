package piecepicker

import (
	"net/netip"

	"github.com/prxssh/rabbitdisk/pkg/bitfield"
)

type PeerEventType int

const (
	EventPeerUnchoked PeerEventType = iota
	EventPeerChoked
	EventPeerBitfield
	EventPeerHave
	EventPeerPiece
	EventPeerGone
)

type PeerEvent[T any] struct {
	Peer netip.AddrPort
	Data T
}

type (
	UnchokedData  struct{}
	ChokedData    struct{}
	PeerGoneData  struct{}
	HandshakeData struct{}
)

type BitfieldData struct {
	Bitfield bitfield.Bitfield
}

type HaveData struct {
	Piece int
}

type PieceData struct {
	Piece int
	Begin int
	Data  []byte
}

type (
	HandshakeEvent = PeerEvent[HandshakeData]
	BitfieldEvent  = PeerEvent[BitfieldData]
	HaveEvent      = PeerEvent[HaveData]
	UnchokedEvent  = PeerEvent[UnchokedData]
	ChokedEvent    = PeerEvent[ChokedData]
	PieceEvent     = PeerEvent[PieceData]
	GoneEvent      = PeerEvent[PeerGoneData]
)

// handleEvent applies a peer-session event to the picker's bookkeeping.
// Choke/unchoke state is not tracked here: callers pass it fresh on every
// NextForPeer call via PeerView.Unchoked instead.
func (pk *Picker) handleEvent(event any) {
	switch e := event.(type) {
	case BitfieldEvent:
		pk.OnPeerBitfield(e.Peer, e.Data.Bitfield)
	case HaveEvent:
		pk.OnPeerHave(e.Peer, e.Data.Piece)
	case PieceEvent:
		pk.OnBlockReceived(e.Peer, e.Data.Piece, e.Data.Begin)
	case GoneEvent:
		pk.OnPeerGone(e.Peer)
	}
}
