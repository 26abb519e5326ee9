package piecepicker

import (
	"crypto/sha1"
	"net/netip"
	"time"
)

// MaxBlockLength is the largest block a peer may request, matching the
// wire protocol's block size.
const MaxBlockLength = 16 * 1024

// BlockLength is the standard block size used when walking a piece's
// blocks; only the final block of a piece may be shorter.
const BlockLength = MaxBlockLength

type blockStatus int

const (
	blockWant blockStatus = iota
	blockInflight
	blockDone
)

// blockOwner records which peer a block was last requested from and when,
// so CheckTimeouts can reclaim it if the peer never delivers.
type blockOwner struct {
	addr        netip.AddrPort
	requestedAt time.Time
}

type block struct {
	status blockStatus
	owner  *blockOwner
}

// pieceState is one piece's bookkeeping: its blocks, how many are done, and
// whether the assembled piece has passed hash verification.
type pieceState struct {
	index       int
	doneBlocks  int
	length      uint32
	verified    bool
	blocks      []*block
	isLastPiece bool
	blockCount  int
	sha         [sha1.Size]byte
	lastBlock   uint32
}
