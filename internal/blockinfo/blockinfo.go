// Package blockinfo holds the value types that describe a fixed-size region
// within a piece within a torrent, along with the arithmetic that maps
// between piece lengths, block indices and byte offsets.
package blockinfo

import "fmt"

// MaxBlockLength is the wire-protocol block size (16 KiB). Every block
// request, in-flight assignment and disk write is expressed in multiples of
// this length except for the last block of a piece, which may be shorter.
const MaxBlockLength uint32 = 0x4000

// PieceIndex is an unsigned index into a torrent's piece table.
type PieceIndex = uint32

// BlockInfo identifies a block by its enclosing piece, its byte offset
// within that piece, and its length.
type BlockInfo struct {
	PieceIndex PieceIndex
	Offset     uint32
	Length     uint32
}

// IndexInPiece returns the block index that BlockInfo.Offset falls on,
// assuming a full-size (MaxBlockLength) block grid. Mirrors the Rust
// original's BlockInfo::index_in_piece, which asserts the block itself is
// not larger than MaxBlockLength before dividing.
func (b BlockInfo) IndexInPiece() uint32 {
	if b.Length > MaxBlockLength {
		panic(fmt.Sprintf("blockinfo: block length %d exceeds max block length %d", b.Length, MaxBlockLength))
	}
	return b.Offset / MaxBlockLength
}

// BlockData carries the bytes of a block. Owned is an exclusively-held
// buffer, typically a block just arrived from a peer or freshly read off
// disk for a single consumer. Cached is a shared, immutable buffer that may
// be held by multiple readers at once (e.g. a disk-read result fanned out
// to several requesting peer sessions).
//
// The only legal transition is Owned -> Cached, performed by whoever takes
// ownership of a completed buffer and decides to let others share it; there
// is no operation that turns a Cached block back into an Owned one.
type BlockData struct {
	owned  []byte
	cached *[]byte
}

// NewOwnedBlockData wraps buf as an exclusively-held block.
func NewOwnedBlockData(buf []byte) BlockData {
	return BlockData{owned: buf}
}

// NewCachedBlockData wraps buf as a shared, immutable block. Callers must
// not mutate buf after this call.
func NewCachedBlockData(buf []byte) BlockData {
	return BlockData{cached: &buf}
}

// IsCached reports whether the block data is the shared, immutable variant.
func (b BlockData) IsCached() bool {
	return b.cached != nil
}

// Bytes returns the underlying byte slice regardless of variant. Callers
// must not mutate the result of a Cached block.
func (b BlockData) Bytes() []byte {
	if b.cached != nil {
		return *b.cached
	}
	return b.owned
}

// IntoOwned returns the exclusively-held buffer. It panics if called on a
// Cached block, mirroring the original's into_owned() which panics rather
// than silently copying.
func (b BlockData) IntoOwned() []byte {
	if b.cached != nil {
		panic("blockinfo: IntoOwned called on a Cached block")
	}
	return b.owned
}

// ToCached promotes an Owned block to a shared, immutable one. It panics if
// called on a block that is already Cached.
func (b BlockData) ToCached() BlockData {
	if b.cached != nil {
		panic("blockinfo: ToCached called on an already-Cached block")
	}
	return NewCachedBlockData(b.owned)
}

// BlockLen returns the length, in bytes, of block blockIndex within a piece
// of length pieceLen. It panics if blockIndex addresses a block that does
// not exist in the piece, matching the original's debug_assert-guarded
// bounds check promoted to a release-mode precondition.
func BlockLen(pieceLen uint32, blockIndex uint32) uint32 {
	blockOffset := blockIndex * MaxBlockLength
	if pieceLen <= blockOffset {
		panic(fmt.Sprintf("blockinfo: block index %d out of range for piece length %d", blockIndex, pieceLen))
	}
	remaining := pieceLen - blockOffset
	if remaining < MaxBlockLength {
		return remaining
	}
	return MaxBlockLength
}

// BlockCount returns the number of MaxBlockLength-sized blocks needed to
// cover a piece of length pieceLen.
func BlockCount(pieceLen uint32) int {
	return int((uint64(pieceLen) + uint64(MaxBlockLength) - 1) / uint64(MaxBlockLength))
}

// PieceCount returns how many pieces are needed to cover size bytes of
// content at pieceLen bytes per piece.
func PieceCount(size uint64, pieceLen uint32) uint32 {
	if pieceLen == 0 {
		return 0
	}
	return uint32((size + uint64(pieceLen) - 1) / uint64(pieceLen))
}

// LastPieceLength returns the byte length of the final piece of a
// size-byte torrent split into pieceLen-byte pieces.
func LastPieceLength(size uint64, pieceLen uint32) uint32 {
	if pieceLen == 0 {
		return 0
	}
	rem := size % uint64(pieceLen)
	if rem == 0 {
		return pieceLen
	}
	return uint32(rem)
}

// PieceLengthAt returns the length of piece index within a size-byte
// torrent split into pieceLen-byte pieces.
func PieceLengthAt(index PieceIndex, size uint64, pieceLen uint32) (uint32, bool) {
	count := PieceCount(size, pieceLen)
	if pieceLen == 0 || index >= count {
		return 0, false
	}
	if index == count-1 {
		return LastPieceLength(size, pieceLen), true
	}
	return pieceLen, true
}

// BlocksInPiece returns the number of MaxBlockLength-sized blocks needed to
// cover a piece of length pieceLen (the same split BlockCount computes,
// returned as the unsigned width the picker's block tables use).
func BlocksInPiece(pieceLen uint32) uint32 {
	return uint32(BlockCount(pieceLen))
}

// LastBlockInPiece returns the byte length of the final block of a piece of
// length pieceLen.
func LastBlockInPiece(pieceLen uint32) uint32 {
	if pieceLen == 0 {
		return 0
	}
	return BlockLen(pieceLen, BlocksInPiece(pieceLen)-1)
}

// BlockIndexForBegin returns the block index that byte offset begin falls on
// within a piece of length pieceLen. ok is false if begin is out of range.
func BlockIndexForBegin(begin, pieceLen uint32) (uint32, bool) {
	if begin >= pieceLen {
		return 0, false
	}
	return begin / MaxBlockLength, true
}
