// Package piece implements the in-memory accumulator for a single
// in-progress piece download: the map of offset to block bytes, knowledge
// of the expected length and hash, and the write walk across the file range
// the piece overlaps once it is complete.
package piece

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"sort"

	"github.com/prxssh/rabbitdisk/internal/blockinfo"
	"github.com/prxssh/rabbitdisk/internal/diskio"
)

// Assembler is an in-progress piece download: the so-far downloaded blocks
// plus the expected hash of the whole piece. Once the block count reaches
// block_count(Len), the piece is complete and, if the hash is correct, can
// be written to disk.
type Assembler struct {
	Index        blockinfo.PieceIndex
	ExpectedHash [sha1.Size]byte
	Len          uint32

	// FileLo, FileHi is the left-inclusive, right-exclusive range of file
	// indices into a StorageInfo.Files slice that this piece overlaps.
	FileLo, FileHi int

	blocks map[uint32][]byte
}

// NewAssembler starts a fresh piece accumulator for piece index, expecting
// length bytes total and hash sha1Hash, overlapping files[fileLo:fileHi].
func NewAssembler(index blockinfo.PieceIndex, length uint32, sha1Hash [sha1.Size]byte, fileLo, fileHi int) *Assembler {
	return &Assembler{
		Index:        index,
		ExpectedHash: sha1Hash,
		Len:          length,
		FileLo:       fileLo,
		FileHi:       fileHi,
		blocks:       make(map[uint32][]byte),
	}
}

// EnqueueBlock places data into the assembler's write buffer at offset if
// no block has been received there yet. A duplicate arrival is discarded,
// never overwriting the first copy; it reports whether the block was a
// duplicate so the caller can log it.
func (a *Assembler) EnqueueBlock(offset uint32, data []byte) (duplicate bool) {
	if _, exists := a.blocks[offset]; exists {
		return true
	}
	a.blocks[offset] = data
	return false
}

// IsComplete reports whether every block of the piece has arrived.
func (a *Assembler) IsComplete() bool {
	return len(a.blocks) == blockinfo.BlockCount(a.Len)
}

// sortedOffsets returns the block offsets in ascending order. Hashing and
// writing must both walk blocks in this order regardless of arrival order,
// since blocks are addressed by offset and arrive out of order across
// peers.
func (a *Assembler) sortedOffsets() []uint32 {
	offsets := make([]uint32, 0, len(a.blocks))
	for off := range a.blocks {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets
}

// VerifyHash feeds the piece's blocks to SHA-1 in ascending offset order
// and reports whether the digest matches ExpectedHash. The caller must only
// invoke this once IsComplete reports true.
func (a *Assembler) VerifyHash() bool {
	if !a.IsComplete() {
		panic("piece: VerifyHash called before the piece is complete")
	}

	h := sha1.New()
	for _, off := range a.sortedOffsets() {
		h.Write(a.blocks[off])
	}
	return bytes.Equal(h.Sum(nil), a.ExpectedHash[:])
}

// Write walks the ordered file range the piece overlaps and writes each
// block's bytes to the corresponding file, via bounded vectored I/O. The
// caller must only invoke this once the piece is complete and its hash has
// been verified.
//
// torrentPieceOffset is the absolute byte offset of the piece's first byte
// within the torrent (i.e. piece_index * piece_len).
func (a *Assembler) Write(torrentPieceOffset uint64, files []*diskio.File) error {
	if !a.IsComplete() {
		panic("piece: Write called before the piece is complete")
	}

	bufs := make([][]byte, 0, len(a.blocks))
	for _, off := range a.sortedOffsets() {
		bufs = append(bufs, a.blocks[off])
	}

	overlapping := files[a.FileLo:a.FileHi]
	if len(overlapping) == 0 {
		return fmt.Errorf("piece: piece %d overlaps no files", a.Index)
	}

	writeOffset := torrentPieceOffset
	written := uint64(0)

	for _, file := range overlapping {
		remaining := uint64(a.Len) - written
		slice := file.Info.GetSlice(writeOffset, remaining)
		if slice.Len == 0 {
			return fmt.Errorf("piece: piece %d spans fewer files than its file range claims", a.Index)
		}

		tail, err := file.Write(slice, bufs)
		if err != nil {
			return fmt.Errorf("piece: write piece %d to %s: %w", a.Index, file.Info.Path, err)
		}
		bufs = tail

		writeOffset += slice.Len
		written += slice.Len
	}

	if len(bufs) != 0 {
		return fmt.Errorf("piece: piece %d left %d buffers unwritten", a.Index, len(bufs))
	}

	return nil
}
