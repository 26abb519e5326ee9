package disk

import (
	"crypto/sha1"
	"fmt"
	"path/filepath"

	"github.com/prxssh/rabbitdisk/internal/blockinfo"
	"github.com/prxssh/rabbitdisk/internal/diskio"
	"github.com/prxssh/rabbitdisk/internal/piece"
	"github.com/prxssh/rabbitdisk/internal/storageinfo"
)

// torrentState is one torrent's disk-side bookkeeping: its open file
// handles, piece hash table, and the assemblers for pieces currently being
// written. It is only ever touched by the disk worker's own goroutine, so it
// needs no internal locking; the files it owns each guard themselves.
type torrentState struct {
	storage     *storageinfo.StorageInfo
	pieceHashes [][sha1.Size]byte
	files       []*diskio.File
	assemblers  map[blockinfo.PieceIndex]*piece.Assembler
	pieceAlerts chan<- PieceCompletion
	readCache   *pieceReadCache
}

func newTorrentState(storage *storageinfo.StorageInfo, pieceHashes [][sha1.Size]byte) (*torrentState, error) {
	if len(pieceHashes) != int(storage.PieceCount) {
		return nil, fmt.Errorf("disk: %d piece hashes for %d pieces", len(pieceHashes), storage.PieceCount)
	}

	files := make([]*diskio.File, len(storage.Files))
	for i, fi := range storage.Files {
		f, err := diskio.Open(filepath.Join(storage.DownloadDir, fi.Path), fi)
		if err != nil {
			for _, opened := range files[:i] {
				opened.Close()
			}
			return nil, fmt.Errorf("disk: open %s: %w", fi.Path, err)
		}
		files[i] = f
	}

	return &torrentState{
		storage:     storage,
		pieceHashes: pieceHashes,
		files:       files,
		assemblers:  make(map[blockinfo.PieceIndex]*piece.Assembler),
		readCache:   newPieceReadCache(pieceReadCacheCapacity),
	}, nil
}

func (t *torrentState) close() {
	for _, f := range t.files {
		f.Close()
	}
}

// sendCompletion delivers a piece-completion alert to the torrent's
// coordinator. The channel is sized generously by the coordinator so this
// practically never blocks the disk worker.
func (t *torrentState) sendCompletion(c PieceCompletion) {
	if t.pieceAlerts == nil {
		return
	}
	t.pieceAlerts <- c
}

// validateBlock checks block_info against storage per spec.md §4.4.1 step 1.
func (t *torrentState) validateBlock(info blockinfo.BlockInfo) error {
	if info.PieceIndex >= t.storage.PieceCount {
		return fmt.Errorf("disk: %w: piece %d >= piece count %d", ErrInvalidBlockInfo, info.PieceIndex, t.storage.PieceCount)
	}
	pieceLen := t.storage.PieceLength(info.PieceIndex)
	if info.Length == 0 || info.Length > blockinfo.MaxBlockLength {
		return fmt.Errorf("disk: %w: block length %d", ErrInvalidBlockInfo, info.Length)
	}
	if uint64(info.Offset)+uint64(info.Length) > uint64(pieceLen) {
		return fmt.Errorf("disk: %w: block %d+%d exceeds piece length %d", ErrInvalidBlockInfo, info.Offset, info.Length, pieceLen)
	}
	return nil
}

// assemblerFor returns the in-progress assembler for a piece, creating one
// on first block arrival. Its file range and expected hash are derived from
// storage, never from the caller.
func (t *torrentState) assemblerFor(index blockinfo.PieceIndex) *piece.Assembler {
	if a, ok := t.assemblers[index]; ok {
		return a
	}

	pieceLen := t.storage.PieceLength(index)
	start, end := t.storage.PieceByteRange(index)
	lo, hi := t.storage.FileRange(start, end-start)

	a := piece.NewAssembler(index, pieceLen, t.pieceHashes[index], lo, hi)
	t.assemblers[index] = a
	return a
}

func (t *torrentState) pieceBaseOffset(index blockinfo.PieceIndex) uint64 {
	start, _ := t.storage.PieceByteRange(index)
	return start
}
