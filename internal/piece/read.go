package piece

import (
	"fmt"

	"github.com/prxssh/rabbitdisk/internal/blockinfo"
	"github.com/prxssh/rabbitdisk/internal/diskio"
)

// Read reads a piece's blocks back from the portion of the torrent on disk
// between [torrentPieceOffset, torrentPieceOffset+length), returning one
// shared, immutable MaxBlockLength-sized chunk per block (the last chunk
// possibly shorter).
//
// torrentPieceOffset is the absolute offset of the piece's first byte
// within the whole torrent; fileLo/fileHi is the file range the piece
// overlaps, from StorageInfo.FileRange. The read walks files in order,
// reading into one piece-sized buffer and copying it into block buffers so that
// block boundaries stay aligned to MaxBlockLength even when a block
// straddles two files.
func Read(torrentPieceOffset uint64, fileLo, fileHi int, files []*diskio.File, length uint32) ([]blockinfo.BlockData, error) {
	overlapping := files[fileLo:fileHi]
	if len(overlapping) == 0 {
		return nil, fmt.Errorf("piece: read spans no files")
	}

	blockCount := blockinfo.BlockCount(length)
	owned := make([][]byte, blockCount)
	bufs := make([][]byte, blockCount)
	for i := range owned {
		owned[i] = make([]byte, blockinfo.BlockLen(length, uint32(i)))
		bufs[i] = owned[i]
	}

	readOffset := torrentPieceOffset
	readTotal := uint64(0)
	total := uint64(length)

	for _, file := range overlapping {
		remaining := total - readTotal
		slice := file.Info.GetSlice(readOffset, remaining)
		if slice.Len == 0 {
			return nil, fmt.Errorf("piece: read spans fewer files than the file range claims")
		}

		tail, err := file.ReadInto(slice, bufs)
		if err != nil {
			return nil, fmt.Errorf("piece: read from %s: %w", file.Info.Path, err)
		}
		bufs = tail

		readOffset += slice.Len
		readTotal += slice.Len
	}

	if readTotal != total {
		return nil, fmt.Errorf("piece: read %d bytes, expected %d", readTotal, total)
	}
	if len(bufs) != 0 {
		return nil, fmt.Errorf("piece: read left %d blocks unfilled", len(bufs))
	}

	blocks := make([]blockinfo.BlockData, blockCount)
	for i, b := range owned {
		blocks[i] = blockinfo.NewCachedBlockData(b)
	}
	return blocks, nil
}
