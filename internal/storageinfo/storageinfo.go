// Package storageinfo describes a torrent's on-disk layout: the ordered
// list of files that make up its content when viewed as one contiguous
// byte array, and the arithmetic that clips an absolute byte range against
// a single file's extent.
package storageinfo

import (
	"fmt"
	"path/filepath"
)

// FileInfo describes one file within a torrent's layout.
type FileInfo struct {
	// Path is the file's location relative to the download directory.
	Path string
	// Len is the file's length in bytes.
	Len uint64
	// TorrentOffset is the byte offset of this file's first byte within
	// the torrent, when all files are viewed as one contiguous array.
	// Always 0 for a single-file torrent.
	TorrentOffset uint64
}

// FileSlice is the intersection of an absolute byte range with one file's
// extent, expressed as an intra-file offset and a length.
type FileSlice struct {
	Offset uint64
	Len    uint64
}

// StorageInfo is the full on-disk layout of one torrent.
type StorageInfo struct {
	PieceCount    uint32
	PieceLen      uint32
	LastPieceLen  uint32
	DownloadLen   uint64
	DownloadDir   string
	Files         []FileInfo
}

// New validates and constructs a StorageInfo, assigning each file's
// TorrentOffset and setting DownloadLen to the sum of the file lengths. It
// rejects any file with an empty, absolute, or root path or a zero length,
// mirroring the FileInfo invariants in the data model.
func New(pieceCount uint32, pieceLen, lastPieceLen uint32, downloadDir string, files []FileInfo) (*StorageInfo, error) {
	var total uint64
	offset := uint64(0)
	for i := range files {
		f := &files[i]
		if f.Path == "" || filepath.IsAbs(f.Path) || f.Path == "/" {
			return nil, fmt.Errorf("storageinfo: invalid file path %q", f.Path)
		}
		if f.Len == 0 {
			return nil, fmt.Errorf("storageinfo: file %q has zero length", f.Path)
		}
		f.TorrentOffset = offset
		offset += f.Len
		total += f.Len
	}

	return &StorageInfo{
		PieceCount:   pieceCount,
		PieceLen:     pieceLen,
		LastPieceLen: lastPieceLen,
		DownloadLen:  total,
		DownloadDir:  downloadDir,
		Files:        files,
	}, nil
}

// PieceLength returns the length in bytes of piece index, honoring the
// shorter final piece.
func (s *StorageInfo) PieceLength(index uint32) uint32 {
	if index == s.PieceCount-1 {
		return s.LastPieceLen
	}
	return s.PieceLen
}

// GetSlice clips the absolute byte range [torrentOffset, torrentOffset+remaining)
// against file's extent, returning the portion that falls within it. It is
// the caller's responsibility to only call this for a file that the range
// genuinely overlaps; an empty result here would mean the range was
// believed to span fewer files than it actually does.
func (f FileInfo) GetSlice(torrentOffset, remaining uint64) FileSlice {
	fileEnd := f.TorrentOffset + f.Len

	start := torrentOffset
	if start < f.TorrentOffset {
		start = f.TorrentOffset
	}
	end := torrentOffset + remaining
	if end > fileEnd {
		end = fileEnd
	}
	if end <= start {
		return FileSlice{}
	}

	return FileSlice{
		Offset: start - f.TorrentOffset,
		Len:    end - start,
	}
}

// FileRange returns the [lo, hi) contiguous range of file indices into
// Files whose torrent-offset extents intersect the absolute byte range
// [start, start+length).
func (s *StorageInfo) FileRange(start, length uint64) (lo, hi int) {
	end := start + length
	lo, hi = -1, -1
	for i, f := range s.Files {
		fileStart := f.TorrentOffset
		fileEnd := fileStart + f.Len
		if fileEnd <= start || fileStart >= end {
			continue
		}
		if lo == -1 {
			lo = i
		}
		hi = i + 1
	}
	if lo == -1 {
		return 0, 0
	}
	return lo, hi
}

// PieceByteRange returns the absolute [start, end) byte range of piece
// index within the torrent.
func (s *StorageInfo) PieceByteRange(index uint32) (start, end uint64) {
	start = uint64(index) * uint64(s.PieceLen)
	end = start + uint64(s.PieceLength(index))
	return start, end
}
