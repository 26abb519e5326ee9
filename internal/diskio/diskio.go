// Package diskio provides the scoped read/write handle to one on-disk file
// that the piece assembler drives through bounded vectored I/O.
package diskio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/prxssh/rabbitdisk/internal/blockinfo"
	"github.com/prxssh/rabbitdisk/internal/iovecs"
	"github.com/prxssh/rabbitdisk/internal/storageinfo"
)

// ErrMissingData is returned when a read comes up short of the requested
// length, indicating the piece has not actually been allocated/downloaded
// on disk yet.
var ErrMissingData = errors.New("diskio: missing data")

// File is a read/write handle to one on-disk file, opened (and created if
// absent) up front, guarded by a reader/writer lock: readers are disk
// reads, the writer is any piece write. Writers are strictly serialized per
// file; reads may proceed concurrently with each other but never with a
// write.
type File struct {
	mu   sync.RWMutex
	f    *os.File
	Info storageinfo.FileInfo
}

// Open opens (creating if absent) the file at path, truncating/extending it
// to info.Len so that positional writes never need to grow it mid-flight.
func Open(path string, info storageinfo.FileInfo) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("diskio: mkdir %s: %w", filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diskio: open %s: %w", path, err)
	}
	if err := f.Truncate(int64(info.Len)); err != nil {
		f.Close()
		return nil, fmt.Errorf("diskio: truncate %s: %w", path, err)
	}

	return &File{f: f, Info: info}, nil
}

// Close releases the underlying file descriptor.
func (f *File) Close() error {
	return f.f.Close()
}

// Write issues a positional vectored write at slice.Offset, bounded by
// slice.Len, using BVIO over bufs. It returns the tail — the buffers, or
// the remaining fragment of a buffer, that weren't written because they
// fell past slice.Len — for the caller to hand to the next file in a
// multi-file piece write.
//
// The write is not guaranteed atomic: Write may need to call
// writeVectoredAt more than once, advancing the bounded view after each
// short transfer, to drain all of the bounded buffers.
func (f *File) Write(slice storageinfo.FileSlice, bufs [][]byte) ([][]byte, error) {
	if slice.Len == 0 {
		return bufs, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	bounded := iovecs.Bound(bufs, int(slice.Len))
	want := bounded.Len()
	written := 0
	for bounded.Len() > 0 {
		n, err := writeVectoredAt(f.f, bounded.Head(), int64(slice.Offset)+int64(written))
		bounded.Advance(n)
		written += n
		if err != nil {
			return nil, fmt.Errorf("diskio: write %s: %w", f.Info.Path, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("diskio: short write to %s: wrote %d of %d bytes", f.Info.Path, written, want)
		}
	}

	return bounded.IntoTail(), nil
}

// Read reads exactly slice.Len bytes from slice.Offset and splits them into
// shared, immutable MaxBlockLength-sized chunks (the last chunk possibly
// shorter). It returns ErrMissingData on a short read — this indicates the
// requested region of the file was never written.
func (f *File) Read(slice storageinfo.FileSlice) ([]blockinfo.BlockData, error) {
	if slice.Len == 0 {
		return nil, nil
	}

	buf := make([]byte, slice.Len)
	if err := f.readAt(slice, buf); err != nil {
		return nil, err
	}

	return splitIntoBlocks(buf), nil
}

// ReadInto reads exactly slice.Len bytes from slice.Offset, scattering them
// across bufs (pre-sized destination buffers, e.g. one per block of a
// piece) in order. It returns the unfilled remainder of bufs — the portion
// past slice.Len — for the caller to hand to the next file in a multi-file
// piece read, mirroring Write's tail contract on the read side.
func (f *File) ReadInto(slice storageinfo.FileSlice, bufs [][]byte) ([][]byte, error) {
	if slice.Len == 0 {
		return bufs, nil
	}

	flat := make([]byte, slice.Len)
	if err := f.readAt(slice, flat); err != nil {
		return nil, err
	}

	n := iovecs.Bound(bufs, int(slice.Len))
	filled := 0
	for _, b := range n.Head() {
		copy(b, flat[filled:filled+len(b)])
		filled += len(b)
	}

	return n.IntoTail(), nil
}

func (f *File) readAt(slice storageinfo.FileSlice, buf []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, err := f.f.ReadAt(buf, int64(slice.Offset))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("diskio: read %s: %w", f.Info.Path, err)
	}
	if uint64(n) != slice.Len {
		return ErrMissingData
	}
	return nil
}

func splitIntoBlocks(buf []byte) []blockinfo.BlockData {
	blockLen := int(blockinfo.MaxBlockLength)
	n := (len(buf) + blockLen - 1) / blockLen
	blocks := make([]blockinfo.BlockData, 0, n)
	for off := 0; off < len(buf); off += blockLen {
		end := off + blockLen
		if end > len(buf) {
			end = len(buf)
		}
		blocks = append(blocks, blockinfo.NewCachedBlockData(buf[off:end]))
	}
	return blocks
}
