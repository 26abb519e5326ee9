package disk

import "errors"

// ErrInvalidBlockInfo is returned from validateBlock when a block's
// piece index, offset, or length don't fit the torrent's declared layout.
var ErrInvalidBlockInfo = errors.New("disk: invalid block info")

// ErrInvalidTorrentID is the engine-fatal error raised when a command
// names a torrent the worker has no state for. Per spec.md §7 this is a
// programming error, never a recoverable condition surfaced to the user.
var ErrInvalidTorrentID = errors.New("disk: invalid torrent id")

// AllocationError is the result carried by a TorrentAllocation alert when
// NewTorrent could not be satisfied.
type AllocationError struct {
	// AlreadyExists is true when the torrent id was already allocated.
	AlreadyExists bool
	// Err is the underlying IO failure, set only when AlreadyExists is
	// false.
	Err error
}

func (e *AllocationError) Error() string {
	if e.AlreadyExists {
		return "disk: torrent already allocated"
	}
	return "disk: allocate torrent: " + e.Err.Error()
}

// WriteError wraps an IO failure encountered while writing a complete,
// hash-verified piece to disk.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return "disk: write piece: " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ReadError is the failure reported on the block-reply channel for a
// ReadBlock command: either the requested bytes were never written
// (MissingData), the block info itself was invalid, or the underlying read
// failed.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return "disk: read block: " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
