// Package disk implements the single long-lived worker that owns every
// torrent's on-disk state: its open file handles and the piece assemblers
// for blocks currently in flight. All other tasks reach disk state only by
// sending a Command over the worker's channel; the worker itself never
// blocks on anything but that channel and the underlying filesystem.
package disk

import (
	"crypto/sha1"
	"fmt"

	"github.com/prxssh/rabbitdisk/internal/blockinfo"
	"github.com/prxssh/rabbitdisk/internal/storageinfo"
	"github.com/prxssh/rabbitdisk/internal/torrentid"
)

// AllocationAlert is the result of a NewTorrent command, delivered on the
// worker's shared upward channel (the engine's alert port).
type AllocationAlert struct {
	ID  torrentid.ID
	Err *AllocationError
}

// PieceCompletion is delivered to the torrent-specific reply channel given
// in NewTorrent whenever a piece finishes assembling, whether or not it
// turned out valid.
type PieceCompletion struct {
	Index   blockinfo.PieceIndex
	IsValid bool
	Err     *WriteError
}

// BlockResult is delivered to a ReadBlock command's own reply channel.
type BlockResult struct {
	Info blockinfo.BlockInfo
	Data blockinfo.BlockData
	Err  *ReadError
}

// Command is the closed set of requests the disk worker accepts, mirroring
// spec.md's four-variant protocol.
type Command interface {
	isCommand()
}

// NewTorrentCmd allocates disk state for a torrent. The result comes back
// as an AllocationAlert on the worker-wide upward channel; PieceAlerts is the
// torrent-specific channel every subsequent WriteBlock for this id reports
// completions to.
type NewTorrentCmd struct {
	ID          torrentid.ID
	Storage     *storageinfo.StorageInfo
	PieceHashes [][sha1.Size]byte
	PieceAlerts chan<- PieceCompletion
}

// WriteBlockCmd queues a block of data for eventual writing to disk.
type WriteBlockCmd struct {
	ID   torrentid.ID
	Info blockinfo.BlockInfo
	Data []byte
}

// ReadBlockCmd requests a block be read back from disk and delivered on
// ReplyTo.
type ReadBlockCmd struct {
	ID      torrentid.ID
	Info    blockinfo.BlockInfo
	ReplyTo chan<- BlockResult
}

// ShutdownCmd breaks the worker's command loop and releases every open
// file handle.
type ShutdownCmd struct{}

func (NewTorrentCmd) isCommand() {}
func (WriteBlockCmd) isCommand() {}
func (ReadBlockCmd) isCommand()  {}
func (ShutdownCmd) isCommand()   {}

// fatalError marks an error that must propagate out of the worker's Run,
// per spec.md §7: an invalid torrent id inside a disk command is a
// programming error, not a recoverable one.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatalf(format string, args ...any) error {
	return &fatalError{err: fmt.Errorf(format, args...)}
}
