package torrentctl

import (
	"crypto/sha1"

	"github.com/prxssh/rabbitdisk/internal/disk"
	"github.com/prxssh/rabbitdisk/internal/piecepicker"
	"github.com/prxssh/rabbitdisk/internal/storageinfo"
	"github.com/prxssh/rabbitdisk/internal/torrentid"
)

// Context is the state peer sessions need from a torrent: identity,
// storage layout, the shared picker, and the channels to reach the disk
// worker and the coordinator itself. Peer sessions hold a reference to one
// Context for their torrent's lifetime.
//
// Picker has its own internal locking (see internal/piecepicker), so
// concurrent peer sessions may call into it directly without going through
// the coordinator; everything else here is read-only after construction.
type Context struct {
	ID       torrentid.ID
	InfoHash [sha1.Size]byte
	ClientID PeerID
	Storage  *storageinfo.StorageInfo
	Picker   *piecepicker.Picker

	Commands chan<- Command
	Disk     chan<- disk.Command
}

// Params groups the inputs needed to construct a torrent coordinator,
// mirroring the torrent task's own constructor parameters.
type Params struct {
	ID          torrentid.ID
	InfoHash    [sha1.Size]byte
	ClientID    PeerID
	Storage     *storageinfo.StorageInfo
	PieceHashes [][sha1.Size]byte
	OwnPieces   []int // piece indices already verified at startup (resume)
	PickerCfg   *piecepicker.Config

	Disk   chan<- disk.Command
	Alerts chan<- Alert
}
