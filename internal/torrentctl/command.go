// Package torrentctl implements the per-torrent coordinator: the task that
// owns a torrent's shared piece picker, routes piece-completion and peer
// events, and reports alerts upward. It performs no disk I/O itself.
package torrentctl

import (
	"net/netip"

	"github.com/prxssh/rabbitdisk/internal/avg"
	"github.com/prxssh/rabbitdisk/internal/blockinfo"
)

// PeerID identifies a peer for the lifetime of a connection, the 20-byte
// value advertised during the protocol handshake.
type PeerID [20]byte

// Command is the closed set of messages a torrent coordinator accepts.
type Command interface {
	isCommand()
}

// PieceCompletionCmd mirrors a disk.PieceCompletion: on a valid piece the
// coordinator marks it owned and broadcasts "have"; on an invalid piece it
// requeues the piece for download; a non-nil Err means the write itself
// failed and is only logged and alerted on, never retried automatically.
type PieceCompletionCmd struct {
	Index   blockinfo.PieceIndex
	IsValid bool
	Err     error
}

// ReadErrorCmd reports a failed disk read back to the peer session that
// requested it, through the ReplyTo channel carried in the command itself.
type ReadErrorCmd struct {
	Info    blockinfo.BlockInfo
	Err     error
	ReplyTo chan<- PeerNotification
}

// PeerConnectedCmd records a newly connected peer's identity and gives the
// coordinator a channel to push notifications (have, shutdown) back to its
// session.
type PeerConnectedCmd struct {
	Addr   netip.AddrPort
	ID     PeerID
	Notify chan<- PeerNotification
}

// PeerGoneCmd drops a peer's bookkeeping (picker assignments, stats) after
// its session ends.
type PeerGoneCmd struct {
	Addr netip.AddrPort
}

// PeerStateCmd carries a periodic throughput/latency sample from a peer
// session, folded into its running averages and the torrent-wide totals.
type PeerStateCmd struct {
	Addr              netip.AddrPort
	DownloadRateBytes int64
	UploadRateBytes   int64
	RoundTripMicros   int64
}

// ShutdownCmd tells every connected peer session to stop, then the
// coordinator itself exits once they have all been notified.
type ShutdownCmd struct{}

func (PieceCompletionCmd) isCommand() {}
func (ReadErrorCmd) isCommand()       {}
func (PeerConnectedCmd) isCommand()   {}
func (PeerGoneCmd) isCommand()        {}
func (PeerStateCmd) isCommand()       {}
func (ShutdownCmd) isCommand()        {}

// PeerNotification is what the coordinator pushes down to a peer session's
// own channel; peer-session wiring itself is out of scope here (§1).
type PeerNotification interface {
	isPeerNotification()
}

// HaveNotification tells a peer session the torrent now owns a piece, so it
// can advertise it.
type HaveNotification struct {
	Piece blockinfo.PieceIndex
}

// ReadErrorNotification forwards a failed read back to the session that
// requested the block.
type ReadErrorNotification struct {
	Info blockinfo.BlockInfo
	Err  error
}

// ShutdownNotification tells a peer session to close down.
type ShutdownNotification struct{}

func (HaveNotification) isPeerNotification()      {}
func (ReadErrorNotification) isPeerNotification() {}
func (ShutdownNotification) isPeerNotification()  {}

// Alert is what the coordinator reports on its upward alert channel:
// piece-write failures and the final per-torrent stats snapshot.
type Alert struct {
	TorrentID int
	PieceErr  *PieceWriteAlert
	Stats     *StatsSnapshot
}

// PieceWriteAlert reports a piece whose assembled bytes failed to write.
type PieceWriteAlert struct {
	Index blockinfo.PieceIndex
	Err   error
}

// StatsSnapshot is the aggregated, torrent-wide view of the sliding
// averages accumulated from every connected peer.
type StatsSnapshot struct {
	DownloadRateBytes avg.SlidingAvg
	UploadRateBytes   avg.SlidingAvg
	RoundTripMicros   avg.SlidingAvg
}
