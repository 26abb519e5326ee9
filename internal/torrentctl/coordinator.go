package torrentctl

import (
	"context"
	"log/slog"
	"net/netip"

	"github.com/prxssh/rabbitdisk/internal/avg"
	"github.com/prxssh/rabbitdisk/internal/piecepicker"
)

// Coordinator is the per-torrent task described in spec.md §4.5: it owns
// the shared Context (picker, storage, ids), consumes piece-completion and
// peer-state commands, and routes notifications back out to peer sessions.
// It never touches disk itself.
type Coordinator struct {
	log *slog.Logger
	ctx *Context

	cmd    chan Command
	alerts chan<- Alert

	peers map[netip.AddrPort]*peerInfo

	torrentStats StatsSnapshot
}

type peerInfo struct {
	id     PeerID
	notify chan<- PeerNotification
	stats  peerStats
}

type peerStats struct {
	downloadRate avg.SlidingAvg
	uploadRate   avg.SlidingAvg
	roundTrip    avg.SlidingAvg
}

// New builds a coordinator and the Context its peer sessions will share.
// cmdBuf sizes the coordinator's own command channel; pass 0 for an
// unbuffered channel if every sender already runs on its own goroutine.
func New(p Params, cmdBuf int, log *slog.Logger) (*Coordinator, *Context) {
	if log == nil {
		log = slog.Default()
	}

	cmd := make(chan Command, cmdBuf)

	picker := piecepicker.NewPicker(int64(p.Storage.DownloadLen), int32(p.Storage.PieceLen), p.PieceHashes, p.PickerCfg)
	for _, idx := range p.OwnPieces {
		picker.MarkPieceOwned(idx)
	}

	ctx := &Context{
		ID:       p.ID,
		InfoHash: p.InfoHash,
		ClientID: p.ClientID,
		Storage:  p.Storage,
		Picker:   picker,
		Commands: cmd,
		Disk:     p.Disk,
	}

	c := &Coordinator{
		log:    log.With("component", "torrentctl", "torrent", p.ID),
		ctx:    ctx,
		cmd:    cmd,
		alerts: p.Alerts,
		peers:  make(map[netip.AddrPort]*peerInfo),
	}

	return c, ctx
}

// Commands returns the channel other tasks (peer sessions, the disk
// worker's completion forwarder) send coordinator commands on.
func (c *Coordinator) Commands() chan<- Command {
	return c.cmd
}

// Run drains commands until ctx is cancelled or a ShutdownCmd arrives.
func (c *Coordinator) Run(ctx context.Context) error {
	c.log.Info("torrent coordinator started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd, ok := <-c.cmd:
			if !ok {
				return nil
			}

			switch m := cmd.(type) {
			case PieceCompletionCmd:
				c.handlePieceCompletion(m)
			case ReadErrorCmd:
				c.handleReadError(m)
			case PeerConnectedCmd:
				c.handlePeerConnected(m)
			case PeerGoneCmd:
				c.handlePeerGone(m)
			case PeerStateCmd:
				c.handlePeerState(m)
			case ShutdownCmd:
				c.handleShutdown()
				return nil
			}
		}
	}
}

func (c *Coordinator) sendAlert(a Alert) {
	if c.alerts == nil {
		return
	}
	a.TorrentID = int(c.ctx.ID)
	c.alerts <- a
}

func (c *Coordinator) handlePieceCompletion(m PieceCompletionCmd) {
	if m.Err != nil {
		c.log.Error("piece write failed", "piece", m.Index, "error", m.Err)
		c.sendAlert(Alert{PieceErr: &PieceWriteAlert{Index: m.Index, Err: m.Err}})
		return
	}

	if !m.IsValid {
		c.log.Warn("piece failed verification, requeuing", "piece", m.Index)
		c.ctx.Picker.RequeuePiece(int(m.Index))
		return
	}

	c.log.Info("piece complete", "piece", m.Index)
	c.ctx.Picker.MarkPieceOwned(int(m.Index))
	c.broadcast(HaveNotification{Piece: m.Index})
}

func (c *Coordinator) handleReadError(m ReadErrorCmd) {
	c.log.Error("read failed", "piece", m.Info.PieceIndex, "offset", m.Info.Offset, "error", m.Err)
	if m.ReplyTo != nil {
		m.ReplyTo <- ReadErrorNotification{Info: m.Info, Err: m.Err}
	}
}

func (c *Coordinator) handlePeerConnected(m PeerConnectedCmd) {
	c.peers[m.Addr] = &peerInfo{id: m.ID, notify: m.Notify}
	c.log.Debug("peer connected", "addr", m.Addr)
}

func (c *Coordinator) handlePeerGone(m PeerGoneCmd) {
	delete(c.peers, m.Addr)
	c.ctx.Picker.OnPeerGone(m.Addr)
	c.log.Debug("peer gone", "addr", m.Addr)
}

func (c *Coordinator) handlePeerState(m PeerStateCmd) {
	p, ok := c.peers[m.Addr]
	if !ok {
		return
	}

	p.stats.downloadRate.Update(m.DownloadRateBytes)
	p.stats.uploadRate.Update(m.UploadRateBytes)
	p.stats.roundTrip.Update(m.RoundTripMicros)

	c.torrentStats.DownloadRateBytes.Update(m.DownloadRateBytes)
	c.torrentStats.UploadRateBytes.Update(m.UploadRateBytes)
	c.torrentStats.RoundTripMicros.Update(m.RoundTripMicros)
}

func (c *Coordinator) handleShutdown() {
	c.log.Info("torrent coordinator shutting down")
	c.broadcast(ShutdownNotification{})
	c.sendAlert(Alert{Stats: &c.torrentStats})
}

func (c *Coordinator) broadcast(n PeerNotification) {
	for _, p := range c.peers {
		if p.notify == nil {
			continue
		}
		p.notify <- n
	}
}
