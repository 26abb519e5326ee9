package disk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prxssh/rabbitdisk/internal/blockinfo"
	"github.com/prxssh/rabbitdisk/internal/piece"
	"github.com/prxssh/rabbitdisk/internal/torrentid"
)

// Worker is the single task that owns every torrent's disk state. Create
// one with NewWorker, send it commands over Commands(), and run its loop
// with Run until the context is cancelled or a ShutdownCmd arrives.
type Worker struct {
	log      *slog.Logger
	cmd      chan Command
	alerts   chan<- AllocationAlert
	torrents map[torrentid.ID]*torrentState
}

// NewWorker constructs a disk worker that reports NewTorrent outcomes on
// alerts, the engine's shared upward channel.
func NewWorker(alerts chan<- AllocationAlert, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		log:      log.With("component", "disk"),
		cmd:      make(chan Command),
		alerts:   alerts,
		torrents: make(map[torrentid.ID]*torrentState),
	}
}

// Commands returns the channel other tasks send disk commands on.
func (w *Worker) Commands() chan<- Command {
	return w.cmd
}

// Run drains the command channel until ctx is cancelled or a ShutdownCmd
// is received, dispatching each command to the matching torrent's disk
// state. IO failures during allocation, write, or read are reported
// upward and never terminate the loop; only an invalid torrent id —
// a programming error per spec — propagates out of Run.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("disk worker started")
	defer w.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd, ok := <-w.cmd:
			if !ok {
				return nil
			}

			switch c := cmd.(type) {
			case NewTorrentCmd:
				w.handleNewTorrent(c)
			case WriteBlockCmd:
				if err := w.handleWriteBlock(c); err != nil {
					return err
				}
			case ReadBlockCmd:
				if err := w.handleReadBlock(c); err != nil {
					return err
				}
			case ShutdownCmd:
				w.log.Info("disk worker shutting down")
				return nil
			default:
				w.log.Warn("unknown disk command", "type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (w *Worker) closeAll() {
	for _, t := range w.torrents {
		t.close()
	}
}

func (w *Worker) sendAlert(alert AllocationAlert) {
	if w.alerts == nil {
		return
	}
	w.alerts <- alert
}

func (w *Worker) handleNewTorrent(c NewTorrentCmd) {
	if _, exists := w.torrents[c.ID]; exists {
		w.log.Warn("torrent already allocated", "torrent", c.ID)
		w.sendAlert(AllocationAlert{ID: c.ID, Err: &AllocationError{AlreadyExists: true}})
		return
	}

	state, err := newTorrentState(c.Storage, c.PieceHashes)
	if err != nil {
		w.log.Error("torrent allocation failed", "torrent", c.ID, "error", err)
		w.sendAlert(AllocationAlert{ID: c.ID, Err: &AllocationError{Err: err}})
		return
	}

	state.pieceAlerts = c.PieceAlerts
	w.torrents[c.ID] = state
	w.log.Info("torrent allocated", "torrent", c.ID)
	w.sendAlert(AllocationAlert{ID: c.ID})
}

func (w *Worker) handleWriteBlock(c WriteBlockCmd) error {
	t, ok := w.torrents[c.ID]
	if !ok {
		w.log.Error("write block for unknown torrent", "torrent", c.ID)
		return fatalf("%w: %s", ErrInvalidTorrentID, c.ID)
	}

	if err := t.validateBlock(c.Info); err != nil {
		w.log.Warn("rejected block", "torrent", c.ID, "piece", c.Info.PieceIndex, "error", err)
		return nil
	}

	assembler := t.assemblerFor(c.Info.PieceIndex)
	if dup := assembler.EnqueueBlock(c.Info.Offset, c.Data); dup {
		w.log.Debug("duplicate block", "torrent", c.ID, "piece", c.Info.PieceIndex, "offset", c.Info.Offset)
	}

	if !assembler.IsComplete() {
		return nil
	}

	delete(t.assemblers, c.Info.PieceIndex)

	if !assembler.VerifyHash() {
		w.log.Warn("piece hash mismatch", "torrent", c.ID, "piece", c.Info.PieceIndex)
		t.sendCompletion(PieceCompletion{Index: c.Info.PieceIndex, IsValid: false})
		return nil
	}

	baseOffset := t.pieceBaseOffset(c.Info.PieceIndex)
	if err := assembler.Write(baseOffset, t.files); err != nil {
		w.log.Error("piece write failed", "torrent", c.ID, "piece", c.Info.PieceIndex, "error", err)
		t.sendCompletion(PieceCompletion{Index: c.Info.PieceIndex, Err: &WriteError{Err: err}})
		return nil
	}

	w.log.Info("piece written", "torrent", c.ID, "piece", c.Info.PieceIndex)
	t.readCache.invalidate(c.Info.PieceIndex)
	t.sendCompletion(PieceCompletion{Index: c.Info.PieceIndex, IsValid: true})
	return nil
}

func (w *Worker) handleReadBlock(c ReadBlockCmd) error {
	t, ok := w.torrents[c.ID]
	if !ok {
		w.log.Error("read block for unknown torrent", "torrent", c.ID)
		return fatalf("%w: %s", ErrInvalidTorrentID, c.ID)
	}

	if err := t.validateBlock(c.Info); err != nil {
		c.ReplyTo <- BlockResult{Info: c.Info, Err: &ReadError{Err: err}}
		return nil
	}

	blocks, ok := t.readCache.get(c.Info.PieceIndex)
	if !ok {
		pieceLen := t.storage.PieceLength(c.Info.PieceIndex)
		start, end := t.storage.PieceByteRange(c.Info.PieceIndex)
		lo, hi := t.storage.FileRange(start, end-start)

		read, err := piece.Read(start, lo, hi, t.files, pieceLen)
		if err != nil {
			w.log.Error("piece read failed", "torrent", c.ID, "piece", c.Info.PieceIndex, "error", err)
			c.ReplyTo <- BlockResult{Info: c.Info, Err: &ReadError{Err: err}}
			return nil
		}
		blocks = make([][]byte, len(read))
		for i, b := range read {
			blocks[i] = b.Bytes()
		}
		t.readCache.put(c.Info.PieceIndex, blocks)
	} else {
		w.log.Debug("piece read served from cache", "torrent", c.ID, "piece", c.Info.PieceIndex)
	}

	idx := c.Info.IndexInPiece()
	if int(idx) >= len(blocks) {
		c.ReplyTo <- BlockResult{Info: c.Info, Err: &ReadError{Err: fmt.Errorf("%w: block index %d out of range", ErrInvalidBlockInfo, idx)}}
		return nil
	}

	c.ReplyTo <- BlockResult{Info: c.Info, Data: blockinfo.NewCachedBlockData(blocks[idx])}
	return nil
}
