// Package engine is the top-level supervisor that mints torrent
// identities, owns the single disk worker shared by every torrent, and
// wires each torrent's coordinator to it. It is a thin stub at the
// boundary of this engine core: adding a torrent over the network
// (trackers, DHT, peer discovery) is an external collaborator's job,
// started here is only what spec.md actually names — disk worker,
// torrent coordinators, and the alert fan-out between them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/prxssh/rabbitdisk/internal/disk"
	"github.com/prxssh/rabbitdisk/internal/meta"
	"github.com/prxssh/rabbitdisk/internal/piecepicker"
	"github.com/prxssh/rabbitdisk/internal/storageinfo"
	"github.com/prxssh/rabbitdisk/internal/torrentctl"
	"github.com/prxssh/rabbitdisk/internal/torrentid"
)

// Alert is the engine-wide upward alert stream, merging disk allocation
// failures with per-torrent coordinator alerts (piece-write failures,
// periodic stats snapshots) into a single channel callers can select on.
type Alert struct {
	TorrentID   torrentid.ID
	Allocation  *disk.AllocationError
	Coordinator *torrentctl.Alert
}

type torrentEntry struct {
	ctx         *torrentctl.Context
	coordinator *torrentctl.Coordinator
	pieceAlerts chan disk.PieceCompletion
}

// Supervisor owns the disk worker and every registered torrent's
// coordinator. Its torrent id allocator is an explicit field, not a
// package-level atomic: lifetime and ownership both belong to whoever
// constructs a Supervisor, matching every other long-lived task in this
// engine (disk.Worker, torrentctl.Coordinator) taking its dependencies by
// construction rather than reaching for process-global state.
type Supervisor struct {
	log *slog.Logger

	diskWorker *disk.Worker
	diskAlerts chan disk.AllocationAlert
	ctlAlerts  chan torrentctl.Alert
	alerts     chan Alert

	mu        sync.Mutex
	allocator torrentid.Allocator
	torrents  map[torrentid.ID]*torrentEntry

	group *errgroup.Group
	gctx  context.Context
}

// cmdBuf sizes every command and alert channel the supervisor creates.
const cmdBuf = 32

// New constructs a Supervisor. Call Run to start its disk worker and
// begin accepting AddTorrent calls.
func New(log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "engine")

	diskAlerts := make(chan disk.AllocationAlert, cmdBuf)

	return &Supervisor{
		log:        log,
		diskWorker: disk.NewWorker(diskAlerts, log),
		diskAlerts: diskAlerts,
		ctlAlerts:  make(chan torrentctl.Alert, cmdBuf),
		alerts:     make(chan Alert, cmdBuf),
		torrents:   make(map[torrentid.ID]*torrentEntry),
	}
}

// Alerts returns the channel AllocationAlert and torrentctl.Alert values
// are reported on, unified as engine.Alert.
func (s *Supervisor) Alerts() <-chan Alert {
	return s.alerts
}

// Run starts the disk worker and the alert-forwarding loops, then blocks
// until ctx is cancelled. AddTorrent must only be called once Run has
// been started, since it schedules the new torrent's coordinator onto
// Run's own task group.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	s.mu.Lock()
	s.group, s.gctx = g, gctx
	s.mu.Unlock()

	g.Go(func() error { return s.diskWorker.Run(gctx) })
	g.Go(func() error { return s.forwardAllocationAlerts(gctx) })
	g.Go(func() error { return s.forwardCoordinatorAlerts(gctx) })

	<-gctx.Done()
	s.shutdown()

	return g.Wait()
}

func (s *Supervisor) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.torrents {
		t.coordinator.Commands() <- torrentctl.ShutdownCmd{}
	}
	s.diskWorker.Commands() <- disk.ShutdownCmd{}
}

func (s *Supervisor) forwardAllocationAlerts(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case a, ok := <-s.diskAlerts:
			if !ok {
				return nil
			}
			s.alerts <- Alert{TorrentID: a.ID, Allocation: a.Err}
		}
	}
}

func (s *Supervisor) forwardCoordinatorAlerts(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case a, ok := <-s.ctlAlerts:
			if !ok {
				return nil
			}
			alert := a
			s.alerts <- Alert{TorrentID: torrentid.ID(a.TorrentID), Coordinator: &alert}
		}
	}
}

// AddTorrentParams groups the inputs needed to register a new torrent.
type AddTorrentParams struct {
	Meta        *meta.Metainfo
	DownloadDir string
	ClientID    torrentctl.PeerID
	OwnPieces   []int // piece indices already verified at startup (resume)
	PickerCfg   *piecepicker.Config
}

// AddTorrent allocates disk state for m and starts its coordinator,
// returning the torrent's id and the Context peer sessions need to join
// it. The coordinator and its piece-completion forwarding loop are
// scheduled onto the task group started by Run.
func (s *Supervisor) AddTorrent(p AddTorrentParams) (torrentid.ID, *torrentctl.Context, error) {
	s.mu.Lock()
	if s.group == nil {
		s.mu.Unlock()
		return 0, nil, fmt.Errorf("engine: AddTorrent called before Run")
	}
	id := s.allocator.Next()
	group, gctx := s.group, s.gctx
	s.mu.Unlock()

	storage, err := storageFromMetainfo(p.Meta, p.DownloadDir)
	if err != nil {
		return 0, nil, fmt.Errorf("engine: %w", err)
	}

	pieceAlerts := make(chan disk.PieceCompletion, cmdBuf)
	s.diskWorker.Commands() <- disk.NewTorrentCmd{
		ID:          id,
		Storage:     storage,
		PieceHashes: p.Meta.Info.Pieces,
		PieceAlerts: pieceAlerts,
	}

	coordinator, cctx := torrentctl.New(torrentctl.Params{
		ID:          id,
		InfoHash:    p.Meta.InfoHash,
		ClientID:    p.ClientID,
		Storage:     storage,
		PieceHashes: p.Meta.Info.Pieces,
		OwnPieces:   p.OwnPieces,
		PickerCfg:   p.PickerCfg,
		Disk:        s.diskWorker.Commands(),
		Alerts:      s.ctlAlerts,
	}, cmdBuf, s.log)

	entry := &torrentEntry{ctx: cctx, coordinator: coordinator, pieceAlerts: pieceAlerts}

	s.mu.Lock()
	s.torrents[id] = entry
	s.mu.Unlock()

	group.Go(func() error { return coordinator.Run(gctx) })
	group.Go(func() error { return s.forwardPieceCompletions(gctx, coordinator, pieceAlerts) })

	return id, cctx, nil
}

func (s *Supervisor) forwardPieceCompletions(ctx context.Context, c *torrentctl.Coordinator, pieceAlerts <-chan disk.PieceCompletion) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case pc, ok := <-pieceAlerts:
			if !ok {
				return nil
			}
			var err error
			if pc.Err != nil {
				err = pc.Err
			}
			c.Commands() <- torrentctl.PieceCompletionCmd{Index: pc.Index, IsValid: pc.IsValid, Err: err}
		}
	}
}

// RemoveTorrent drops bookkeeping for id after its coordinator has
// already been told to shut down.
func (s *Supervisor) RemoveTorrent(id torrentid.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.torrents, id)
}

func storageFromMetainfo(m *meta.Metainfo, downloadDir string) (*storageinfo.StorageInfo, error) {
	pieceCount := uint32(len(m.Info.Pieces))
	pieceLen := uint32(m.Info.PieceLength)

	lastPieceLen := pieceLen
	if pieceCount > 0 {
		if rem := uint32(m.Size() % int64(pieceLen)); rem != 0 {
			lastPieceLen = rem
		}
	}

	files := metainfoFiles(m)

	return storageinfo.New(pieceCount, pieceLen, lastPieceLen, downloadDir, files)
}

func metainfoFiles(m *meta.Metainfo) []storageinfo.FileInfo {
	if len(m.Info.Files) == 0 {
		return []storageinfo.FileInfo{{Path: m.Info.Name, Len: uint64(m.Info.Length)}}
	}

	files := make([]storageinfo.FileInfo, len(m.Info.Files))
	for i, f := range m.Info.Files {
		files[i] = storageinfo.FileInfo{
			Path: filepath.Join(append([]string{m.Info.Name}, f.Path...)...),
			Len:  uint64(f.Length),
		}
	}
	return files
}
