package torrentctl

import (
	"context"
	"crypto/sha1"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/prxssh/rabbitdisk/internal/blockinfo"
	"github.com/prxssh/rabbitdisk/internal/piecepicker"
	"github.com/prxssh/rabbitdisk/internal/storageinfo"
)

func testParams(t *testing.T, alerts chan<- Alert) Params {
	t.Helper()

	pieceLen := uint32(2 * blockinfo.MaxBlockLength)
	hashes := [][sha1.Size]byte{{}, {}, {}}

	dir := t.TempDir()
	storage, err := storageinfo.New(uint32(len(hashes)), pieceLen, pieceLen, dir, []storageinfo.FileInfo{
		{Path: filepath.Join("torrentctl_test", "file"), Len: uint64(len(hashes)) * uint64(pieceLen)},
	})
	if err != nil {
		t.Fatalf("storageinfo.New: %v", err)
	}

	return Params{
		ID:          1,
		Storage:     storage,
		PieceHashes: hashes,
		Alerts:      alerts,
	}
}

func startCoordinator(t *testing.T, alerts chan<- Alert) (*Coordinator, *Context, func()) {
	t.Helper()

	c, ctx := New(testParams(t, alerts), 16, nil)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()

	stop := func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("coordinator did not stop")
		}
	}
	return c, ctx, stop
}

func TestPieceCompletionBroadcastsHave(t *testing.T) {
	c, ctx, stop := startCoordinator(t, nil)
	defer stop()

	notify := make(chan PeerNotification, 4)
	peer := netip.MustParseAddrPort("127.0.0.1:1")

	c.Commands() <- PeerConnectedCmd{Addr: peer, Notify: notify}
	c.Commands() <- PieceCompletionCmd{Index: 0, IsValid: true}

	select {
	case n := <-notify:
		have, ok := n.(HaveNotification)
		if !ok || have.Piece != 0 {
			t.Fatalf("expected HaveNotification{Piece:0}, got %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for have notification")
	}

	if got := ctx.Picker.PieceStates()[0]; got != piecepicker.PieceStateCompleted {
		t.Fatalf("expected piece 0 marked owned in picker, got state %v", got)
	}
}

func TestPieceCompletionInvalidRequeuesPiece(t *testing.T) {
	c, ctx, stop := startCoordinator(t, nil)
	defer stop()

	// Mark the piece owned in the picker first, so requeuing has completed
	// state to undo.
	ctx.Picker.MarkPieceOwned(1)
	if got := ctx.Picker.PieceStates()[1]; got != piecepicker.PieceStateCompleted {
		t.Fatalf("setup: expected piece 1 owned before requeue, got %v", got)
	}

	c.Commands() <- PieceCompletionCmd{Index: 1, IsValid: false}

	deadline := time.After(time.Second)
	for {
		if ctx.Picker.PieceStates()[1] != piecepicker.PieceStateCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for piece to be requeued")
		case <-time.After(time.Millisecond):
		}
	}

	if got := ctx.Picker.PieceStates()[1]; got != piecepicker.PieceStateNotStarted {
		t.Fatalf("expected piece 1 requeued to not-started, got %v", got)
	}
}

func TestPieceCompletionErrorAlerts(t *testing.T) {
	alerts := make(chan Alert, 4)
	c, _, stop := startCoordinator(t, alerts)
	defer stop()

	c.Commands() <- PieceCompletionCmd{Index: 2, Err: context.DeadlineExceeded}

	select {
	case a := <-alerts:
		if a.PieceErr == nil || a.PieceErr.Index != 2 {
			t.Fatalf("expected PieceErr for index 2, got %+v", a)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for alert")
	}
}

func TestReadErrorNotifiesOriginatingPeer(t *testing.T) {
	c, _, stop := startCoordinator(t, nil)
	defer stop()

	replyTo := make(chan PeerNotification, 1)
	info := blockinfo.BlockInfo{PieceIndex: 1, Offset: 0, Length: blockinfo.MaxBlockLength}

	c.Commands() <- ReadErrorCmd{Info: info, Err: context.DeadlineExceeded, ReplyTo: replyTo}

	select {
	case n := <-replyTo:
		re, ok := n.(ReadErrorNotification)
		if !ok || re.Info.PieceIndex != 1 {
			t.Fatalf("expected ReadErrorNotification for piece 1, got %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for read error notification")
	}
}

func TestShutdownBroadcastsAndEmitsStats(t *testing.T) {
	alerts := make(chan Alert, 4)
	c, _, stop := startCoordinator(t, alerts)
	defer stop()

	notify := make(chan PeerNotification, 4)
	peer := netip.MustParseAddrPort("127.0.0.1:2")
	c.Commands() <- PeerConnectedCmd{Addr: peer, Notify: notify}
	c.Commands() <- PeerStateCmd{Addr: peer, DownloadRateBytes: 1024, UploadRateBytes: 512, RoundTripMicros: 5000}
	c.Commands() <- ShutdownCmd{}

	select {
	case n := <-notify:
		if _, ok := n.(ShutdownNotification); !ok {
			t.Fatalf("expected ShutdownNotification, got %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for shutdown notification")
	}

	select {
	case a := <-alerts:
		if a.Stats == nil {
			t.Fatal("expected final stats alert")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for final stats alert")
	}
}

func TestPeerGoneIsRouted(t *testing.T) {
	c, ctx, stop := startCoordinator(t, nil)
	defer stop()

	peer := netip.MustParseAddrPort("127.0.0.1:3")
	c.Commands() <- PeerConnectedCmd{Addr: peer}
	c.Commands() <- PeerGoneCmd{Addr: peer}

	// OnPeerGone on an unknown peer is a no-op; this just exercises the
	// routing without racing the coordinator's own goroutine.
	if ctx.Picker == nil {
		t.Fatal("expected context to carry a picker")
	}
}
