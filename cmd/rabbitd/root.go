package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/prxssh/rabbitdisk/internal/config"
	"github.com/prxssh/rabbitdisk/internal/engine"
	"github.com/prxssh/rabbitdisk/internal/logging"
	"github.com/prxssh/rabbitdisk/internal/meta"
	"github.com/prxssh/rabbitdisk/internal/torrentctl"
)

var (
	torrentFile string
	downloadDir string
	verbose     bool

	rootCmd = &cobra.Command{
		Use:   "rabbitd",
		Short: "rabbitd runs the disk/piece/routing core of a BitTorrent engine against a single torrent file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
)

func init() {
	rootCmd.Flags().StringVarP(&torrentFile, "torrent", "t", "", "path to a .torrent metainfo file (required)")
	rootCmd.Flags().StringVarP(&downloadDir, "download-dir", "d", "", "directory to download into (defaults to the configured default)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	_ = rootCmd.MarkFlagRequired("torrent")
}

func run(ctx context.Context) error {
	log := setupLogger()

	if err := config.Init(); err != nil {
		return fmt.Errorf("rabbitd: initializing config: %w", err)
	}
	cfg := config.Load()

	dir := downloadDir
	if dir == "" {
		dir = cfg.DefaultDownloadDir
	}

	data, err := os.ReadFile(torrentFile)
	if err != nil {
		return fmt.Errorf("rabbitd: reading torrent file: %w", err)
	}
	m, err := meta.ParseMetainfo(data)
	if err != nil {
		return fmt.Errorf("rabbitd: parsing metainfo: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup := engine.New(log)
	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	id, _, err := sup.AddTorrent(engine.AddTorrentParams{
		Meta:        m,
		DownloadDir: dir,
		ClientID:    torrentctl.PeerID(cfg.ClientID),
	})
	if err != nil {
		cancel()
		<-runDone
		return fmt.Errorf("rabbitd: adding torrent: %w", err)
	}
	log.Info("torrent registered", "torrent", id, "name", m.Info.Name, "size", m.Size())

	for {
		select {
		case <-ctx.Done():
			return <-runDone
		case alert, ok := <-sup.Alerts():
			if !ok {
				return <-runDone
			}
			logAlert(log, alert)
		}
	}
}

func logAlert(log *slog.Logger, alert engine.Alert) {
	switch {
	case alert.Allocation != nil:
		log.Error("torrent allocation failed", "torrent", alert.TorrentID, "error", alert.Allocation)
	case alert.Coordinator != nil && alert.Coordinator.PieceErr != nil:
		log.Error("piece write failed", "torrent", alert.TorrentID, "piece", alert.Coordinator.PieceErr.Index, "error", alert.Coordinator.PieceErr.Err)
	case alert.Coordinator != nil && alert.Coordinator.Stats != nil:
		log.Debug("torrent stats", "torrent", alert.TorrentID, "down", alert.Coordinator.Stats.DownloadRateBytes, "up", alert.Coordinator.Stats.UploadRateBytes)
	default:
		log.Info("torrent allocated", "torrent", alert.TorrentID)
	}
}

func setupLogger() *slog.Logger {
	opts := logging.DefaultOptions()
	if verbose {
		opts.SlogOpts.Level = slog.LevelDebug
		opts.SlogOpts.AddSource = true
	}

	log := logging.New(os.Stderr, &opts, "rabbitd")
	slog.SetDefault(log)
	return log
}
