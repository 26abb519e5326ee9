// Package config holds the ambient, in-memory defaults the rest of the
// engine reads: download location, client identity, network timeouts, and
// request/endgame knobs for the piece picker. Nothing here is fed into a
// piecepicker.Config automatically. Loading configuration from disk, flags, or
// the environment is out of scope; this package only owns sensible
// built-in defaults and a process-wide holder for them.
package config

import (
	"crypto/rand"
	"crypto/sha1"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"
)

// Config defines behavior and resource limits shared across torrents.
type Config struct {
	// ========== Identity / Paths ==========

	// DefaultDownloadDir is the default directory where new torrents are
	// saved. Changing this only affects new torrents; existing torrents
	// continue downloading to their original location.
	DefaultDownloadDir string

	// ClientID is this client's 20-byte peer id, sent in every handshake.
	ClientID [sha1.Size]byte

	// ========== Networking ==========

	// ReadTimeout is the maximum time to wait for data from a peer before
	// considering the connection stalled.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending data to a peer
	// before considering the connection stalled.
	WriteTimeout time.Duration

	// DialTimeout is the maximum time to wait when establishing a new
	// connection to a peer.
	DialTimeout time.Duration

	// Port is the TCP port this client listens on for incoming peer
	// connections.
	Port uint16

	// MaxPeers is the maximum number of concurrent peer connections
	// allowed per torrent.
	MaxPeers int

	// PeerOutboundQueueBacklog is the maximum number of outbound messages
	// a peer session may have buffered before it is considered stalled.
	PeerOutboundQueueBacklog int

	// EnableIPv6 allows connections to IPv6 peers.
	EnableIPv6 bool

	// HasIPv6 records whether the host has a usable IPv6 route, computed
	// once at startup.
	HasIPv6 bool

	// ========== Piece Picker / Requests ==========

	// MaxInflightRequestsPerPeer limits how many requests can be
	// outstanding to a single peer at once.
	MaxInflightRequestsPerPeer int

	// MinInflightRequestsPerPeer is a soft floor so slow/latent peers
	// still make progress.
	MinInflightRequestsPerPeer int

	// RequestTimeout is the baseline time after which an in-flight block
	// is considered timed out and reassigned.
	RequestTimeout time.Duration

	// EndgameThreshold is the number of remaining blocks at or below
	// which a torrent enters endgame mode (duplicate requests allowed).
	EndgameThreshold int

	// ========== Keepalive / Heartbeats ==========

	// PeerHeartbeatInterval is how often to send keep-alive messages to a
	// peer to maintain the connection.
	PeerHeartbeatInterval time.Duration

	// PeerInactivityDuration is the minimum time without mutual interest
	// after which a peer session fails with InactivityTimeout.
	PeerInactivityDuration time.Duration
}

// WithDefaultConfig returns sensible defaults for most use cases.
func WithDefaultConfig() (Config, error) {
	clientID, err := generateClientID()
	if err != nil {
		return Config{}, err
	}

	hasV6 := hasIPv6()

	return Config{
		DefaultDownloadDir:         getDefaultDownloadDir(),
		ClientID:                   clientID,
		ReadTimeout:                30 * time.Second,
		WriteTimeout:               30 * time.Second,
		DialTimeout:                7 * time.Second,
		Port:                       6969,
		MaxPeers:                   50,
		PeerOutboundQueueBacklog:   256,
		EnableIPv6:                 hasV6,
		HasIPv6:                    hasV6,
		MaxInflightRequestsPerPeer: 32,
		MinInflightRequestsPerPeer: 4,
		RequestTimeout:             25 * time.Second,
		EndgameThreshold:           30,
		PeerHeartbeatInterval:      60 * time.Second,
		PeerInactivityDuration:     2 * time.Minute,
	}, nil
}

var current atomic.Pointer[Config]

// Init installs the process-wide default configuration. Called once by
// the rabbitd command at startup.
func Init() error {
	cfg, err := WithDefaultConfig()
	if err != nil {
		return err
	}
	current.Store(&cfg)
	return nil
}

// Load returns the current process-wide configuration. Treat the result
// as read-only; use Update to change it. Falls back to the built-in
// defaults if Init was never called.
func Load() *Config {
	if c := current.Load(); c != nil {
		return c
	}
	cfg, err := WithDefaultConfig()
	if err != nil {
		cfg = Config{}
	}
	current.Store(&cfg)
	return &cfg
}

// Update applies mut to a copy of the current config and installs the
// result atomically, returning the new value.
func Update(mut func(*Config)) *Config {
	next := *Load()
	mut(&next)
	current.Store(&next)
	return &next
}

// Swap replaces the process-wide configuration outright, returning it.
// Primarily for tests that need a clean, deterministic Config.
func Swap(next Config) *Config {
	current.Store(&next)
	return &next
}

func hasIPv6() bool {
	ifaces, _ := net.Interfaces()
	for _, ifi := range ifaces {
		if ifaceHasGlobalIPv6(ifi) {
			return true
		}
	}
	return false
}

func ifaceHasGlobalIPv6(ifi net.Interface) bool {
	if (ifi.Flags & net.FlagUp) == 0 {
		return false
	}
	addrs, _ := ifi.Addrs()
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP
		if ip == nil || ip.To4() != nil {
			continue
		}
		if ip.IsGlobalUnicast() && !ip.IsLinkLocalUnicast() && !ip.IsLoopback() {
			return true
		}
	}
	return false
}

func getDefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if cwd, err := os.Getwd(); err == nil {
			return filepath.Join(cwd, "downloads")
		}
		return "./downloads"
	}

	switch runtime.GOOS {
	case "windows", "darwin":
		return filepath.Join(home, "Downloads", "rabbitdisk")
	default: // linux, bsd, etc.
		return filepath.Join(home, ".local", "share", "rabbitdisk", "downloads")
	}
}

func generateClientID() ([sha1.Size]byte, error) {
	var peerID [sha1.Size]byte

	prefix := []byte("-RBBD0-")
	copy(peerID[:], prefix)

	if _, err := rand.Read(peerID[len(prefix):]); err != nil {
		return [sha1.Size]byte{}, err
	}

	return peerID, nil
}
