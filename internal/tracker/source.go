// Package tracker models the external collaborator that supplies a
// torrent with peer addresses. Tracker HTTP/UDP wire transport is out of
// scope here; this package only defines the boundary a coordinator's
// caller polls (PeerSource) and the retry shape that boundary uses when
// an announce attempt fails, so the TorrentContext-equivalent wiring has
// something concrete to hold. decodePeers/decodeCompact (peer.go) are
// kept as the one piece of this package with no network dependency: the
// compact and dictionary peer-list decoding spec.md's trackers both use
// on the wire.
package tracker

import (
	"context"
	"net/netip"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PeerSource is polled periodically for a torrent's current peer list.
// A real implementation speaks HTTP or UDP to an actual tracker; that
// wire protocol is out of scope here.
type PeerSource interface {
	Announce(ctx context.Context) ([]netip.AddrPort, error)
}

// ResponsePeerSource adapts an already-decoded bencoded tracker response
// dict into a PeerSource, using decodePeers to handle both the compact
// (string/[]byte) and dictionary peer-list forms a real HTTP or UDP
// tracker response would carry in its "peers" key.
type ResponsePeerSource struct {
	RawPeers any
	IPv6     bool
}

func (s ResponsePeerSource) Announce(ctx context.Context) ([]netip.AddrPort, error) {
	return decodePeers(s.RawPeers, s.IPv6)
}

// StaticPeerSource is a PeerSource that always returns the same fixed
// peer list, useful for tests and for driving the engine without a real
// tracker.
type StaticPeerSource struct {
	Peers []netip.AddrPort
}

func (s StaticPeerSource) Announce(ctx context.Context) ([]netip.AddrPort, error) {
	return s.Peers, nil
}

// Retrier wraps a PeerSource with exponential backoff on failed
// announces, so a caller can treat transient tracker errors as
// retryable without reimplementing backoff bookkeeping itself.
type Retrier struct {
	src PeerSource
	new func() backoff.BackOff
}

// NewRetrier builds a Retrier around src using a default exponential
// backoff schedule (1s initial interval, 2x multiplier, capped at 1
// minute, uncapped elapsed time so a long-lived torrent keeps retrying).
func NewRetrier(src PeerSource) *Retrier {
	return newRetrier(src, time.Second, time.Minute)
}

func newRetrier(src PeerSource, initialInterval, maxInterval time.Duration) *Retrier {
	return &Retrier{
		src: src,
		new: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initialInterval
			b.Multiplier = 2
			b.MaxInterval = maxInterval
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Announce calls the underlying PeerSource, retrying with backoff until
// it succeeds, ctx is done, or onAttempt returns false.
//
// onAttempt, if non-nil, is called after each failed attempt with the
// error and the delay before the next retry; returning false stops
// retrying and Announce returns the last error.
func (r *Retrier) Announce(ctx context.Context, onAttempt func(err error, next time.Duration) bool) ([]netip.AddrPort, error) {
	b := backoff.WithContext(r.new(), ctx)

	var lastErr error
	for {
		peers, err := r.src.Announce(ctx)
		if err == nil {
			return peers, nil
		}
		lastErr = err

		next := b.NextBackOff()
		if next == backoff.Stop {
			return nil, lastErr
		}
		if onAttempt != nil && !onAttempt(err, next) {
			return nil, lastErr
		}

		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
