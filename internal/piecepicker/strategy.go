package piecepicker

import (
	"net/netip"

	"github.com/prxssh/rabbitdisk/pkg/bitfield"
)

func (pk *Picker) NextForPeer(peer *PeerView, n int) []*Request {
	if !peer.Unchoked || n <= 0 {
		return nil
	}

	capacity := pk.peerCapacity(peer.Addr)
	if capacity == 0 {
		return nil
	}

	n = min(n, capacity)

	pk.mu.RLock()
	endgame := pk.endgame
	pk.mu.RUnlock()

	if endgame {
		return pk.selectEndgameBlocks(peer, n)
	}

	reqs := make([]*Request, 0, n)
	count := 0

	for i := 0; i < pk.PieceCount && count < n; i++ {
		pk.mu.RLock()
		p := pk.pieces[i]
		if p.verified || p.doneBlocks == 0 || !peer.Bitfield.Has(i) {
			pk.mu.RUnlock()
			continue
		}
		pk.mu.RUnlock()

		pk.mu.Lock()
		for count < n {
			if block, ok := pk.findAvailableBlock(p, peer.Addr); ok {
				reqs = append(reqs, pk.createRequest(peer.Addr, p, block))
				count++
			} else {
				break
			}
		}
		pk.mu.Unlock()
	}

	if count == n {
		return reqs
	}

	remaining := n - count
	reqs = append(reqs, pk.selectRarestFirst(peer.Addr, peer.Bitfield, remaining)...)
	return reqs
}

func (pk *Picker) selectEndgameBlocks(peer *PeerView, n int) []*Request {
	if !peer.Unchoked || n <= 0 {
		return nil
	}

	pk.mu.Lock()
	defer pk.mu.Unlock()

	reqs := make([]*Request, 0, n)

	for _, p := range pk.pieces {
		if len(reqs) >= n {
			break
		}

		if p.verified || !peer.Bitfield.Has(p.index) {
			continue
		}

		for bi, blk := range p.blocks {
			if len(reqs) >= n {
				break
			}

			if blk.status == blockInflight {
				if blk.owner != nil && blk.owner.addr == peer.Addr {
					continue
				}

				reqs = append(reqs, pk.createRequest(peer.Addr, p, bi))
			}
		}
	}

	return reqs
}

func (pk *Picker) selectRarestFirst(
	peer netip.AddrPort,
	peerBF bitfield.Bitfield,
	n int,
) []*Request {
	rarestAvail, ok := pk.availability.FirstNonEmpty()
	if !ok {
		return nil
	}

	reqs := make([]*Request, 0, n)

	for a := rarestAvail; a <= pk.availability.maxAvail && len(reqs) < n; a++ {
		bucket := pk.availability.Bucket(a)
		if len(bucket) == 0 {
			continue
		}

		for _, piece := range bucket {
			if len(reqs) >= n {
				break
			}

			pk.mu.RLock()
			if !pk.isValidPiece(piece) || !peerBF.Has(piece) {
				pk.mu.RUnlock()
				continue
			}
			pk.mu.RUnlock()

			pk.mu.Lock()
			p := pk.pieces[piece]
			for len(reqs) < n {
				block, ok := pk.findAvailableBlock(p, peer)
				if !ok {
					break
				}
				reqs = append(reqs, pk.createRequest(peer, p, block))
			}
			pk.mu.Unlock()
		}
	}

	return reqs
}
