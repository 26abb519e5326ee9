package disk

import "github.com/prxssh/rabbitdisk/internal/blockinfo"

// pieceReadCacheCapacity bounds how many recently-read pieces a torrent
// keeps decoded in memory, so a burst of block reads against the same
// piece (common while seeding to several peers at once) doesn't re-read
// and re-split the same bytes off disk every time.
const pieceReadCacheCapacity = 8

// pieceReadCache is a small bounded, LRU-ish cache of a torrent's most
// recently read pieces, keyed by piece index and holding the piece split
// into its constituent blocks (the same shape piece.Read returns). It is
// only ever touched by the disk worker's own goroutine, so it needs no
// locking of its own.
type pieceReadCache struct {
	capacity int
	order    []blockinfo.PieceIndex // least-recent first
	entries  map[blockinfo.PieceIndex][][]byte
}

func newPieceReadCache(capacity int) *pieceReadCache {
	return &pieceReadCache{
		capacity: capacity,
		entries:  make(map[blockinfo.PieceIndex][][]byte),
	}
}

func (c *pieceReadCache) get(index blockinfo.PieceIndex) ([][]byte, bool) {
	blocks, ok := c.entries[index]
	if ok {
		c.touch(index)
	}
	return blocks, ok
}

func (c *pieceReadCache) put(index blockinfo.PieceIndex, blocks [][]byte) {
	if _, exists := c.entries[index]; !exists && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[index] = blocks
	c.touch(index)
}

// invalidate drops a piece from the cache, used when its bytes on disk
// change after having been cached.
func (c *pieceReadCache) invalidate(index blockinfo.PieceIndex) {
	if _, ok := c.entries[index]; !ok {
		return
	}
	delete(c.entries, index)
	c.removeFromOrder(index)
}

func (c *pieceReadCache) touch(index blockinfo.PieceIndex) {
	c.removeFromOrder(index)
	c.order = append(c.order, index)
}

func (c *pieceReadCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *pieceReadCache) removeFromOrder(index blockinfo.PieceIndex) {
	for i, idx := range c.order {
		if idx == index {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
