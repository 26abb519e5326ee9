// Package torrentid provides the opaque, monotonically-increasing identifier
// minted for every torrent registered with the engine.
package torrentid

import "fmt"

// ID identifies a torrent for the lifetime of a process. It is never reused.
type ID uint32

// String renders id the way log lines and alerts expect to see it.
func (id ID) String() string {
	return fmt.Sprintf("t#%d", uint32(id))
}

// Allocator mints IDs. The engine supervisor owns the single Allocator for a
// process and is the only caller permitted to request new IDs, so minting
// itself needs no synchronization.
type Allocator struct {
	next uint32
}

// Next returns the next unused ID.
func (a *Allocator) Next() ID {
	id := ID(a.next)
	a.next++
	return id
}
