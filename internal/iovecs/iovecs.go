// Package iovecs implements bounded vectored I/O: a view over a sequence of
// byte buffers that can be split at a byte boundary not necessarily aligned
// with a buffer edge, so that only a bounded prefix is exposed to a single
// positional write, while the remainder ("the tail") can be recovered and
// fed to the next file in a multi-file write.
//
// Unlike a scatter/gather buffer list backed by raw pointers, Go slices
// already alias their backing array, so splitting never copies bytes: both
// halves of a split buffer are just two slice headers over the same memory.
package iovecs

import "fmt"

// Bounded is the result of clipping a buffer list to at most maxLen bytes.
// Head is the buffer list to hand to a single positional write; Advance
// shrinks Head in place as bytes are confirmed written. Tail recovers
// whatever was left over once Head is fully consumed.
type Bounded struct {
	head [][]byte
	tail [][]byte
}

// Bound splits bufs at maxLen bytes. It panics if maxLen is 0, mirroring the
// constructor precondition of the original implementation this is ported
// from.
//
// bufs is not mutated; Bound never copies byte content, only rearranges
// slice headers.
func Bound(bufs [][]byte, maxLen int) *Bounded {
	if maxLen <= 0 {
		panic("iovecs: max length must be greater than 0")
	}

	total := 0
	splitAt := -1
	for i, b := range bufs {
		total += len(b)
		if total >= maxLen {
			splitAt = i
			break
		}
	}

	if splitAt == -1 {
		// Sum of all buffers never reaches maxLen: nothing to split.
		return &Bounded{head: bufs, tail: nil}
	}

	if total == maxLen {
		if splitAt+1 == len(bufs) {
			// The combined length lands exactly on the end of the last
			// buffer: no split needed at all.
			return &Bounded{head: bufs, tail: nil}
		}
		// The boundary falls exactly between two buffers.
		head := make([][]byte, splitAt+1)
		copy(head, bufs[:splitAt+1])
		tail := make([][]byte, len(bufs)-(splitAt+1))
		copy(tail, bufs[splitAt+1:])
		return &Bounded{head: head, tail: tail}
	}

	// The boundary falls inside bufs[splitAt]; trim it there.
	bufOffset := total - len(bufs[splitAt])
	splitPos := maxLen - bufOffset
	if splitPos < 0 || splitPos > len(bufs[splitAt]) {
		panic(fmt.Sprintf("iovecs: computed split position %d out of range for buffer of length %d", splitPos, len(bufs[splitAt])))
	}

	head := make([][]byte, splitAt+1)
	copy(head, bufs[:splitAt])
	head[splitAt] = bufs[splitAt][:splitPos]

	tail := make([][]byte, len(bufs)-splitAt)
	tail[0] = bufs[splitAt][splitPos:]
	copy(tail[1:], bufs[splitAt+1:])

	return &Bounded{head: head, tail: tail}
}

// Head returns the current bounded view. It shrinks as Advance is called.
func (b *Bounded) Head() [][]byte {
	return b.head
}

// Len returns the total byte count remaining in Head.
func (b *Bounded) Len() int {
	n := 0
	for _, buf := range b.head {
		n += len(buf)
	}
	return n
}

// Advance records that n bytes of Head have been transferred, shrinking
// Head in place: whole buffers are dropped from the front and the first
// remaining buffer is re-sliced at an internal offset. It panics if n
// exceeds the number of bytes currently in Head — advancing past the
// bounded prefix is a programming error, never a recoverable one, and must
// never silently spill into the tail.
func (b *Bounded) Advance(n int) {
	if n > b.Len() {
		panic("iovecs: cannot advance past the bounded prefix")
	}

	i := 0
	for n > 0 && i < len(b.head) {
		if len(b.head[i]) <= n {
			n -= len(b.head[i])
			i++
			continue
		}
		b.head[i] = b.head[i][n:]
		n = 0
	}
	b.head = b.head[i:]
}

// IntoTail returns the buffers left over after the bounded prefix, ready to
// be handed to the next file handle's write call. It is the caller's
// responsibility to only call this once Head has been fully consumed by the
// write loop (the piece assembler's write walk asserts this).
func (b *Bounded) IntoTail() [][]byte {
	return b.tail
}

// Advance trims n bytes off the front of bufs without any max-length
// bound, returning the remaining buffer list. Used on the read path: a
// positional read never extends a file, so there is nothing to bound — only
// a cursor to advance after a short read.
func Advance(bufs [][]byte, n int) [][]byte {
	i := 0
	for n > 0 && i < len(bufs) {
		if len(bufs[i]) <= n {
			n -= len(bufs[i])
			i++
			continue
		}
		bufs[i] = bufs[i][n:]
		n = 0
	}
	return bufs[i:]
}
