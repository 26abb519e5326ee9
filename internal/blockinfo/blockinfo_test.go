package blockinfo

import "testing"

func TestBlockCountAndLen(t *testing.T) {
	const twoBlocks = 2 * MaxBlockLength
	if got := BlockCount(twoBlocks); got != 2 {
		t.Fatalf("BlockCount(%d) = %d, want 2", twoBlocks, got)
	}
	if got := BlockLen(twoBlocks, 0); got != MaxBlockLength {
		t.Fatalf("BlockLen(0) = %d, want %d", got, MaxBlockLength)
	}
	if got := BlockLen(twoBlocks, 1); got != MaxBlockLength {
		t.Fatalf("BlockLen(1) = %d, want %d", got, MaxBlockLength)
	}

	const overlap = 1000
	const uneven = 2*MaxBlockLength + overlap
	if got := BlockCount(uneven); got != 3 {
		t.Fatalf("BlockCount(%d) = %d, want 3", uneven, got)
	}
	if got := BlockLen(uneven, 2); got != overlap {
		t.Fatalf("BlockLen(2) = %d, want %d", got, overlap)
	}
}

func TestBlockLenPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range block index")
		}
	}()
	BlockLen(2*MaxBlockLength, 2)
}

func TestBlockLenAlwaysPositive(t *testing.T) {
	for pieceLen := uint32(1); pieceLen <= 3*MaxBlockLength+7; pieceLen += 997 {
		n := BlockCount(pieceLen)
		for i := 0; i < n; i++ {
			l := BlockLen(pieceLen, uint32(i))
			if l == 0 {
				t.Fatalf("BlockLen(%d, %d) = 0, want > 0", pieceLen, i)
			}
		}
	}
}

func TestBlockDataOwnedCachedTransition(t *testing.T) {
	owned := NewOwnedBlockData([]byte("hello"))
	if owned.IsCached() {
		t.Fatal("freshly-owned block reported as cached")
	}

	cached := owned.ToCached()
	if !cached.IsCached() {
		t.Fatal("ToCached did not produce a cached block")
	}
	if string(cached.Bytes()) != "hello" {
		t.Fatalf("cached bytes = %q, want %q", cached.Bytes(), "hello")
	}
}

func TestBlockDataIntoOwnedPanicsOnCached(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling IntoOwned on a cached block")
		}
	}()
	NewCachedBlockData([]byte("x")).IntoOwned()
}

func TestPieceLengthAt(t *testing.T) {
	const pieceLen = 4 * MaxBlockLength
	const total = uint64(pieceLen)*2 + 1000

	if l, ok := PieceLengthAt(0, total, pieceLen); !ok || l != pieceLen {
		t.Fatalf("PieceLengthAt(0) = (%d,%v), want (%d,true)", l, ok, pieceLen)
	}
	if l, ok := PieceLengthAt(2, total, pieceLen); !ok || l != 1000 {
		t.Fatalf("PieceLengthAt(last) = (%d,%v), want (1000,true)", l, ok)
	}
	if _, ok := PieceLengthAt(3, total, pieceLen); ok {
		t.Fatal("PieceLengthAt out of range should fail")
	}
}

func TestBlocksInPieceAndLastBlockInPiece(t *testing.T) {
	const pieceLen = 2*MaxBlockLength + 1000

	if got := BlocksInPiece(pieceLen); got != 3 {
		t.Fatalf("BlocksInPiece(%d) = %d, want 3", pieceLen, got)
	}
	if got := LastBlockInPiece(pieceLen); got != 1000 {
		t.Fatalf("LastBlockInPiece(%d) = %d, want 1000", pieceLen, got)
	}

	if got := LastBlockInPiece(0); got != 0 {
		t.Fatalf("LastBlockInPiece(0) = %d, want 0", got)
	}
}

func TestBlockIndexForBegin(t *testing.T) {
	const pieceLen = 2*MaxBlockLength + 1000

	if idx, ok := BlockIndexForBegin(0, pieceLen); !ok || idx != 0 {
		t.Fatalf("BlockIndexForBegin(0) = (%d,%v), want (0,true)", idx, ok)
	}
	if idx, ok := BlockIndexForBegin(MaxBlockLength, pieceLen); !ok || idx != 1 {
		t.Fatalf("BlockIndexForBegin(MaxBlockLength) = (%d,%v), want (1,true)", idx, ok)
	}
	if _, ok := BlockIndexForBegin(pieceLen, pieceLen); ok {
		t.Fatal("BlockIndexForBegin at piece length should be out of range")
	}
}
