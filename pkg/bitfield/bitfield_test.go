package bitfield

import "testing"

func TestSetHasClear(t *testing.T) {
	bf := New(10)
	if bf.Has(3) {
		t.Fatalf("fresh bitfield should have no bits set")
	}

	bf.Set(3)
	if !bf.Has(3) {
		t.Fatalf("expected bit 3 set")
	}

	bf.Clear(3)
	if bf.Has(3) {
		t.Fatalf("expected bit 3 cleared")
	}
}

func TestCount(t *testing.T) {
	bf := New(16)
	bf.Set(0)
	bf.Set(5)
	bf.Set(15)

	if c := bf.Count(); c != 3 {
		t.Fatalf("Count() = %d, want 3", c)
	}
}

func TestValidForRejectsWrongSize(t *testing.T) {
	bf := New(4)
	if bf.ValidFor(12) {
		t.Fatalf("bitfield sized for 4 pieces should not validate against 12")
	}
}

func TestValidForRejectsSpareBits(t *testing.T) {
	bf := New(4) // backed by a single byte; bits 4-7 are spare
	bf.Set(7)

	if bf.ValidFor(4) {
		t.Fatalf("bitfield with a spare bit set should not validate")
	}
}

func TestValidForAcceptsCleanBitfield(t *testing.T) {
	bf := New(4)
	bf.Set(0)
	bf.Set(2)

	if !bf.ValidFor(4) {
		t.Fatalf("clean bitfield should validate")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	bf := New(8)
	bf.Set(1)

	cp := bf.Clone()
	cp.Set(2)

	if bf.Has(2) {
		t.Fatalf("mutating clone should not affect original")
	}
}
