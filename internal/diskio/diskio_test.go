package diskio

import (
	"path/filepath"
	"testing"

	"github.com/prxssh/rabbitdisk/internal/storageinfo"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")

	info := storageinfo.FileInfo{Path: "a.bin", Len: 48}
	f, err := Open(path, info)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	bufs := [][]byte{
		bytesRange(0, 16),
		bytesRange(16, 32),
		bytesRange(32, 48),
	}

	tail, err := f.Write(storageinfo.FileSlice{Offset: 0, Len: 48}, bufs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("expected empty tail, got %v", tail)
	}

	blocks, err := f.Read(storageinfo.FileSlice{Offset: 0, Len: 48})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var got []byte
	for _, b := range blocks {
		got = append(got, b.Bytes()...)
	}
	want := append(append(bytesRange(0, 16), bytesRange(16, 32)...), bytesRange(32, 48)...)
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch: got %v want %v", got, want)
	}
}

func TestWriteReturnsTailForBoundedSlice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")

	info := storageinfo.FileInfo{Path: "a.bin", Len: 25}
	f, err := Open(path, info)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	bufs := [][]byte{bytesRange(0, 16), bytesRange(16, 32)}
	tail, err := f.Write(storageinfo.FileSlice{Offset: 0, Len: 25}, bufs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	var tailBytes []byte
	for _, b := range tail {
		tailBytes = append(tailBytes, b...)
	}
	if len(tailBytes) != 7 {
		t.Fatalf("tail len = %d, want 7", len(tailBytes))
	}
	want := bytesRange(25, 32)
	if string(tailBytes) != string(want) {
		t.Fatalf("tail bytes = %v, want %v", tailBytes, want)
	}
}

func TestReadShortReturnsMissingData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")

	info := storageinfo.FileInfo{Path: "a.bin", Len: 16}
	f, err := Open(path, info)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if _, err := f.Read(storageinfo.FileSlice{Offset: 0, Len: 64}); err != ErrMissingData {
		t.Fatalf("Read past EOF = %v, want ErrMissingData", err)
	}
}

func bytesRange(lo, hi int) []byte {
	out := make([]byte, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, byte(i))
	}
	return out
}
