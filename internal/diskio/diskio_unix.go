//go:build unix

package diskio

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// writeVectoredAt issues a single pwritev(2) call covering all of bufs at
// the given file offset. pwritev may perform a short write even with no
// error (e.g. when interrupted or when the destination is on a filesystem
// that limits a single scatter/gather transfer); the caller is responsible
// for looping via Bounded.Advance/File.Write's short-write check, not this
// function, which only ever issues one syscall per invocation.
func writeVectoredAt(f *os.File, bufs [][]byte, offset int64) (int, error) {
	if len(bufs) == 0 {
		return 0, nil
	}

	iovs := make([][]byte, 0, len(bufs))
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		iovs = append(iovs, b)
	}
	if len(iovs) == 0 {
		return 0, nil
	}

	sc, err := f.SyscallConn()
	if err != nil {
		return fallbackWriteAt(f, bufs, offset)
	}

	var n int
	var sysErr error
	ctrlErr := sc.Control(func(fd uintptr) {
		n, sysErr = unix.Pwritev(int(fd), iovs, offset)
	})
	if ctrlErr != nil {
		return fallbackWriteAt(f, bufs, offset)
	}
	if sysErr != nil {
		return n, sysErr
	}
	return n, nil
}

// fallbackWriteAt copies each buffer to disk with a plain positional write,
// used when the file descriptor can't be controlled directly (e.g. it has
// been wrapped by something that hides SyscallConn).
func fallbackWriteAt(f *os.File, bufs [][]byte, offset int64) (int, error) {
	total := 0
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		n, err := f.WriteAt(b, offset+int64(total))
		total += n
		if err != nil {
			return total, err
		}
		if n != len(b) {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
