//go:build !unix

package diskio

import (
	"io"
	"os"
)

// writeVectoredAt falls back to a copying, one-buffer-at-a-time positional
// write on platforms without scatter/gather support. The externally
// observable contract (bounded by the sum of bufs, returns bytes written)
// is identical to the unix pwritev path.
func writeVectoredAt(f *os.File, bufs [][]byte, offset int64) (int, error) {
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
