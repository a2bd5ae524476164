// Package export writes the stored photo as a tagged text dump: header
// fields, then the payload hex-encoded 32 bytes per line. The format is
// a wire contract with the host-side import tooling:
//
//	===PHOTO_START===
//	WIDTH:240
//	HEIGHT:320
//	FORMAT:RGB565
//	SIZE:153600
//	SOURCE:PSRAM
//	===DATA_BEGIN===
//	A1B2C3D4... (64 hex chars per line)
//	===DATA_END===
//	===PHOTO_END===
package export

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/e7canasta/snapcam/display"
	"github.com/e7canasta/snapcam/photostore"
)

// bytesPerLine is the payload row width of the dump.
const bytesPerLine = 32

// Dump writes the store's current photo to w. Returns
// photostore.ErrNotFound untouched when the store is empty; the caller
// decides how to surface that.
func Dump(w io.Writer, store *photostore.Store) error {
	v, err := store.Get()
	if err != nil {
		return err
	}
	return dump(w, v, display.FormatRGB565)
}

func dump(w io.Writer, v photostore.View, format display.Format) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "===PHOTO_START===\n")
	fmt.Fprintf(bw, "WIDTH:%d\n", v.Width)
	fmt.Fprintf(bw, "HEIGHT:%d\n", v.Height)
	fmt.Fprintf(bw, "FORMAT:%s\n", format)
	fmt.Fprintf(bw, "SIZE:%d\n", v.Size)
	fmt.Fprintf(bw, "SOURCE:PSRAM\n")
	fmt.Fprintf(bw, "===DATA_BEGIN===\n")

	line := make([]byte, hex.EncodedLen(bytesPerLine))
	for off := 0; off < len(v.Data); off += bytesPerLine {
		end := off + bytesPerLine
		if end > len(v.Data) {
			end = len(v.Data)
		}
		n := hex.Encode(line, v.Data[off:end])
		for i := 0; i < n; i++ {
			// Host tooling expects uppercase hex.
			if line[i] >= 'a' {
				line[i] -= 'a' - 'A'
			}
		}
		bw.Write(line[:n])
		bw.WriteByte('\n')
	}

	fmt.Fprintf(bw, "===DATA_END===\n")
	fmt.Fprintf(bw, "===PHOTO_END===\n")

	return bw.Flush()
}
