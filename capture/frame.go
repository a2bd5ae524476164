package capture

import "time"

// Frame is a borrowed view of a driver-owned frame buffer.
//
// Lifetime contract: Data points into the sensor's ring/double buffer
// and is only guaranteed stable within the control-loop tick it was
// obtained in — the driver overwrites it at the next frame boundary once
// capture is running. Anything that must outlive the tick (saving a
// photo, export) goes through Clone first.
type Frame struct {
	// Data is the raw frame payload (RGB565), driver-owned.
	Data []byte

	// Width and Height in pixels.
	Width  int
	Height int

	// Size is the payload length in bytes.
	Size int

	// Seq is the driver's frame number, monotonically increasing while
	// streaming.
	Seq uint64

	// Timestamp is when the frame-ready notification was observed.
	Timestamp time.Time

	// TraceID correlates a frame across log lines and diagnostics.
	TraceID string
}

// Clone copies the frame out of the driver's buffer, producing a frame
// whose Data the caller owns.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)

	c := *f
	c.Data = data
	return &c
}
