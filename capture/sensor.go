package capture

// FrameCallback is invoked by the sensor driver whenever a complete
// frame lands in a driver-owned buffer.
//
// Contract:
//   - Runs on the driver's goroutine, NOT the control loop.
//   - Must not block, allocate from the photo heap, or touch UI/session
//     state. Writing the latest-frame cell is the only permitted effect.
//   - data is driver-owned and will be overwritten at the next frame
//     boundary; consumers needing stability must copy out.
type FrameCallback func(frameNum uint64, data []byte, width, height int)

// Sensor is the contract for the physical (or simulated) camera driver.
//
// Implementations must guarantee:
//   - Stop() is idempotent and does not invalidate previously returned
//     frame buffers (buffer lifetime is the driver's, per FrameCallback).
//   - FPS()/Status()/Info() are side-effect-free and safe from any
//     goroutine.
//   - Driver-reported failures come back as plain errors; the controller
//     wraps them, the session layer decides on retries (there are none
//     automatic).
type Sensor interface {
	// Init prepares the driver (probe, register). Called once, lazily,
	// on the first capture start.
	Init() error

	// Open acquires the device for streaming.
	Open() error

	// SetFrameCallback registers the frame-ready callback. Must be set
	// before Start for frames to be observed.
	SetFrameCallback(cb FrameCallback)

	// Start begins streaming into the driver's buffers.
	Start() error

	// Stop halts streaming. Idempotent.
	Stop() error

	// Buffer returns the driver's current frame buffer directly, for the
	// first-frame fallback path when no callback arrived in time.
	Buffer() ([]byte, error)

	// FPS returns the driver's rolling frames-per-second estimate.
	FPS() float64

	// Status returns running statistics.
	Status() Status

	// Info returns capability metadata.
	Info() Info

	// ReadAt copies raw bytes of the current frame starting at off.
	// Diagnostics only.
	ReadAt(p []byte, off int64) (int, error)
}

// Info is the sensor capability metadata (GET_INFO).
type Info struct {
	// Name identifies the sensor model (e.g. "bf30a2-sim").
	Name string

	// ChipID is the probed chip identifier.
	ChipID uint16

	// Width and Height are the native frame dimensions in pixels.
	Width  int
	Height int

	// FrameSize is the native frame payload in bytes (RGB565: 2×W×H).
	FrameSize int
}

// Status is the sensor's running statistics snapshot (GET_STATUS).
type Status struct {
	// Running reports whether the driver is currently streaming.
	Running bool

	// FPS is the rolling frames-per-second estimate.
	FPS float64

	// CompleteFrames counts frames delivered since Open.
	CompleteFrames uint64

	// Errors counts driver-level frame errors since Open.
	Errors uint64
}
