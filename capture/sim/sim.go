// Package sim provides an in-process sensor simulator implementing
// capture.Sensor.
//
// The simulator generates RGB565 test-pattern frames at a target rate
// into a driver-owned double buffer, delivering frame-ready callbacks
// from its own goroutine — the same execution-context split a real
// driver has. Used by the demo binary and anywhere a physical sensor is
// absent.
package sim

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/e7canasta/snapcam/capture"
)

// ErrNotOpen is returned by Buffer/ReadAt before Open.
var ErrNotOpen = errors.New("sim: sensor not open")

const simChipID = 0x30A2

// fpsWindow is the number of recent frame timestamps kept for the
// rolling FPS estimate.
const fpsWindow = 16

// Config tunes the simulated sensor.
type Config struct {
	Width  int
	Height int

	// FPS is the frame generation rate. Defaults to 15.
	FPS float64
}

// Sensor is the simulated camera driver.
type Sensor struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	cb      capture.FrameCallback
	bufs    [2][]byte // double buffer: writer flips, reader sees the other
	cur     int
	open    bool
	running bool
	frames  uint64
	times   []time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a simulated sensor. Zero config fields default to a
// 240×320 frame at 15 fps.
func New(cfg Config, log zerolog.Logger) *Sensor {
	if cfg.Width <= 0 {
		cfg.Width = 240
	}
	if cfg.Height <= 0 {
		cfg.Height = 320
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}

	return &Sensor{
		cfg: cfg,
		log: log.With().Str("component", "sensor-sim").Logger(),
	}
}

func (s *Sensor) Init() error {
	s.log.Debug().Uint("chip_id", simChipID).Msg("probe ok")
	return nil
}

func (s *Sensor) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}
	size := s.cfg.Width * s.cfg.Height * 2
	s.bufs[0] = make([]byte, size)
	s.bufs[1] = make([]byte, size)
	s.open = true
	return nil
}

func (s *Sensor) SetFrameCallback(cb capture.FrameCallback) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

func (s *Sensor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrNotOpen
	}
	if s.running {
		return nil
	}

	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.frameLoop(s.stop)
	return nil
}

// Stop halts frame generation. Idempotent. Buffers stay valid — a real
// driver keeps its last frame addressable after stop, and the review
// fallback relies on that.
func (s *Sensor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// frameLoop is the driver context: paints the back buffer, flips, and
// notifies at the configured rate until stopped.
func (s *Sensor) frameLoop(stop chan struct{}) {
	defer s.wg.Done()

	interval := time.Duration(float64(time.Second) / s.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.produceFrame()
		}
	}
}

func (s *Sensor) produceFrame() {
	s.mu.Lock()
	next := 1 - s.cur
	buf := s.bufs[next]
	s.frames++
	n := s.frames
	s.mu.Unlock()

	paintPattern(buf, s.cfg.Width, s.cfg.Height, n)

	s.mu.Lock()
	s.cur = next
	s.times = append(s.times, time.Now())
	if len(s.times) > fpsWindow {
		s.times = s.times[len(s.times)-fpsWindow:]
	}
	cb := s.cb
	s.mu.Unlock()

	if cb != nil {
		cb(n, buf, s.cfg.Width, s.cfg.Height)
	}
}

// paintPattern fills buf with a moving RGB565 gradient so consecutive
// frames differ visibly.
func paintPattern(buf []byte, width, height int, frameNum uint64) {
	shift := int(frameNum % 32)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint16((x + shift) & 0x1F)
			g := uint16((y + shift) & 0x3F)
			b := uint16((x + y) & 0x1F)
			px := r<<11 | g<<5 | b

			i := (y*width + x) * 2
			buf[i] = byte(px)
			buf[i+1] = byte(px >> 8)
		}
	}
}

func (s *Sensor) Buffer() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, ErrNotOpen
	}
	return s.bufs[s.cur], nil
}

// FPS returns the rolling estimate over the last fpsWindow frames.
func (s *Sensor) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.times) < 2 {
		return 0
	}
	span := s.times[len(s.times)-1].Sub(s.times[0]).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(s.times)-1) / span
}

func (s *Sensor) Status() capture.Status {
	s.mu.Lock()
	running, frames := s.running, s.frames
	s.mu.Unlock()

	return capture.Status{
		Running:        running,
		FPS:            s.FPS(),
		CompleteFrames: frames,
	}
}

func (s *Sensor) Info() capture.Info {
	return capture.Info{
		Name:      "bf30a2-sim",
		ChipID:    simChipID,
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		FrameSize: s.cfg.Width * s.cfg.Height * 2,
	}
}

func (s *Sensor) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return 0, ErrNotOpen
	}
	buf := s.bufs[s.cur]
	if off < 0 || off >= int64(len(buf)) {
		return 0, errors.New("sim: offset past frame")
	}
	return copy(p, buf[off:]), nil
}
