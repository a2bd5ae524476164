// Package capture owns the live camera session: start/stop lifecycle,
// the latest-frame handle, and FPS sampling.
//
// The controller sits between the sensor driver and the session state
// machine. The driver delivers frames asynchronously via FrameCallback;
// the callback's only effect is writing the latest-frame cell, which the
// control loop consumes with read-and-clear semantics. That cell is the
// sole state crossing the driver/control boundary.
//
// Failure model: driver-reported errors propagate wrapped in ErrDriver;
// a capture start that obtains no buffer within the bounded wait (and no
// direct-buffer fallback) fails with ErrNoFrameAvailable. Nothing is
// retried here — retry policy belongs to the session layer.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/e7canasta/snapcam/internal/latest"
)

var (
	// ErrNoFrameAvailable means capture start obtained no frame buffer
	// within the bounded first-frame wait, including the direct-query
	// fallback. The session transition that triggered the start aborts.
	ErrNoFrameAvailable = errors.New("capture: no frame available")

	// ErrDriver wraps sensor-reported init/open/start/stop failures.
	ErrDriver = errors.New("capture: driver error")
)

const (
	// DefaultFirstFrameTimeout bounds the wait for the first frame
	// notification after Start.
	DefaultFirstFrameTimeout = time.Second

	// DefaultPollInterval is the first-frame poll step.
	DefaultPollInterval = 10 * time.Millisecond
)

// Options tunes the controller's bounded first-frame wait.
type Options struct {
	FirstFrameTimeout time.Duration
	PollInterval      time.Duration
}

// Controller owns the run/stop lifecycle of one sensor session and the
// current-frame handle. Not safe for concurrent control calls: Start,
// Stop and LatestFrame belong to the single control goroutine. FPS,
// Status and Stats are safe from any goroutine.
type Controller struct {
	sensor Sensor
	log    zerolog.Logger

	firstFrameTimeout time.Duration
	pollInterval      time.Duration

	cell latest.Cell[*Frame]

	opened  bool
	running atomic.Bool // atomic so diagnostics can read from its own goroutine
}

// Stats is a controller diagnostics snapshot.
type Stats struct {
	// Running reports whether a capture session is active.
	Running bool

	// Frames is the lifetime count of frame notifications observed.
	Frames uint64

	// Drops counts frames overwritten before the control loop consumed
	// them. Expected to grow whenever the sensor outpaces the UI tick;
	// latest-frame semantics working, not an error.
	Drops uint64
}

// New creates a controller over the given sensor. Zero Options fields
// fall back to defaults.
func New(sensor Sensor, opts Options, log zerolog.Logger) *Controller {
	if opts.FirstFrameTimeout <= 0 {
		opts.FirstFrameTimeout = DefaultFirstFrameTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Controller{
		sensor:            sensor,
		log:               log.With().Str("component", "capture").Logger(),
		firstFrameTimeout: opts.FirstFrameTimeout,
		pollInterval:      opts.PollInterval,
	}
}

// onFrame is the FrameCallback target. Driver goroutine; writes the cell
// and nothing else.
func (c *Controller) onFrame(frameNum uint64, data []byte, width, height int) {
	if len(data) == 0 {
		return
	}
	c.cell.Put(&Frame{
		Data:      data,
		Width:     width,
		Height:    height,
		Size:      len(data),
		Seq:       frameNum,
		Timestamp: time.Now(),
		TraceID:   uuid.NewString(),
	})
}

// Start initializes the session (lazily, on first use), begins
// streaming, then blocks the control loop with a bounded wait until the
// first frame notification arrives. If the timeout elapses it falls back
// to querying the driver's current buffer directly; if neither path
// yields a handle, the start fails with ErrNoFrameAvailable and the
// sensor is stopped again.
func (c *Controller) Start(ctx context.Context) error {
	if !c.opened {
		if err := c.sensor.Init(); err != nil {
			return fmt.Errorf("%w: init: %w", ErrDriver, err)
		}
		if err := c.sensor.Open(); err != nil {
			return fmt.Errorf("%w: open: %w", ErrDriver, err)
		}
		c.sensor.SetFrameCallback(c.onFrame)
		c.opened = true
		c.log.Info().Str("sensor", c.sensor.Info().Name).Msg("sensor opened")
	}

	if err := c.sensor.Start(); err != nil {
		return fmt.Errorf("%w: start: %w", ErrDriver, err)
	}

	if err := c.waitFirstFrame(ctx); err != nil {
		// Leave the session consistent: a failed start must not keep
		// the sensor streaming behind an Idle state machine.
		if stopErr := c.sensor.Stop(); stopErr != nil {
			c.log.Warn().Err(stopErr).Msg("sensor stop after failed start")
		}
		return err
	}

	c.running.Store(true)
	c.log.Info().Msg("capture started")
	return nil
}

// waitFirstFrame polls the cell until a handle exists, the timeout
// elapses, or ctx is done. On timeout it tries the driver's buffer
// directly (GET_BUFFER path) before giving up.
func (c *Controller) waitFirstFrame(ctx context.Context) error {
	deadline := time.Now().Add(c.firstFrameTimeout)
	for time.Now().Before(deadline) {
		if _, ok := c.cell.Peek(); ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNoFrameAvailable, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}

	// Fallback: ask the driver for its current buffer directly.
	buf, err := c.sensor.Buffer()
	if err != nil || len(buf) == 0 {
		c.log.Error().Err(err).Msg("no frame within timeout and no direct buffer")
		return ErrNoFrameAvailable
	}

	info := c.sensor.Info()
	c.cell.Put(&Frame{
		Data:      buf,
		Width:     info.Width,
		Height:    info.Height,
		Size:      len(buf),
		Timestamp: time.Now(),
		TraceID:   uuid.NewString(),
	})
	c.log.Warn().Msg("first frame via direct buffer query")
	return nil
}

// Stop signals the driver to halt streaming. Idempotent. The latest
// frame handle is NOT invalidated: its lifetime is owned by the driver,
// and the review fallback may still display it.
func (c *Controller) Stop() error {
	if !c.running.Load() {
		return nil
	}

	if err := c.sensor.Stop(); err != nil {
		return fmt.Errorf("%w: stop: %w", ErrDriver, err)
	}
	c.running.Store(false)
	c.log.Info().Msg("capture stopped")
	return nil
}

// LatestFrame returns the most recent frame handle and whether it is
// fresh since the previous call (edge-triggered, read-and-clear). A
// false flag with a non-nil frame means the same frame is being re-read.
// Single consumer only: the control loop.
func (c *Controller) LatestFrame() (*Frame, bool) {
	f, fresh, ok := c.cell.Take()
	if !ok {
		return nil, false
	}
	return f, fresh
}

// CurrentFrame returns the latest handle without consuming freshness.
// Used by the review fallback, which only needs "whatever is current".
func (c *Controller) CurrentFrame() (*Frame, bool) {
	return c.cell.Peek()
}

// FPS queries the driver's rolling FPS estimate. Side-effect-free.
func (c *Controller) FPS() float64 {
	return c.sensor.FPS()
}

// Running reports whether a capture session is active. Safe from any
// goroutine.
func (c *Controller) Running() bool { return c.running.Load() }

// SensorStatus returns the driver's running statistics.
func (c *Controller) SensorStatus() Status { return c.sensor.Status() }

// SensorInfo returns the driver's capability metadata.
func (c *Controller) SensorInfo() Info { return c.sensor.Info() }

// Stats returns a controller diagnostics snapshot.
func (c *Controller) Stats() Stats {
	return Stats{
		Running: c.running.Load(),
		Frames:  c.cell.Puts(),
		Drops:   c.cell.Drops(),
	}
}
