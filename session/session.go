// Package session implements the capture-device state machine: three
// states (Idle, Live, Review) driven by two logical button events, plus
// the control-loop tick that feeds fresh frames to the display.
//
// Scheduling model: a single cooperative control goroutine owns every
// transition and every tick. The only asynchronous input is the sensor's
// frame-ready notification, which is confined to the capture
// controller's latest-frame cell — HandleEvent and Tick never race with
// anything else.
//
// Transition table (edge-triggered button events):
//
//	state   | primary                          | secondary
//	--------+----------------------------------+------------------
//	Idle    | → Live (start capture)           | no-op
//	Live    | take photo → Review              | → Idle (stop)
//	Review  | no-op                            | → Live (restart)
//
// Entering Live always (re)starts the capture session; entering Idle
// always stops it; entering Review only reads the photo store. A failed
// transition leaves the machine in its prior state — except the photo
// save on Live→primary, which proceeds to Review even when the save
// fails (the store is then empty and review shows the fallback view).
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/e7canasta/snapcam/capture"
	"github.com/e7canasta/snapcam/display"
	"github.com/e7canasta/snapcam/metrics"
	"github.com/e7canasta/snapcam/photostore"
)

// State is the session state. Exactly one is active at a time.
type State int

const (
	StateIdle State = iota
	StateLive
	StateReview
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLive:
		return "live"
	case StateReview:
		return "review"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is a logical button press, already debounced by the input layer.
type Event int

const (
	// EventPrimary is the shutter/select button (KEY1).
	EventPrimary Event = iota

	// EventSecondary is the back button (KEY2).
	EventSecondary
)

func (e Event) String() string {
	switch e {
	case EventPrimary:
		return "primary"
	case EventSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// fpsRefreshInterval throttles the viewfinder FPS label.
const fpsRefreshInterval = 500 * time.Millisecond

// Session is the orchestrator. Transitions and ticks belong to the
// control loop exclusively; the state field is atomic only so the
// diagnostics surface can read it from its own goroutine.
type Session struct {
	ctrl    *capture.Controller
	store   *photostore.Store
	surface display.Surface
	met     *metrics.Metrics
	log     zerolog.Logger

	state      atomic.Int32
	fpsShownAt time.Time
}

// New creates a session in Idle and loads the idle screen. met may be
// nil when metrics are disabled.
func New(ctrl *capture.Controller, store *photostore.Store, surface display.Surface, met *metrics.Metrics, log zerolog.Logger) *Session {
	s := &Session{
		ctrl:    ctrl,
		store:   store,
		surface: surface,
		met:     met,
		log:     log.With().Str("component", "session").Logger(),
	}
	s.state.Store(int32(StateIdle))
	surface.Load(display.ScreenIdle)
	return s
}

// State returns the current state. Safe from any goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

// HandleEvent applies one button event synchronously. The returned error
// reports a failed or degraded transition; the state after the call is
// authoritative either way.
func (s *Session) HandleEvent(ctx context.Context, ev Event) error {
	s.log.Debug().Stringer("state", s.State()).Stringer("event", ev).Msg("button event")

	switch s.State() {
	case StateIdle:
		if ev == EventPrimary {
			return s.enterLive(ctx, ev)
		}

	case StateLive:
		switch ev {
		case EventPrimary:
			err := s.takePhoto()
			s.enterReview(ev)
			return err
		case EventSecondary:
			return s.enterIdle(ev)
		}

	case StateReview:
		if ev == EventSecondary {
			return s.enterLive(ctx, ev)
		}
	}

	return nil
}

// enterLive (re)starts the capture session. On failure the state is left
// unchanged and the error surfaced; there is no automatic retry.
func (s *Session) enterLive(ctx context.Context, ev Event) error {
	if err := s.ctrl.Start(ctx); err != nil {
		s.log.Error().Err(err).Msg("capture start failed, staying in current state")
		return err
	}

	if f, ok := s.ctrl.CurrentFrame(); ok {
		s.surface.SetLiveImage(s.descriptor(f.Data, f.Width, f.Height))
	}
	s.surface.SetFPSLabel("FPS: --")

	s.transition(StateLive, ev)
	s.surface.Load(display.ScreenLive)
	return nil
}

// enterIdle stops the capture session.
func (s *Session) enterIdle(ev Event) error {
	if err := s.ctrl.Stop(); err != nil {
		s.log.Error().Err(err).Msg("capture stop failed")
		return err
	}

	s.transition(StateIdle, ev)
	s.surface.Load(display.ScreenIdle)
	return nil
}

// takePhoto stops streaming (so the driver cannot overwrite the buffer
// mid-copy), copies the current frame out, and saves it. A save failure
// leaves the store empty per the photostore contract; the caller still
// proceeds to Review.
func (s *Session) takePhoto() error {
	if err := s.ctrl.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("capture stop before photo")
	}

	f, ok := s.ctrl.CurrentFrame()
	if !ok {
		s.met.IncPhotoSave(false)
		s.log.Error().Msg("cannot take photo: buffer not ready")
		return capture.ErrNoFrameAvailable
	}

	photo := f.Clone()
	if err := s.store.Save(photo.Data, photo.Width, photo.Height); err != nil {
		s.met.IncPhotoSave(false)
		s.log.Error().Err(err).Str("trace_id", photo.TraceID).Msg("photo save failed, store now empty")
		return err
	}

	s.met.IncPhotoSave(true)
	s.log.Info().
		Uint64("seq", photo.Seq).
		Str("trace_id", photo.TraceID).
		Msg("photo taken")
	return nil
}

// enterReview shows the stored photo, falling back to the latest live
// frame when the store is empty. The fallback is display-only and never
// persisted. The capture controller is not touched here.
func (s *Session) enterReview(ev Event) {
	if v, err := s.store.Get(); err == nil {
		s.surface.SetReviewImage(s.descriptor(v.Data, v.Width, v.Height))
	} else if f, ok := s.ctrl.CurrentFrame(); ok {
		s.log.Warn().Msg("no stored photo, review shows live buffer")
		s.surface.SetReviewImage(s.descriptor(f.Data, f.Width, f.Height))
	}

	s.transition(StateReview, ev)
	s.surface.Load(display.ScreenReview)
	s.surface.Invalidate(display.ScreenReview)
}

func (s *Session) transition(to State, ev Event) {
	from := s.State()
	s.met.IncTransition(from.String(), to.String(), ev.String())
	s.log.Info().Stringer("from", from).Stringer("to", to).Msg("state transition")
	s.state.Store(int32(to))
}

// Tick services one control-loop iteration: in Live it consumes the
// frame cell (read-and-clear) and refreshes the viewfinder, plus the
// throttled FPS label. Other states have nothing periodic to do.
//
// Frame handles obtained here are used within this tick only; nothing
// retains them past the next poll, per the borrowed-view contract.
func (s *Session) Tick() {
	if s.State() != StateLive {
		return
	}

	if f, fresh := s.ctrl.LatestFrame(); fresh && f != nil {
		s.surface.SetLiveImage(s.descriptor(f.Data, f.Width, f.Height))
		s.surface.Invalidate(display.ScreenLive)
		s.met.IncFrameDisplayed()
	}

	if time.Since(s.fpsShownAt) >= fpsRefreshInterval {
		s.fpsShownAt = time.Now()
		s.surface.SetFPSLabel(fmt.Sprintf("FPS: %.1f", s.ctrl.FPS()))
	}
}

func (s *Session) descriptor(data []byte, width, height int) display.Image {
	return display.Image{
		Format: display.FormatRGB565,
		Width:  width,
		Height: height,
		Stride: width * display.FormatRGB565.BytesPerPixel(),
		Data:   data,
		Size:   len(data),
	}
}
