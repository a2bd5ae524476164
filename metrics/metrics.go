// Package metrics provides Prometheus collectors for the capture device.
//
// Exposed metrics:
//   - snapcam_frames_displayed_total: fresh frames rendered to the live view
//   - snapcam_photo_saves_total / snapcam_photo_save_failures_total
//   - snapcam_state_transitions_total{from,to,event}
//   - snapcam_heap_used_bytes / snapcam_heap_size_bytes (gauge funcs)
//   - snapcam_sensor_fps (gauge func)
//   - snapcam_frames_total / snapcam_frame_drops_total (counter funcs
//     over the capture controller's lifetime counters)
//
// Collectors live on a private registry served by the diagnostics
// surface at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/e7canasta/snapcam/memheap"
)

// Metrics bundles the device collectors. A nil *Metrics is valid and
// ignored by all instrumented code paths.
type Metrics struct {
	registry *prometheus.Registry

	FramesDisplayed   prometheus.Counter
	PhotoSaves        prometheus.Counter
	PhotoSaveFailures prometheus.Counter
	Transitions       *prometheus.CounterVec
}

// New creates the registry and the counters owned by the control loop.
// Observed collectors (heap, sensor) attach via the Observe* methods
// once their sources exist.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.FramesDisplayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapcam_frames_displayed_total",
		Help: "Fresh frames rendered to the live viewfinder.",
	})
	m.PhotoSaves = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapcam_photo_saves_total",
		Help: "Successful photo saves.",
	})
	m.PhotoSaveFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapcam_photo_save_failures_total",
		Help: "Failed photo saves (store empty afterwards).",
	})
	m.Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapcam_state_transitions_total",
		Help: "Session state transitions.",
	}, []string{"from", "to", "event"})

	m.registry.MustRegister(
		m.FramesDisplayed,
		m.PhotoSaves,
		m.PhotoSaveFailures,
		m.Transitions,
	)

	return m
}

// ObserveHeap registers gauge funcs over the secondary heap stats.
func (m *Metrics) ObserveHeap(stats func() memheap.Stats) {
	if m == nil {
		return
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "snapcam_heap_used_bytes",
			Help: "Bytes handed out by the secondary memory heap (diagnostic counter).",
		}, func() float64 { return float64(stats().Used) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "snapcam_heap_size_bytes",
			Help: "Fixed capacity of the secondary memory heap.",
		}, func() float64 { return float64(stats().Size) }),
	)
}

// ObserveCapture registers collectors over the capture controller's
// lifetime counters and the sensor's rolling FPS estimate.
func (m *Metrics) ObserveCapture(fps func() float64, frames, drops func() uint64) {
	if m == nil {
		return
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "snapcam_sensor_fps",
			Help: "Sensor rolling frames-per-second estimate.",
		}, fps),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "snapcam_frames_total",
			Help: "Frame notifications observed by the capture controller.",
		}, func() float64 { return float64(frames()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "snapcam_frame_drops_total",
			Help: "Frames overwritten before the control loop consumed them.",
		}, func() float64 { return float64(drops()) }),
	)
}

// Registry returns the private registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncTransition records a state transition. Nil-safe.
func (m *Metrics) IncTransition(from, to, event string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to, event).Inc()
}

// IncFrameDisplayed is nil-safe sugar for the tick path.
func (m *Metrics) IncFrameDisplayed() {
	if m != nil {
		m.FramesDisplayed.Inc()
	}
}

// IncPhotoSave records a save outcome. Nil-safe.
func (m *Metrics) IncPhotoSave(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.PhotoSaves.Inc()
	} else {
		m.PhotoSaveFailures.Inc()
	}
}
