// Package diag exposes the device's diagnostics over HTTP: application
// status, photo metadata, photo export, clear, button injection, and
// Prometheus metrics.
//
// Handlers perform reads and store mutations only; state transitions
// happen exclusively on the control loop, so the button endpoint merely
// queues an event for it.
package diag

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/e7canasta/snapcam/capture"
	"github.com/e7canasta/snapcam/export"
	"github.com/e7canasta/snapcam/metrics"
	"github.com/e7canasta/snapcam/photostore"
	"github.com/e7canasta/snapcam/session"
)

// Deps wires the router to the device internals. Events may be nil to
// disable button injection; Metrics may be nil to disable /metrics.
type Deps struct {
	Session    *session.Session
	Controller *capture.Controller
	Store      *photostore.Store
	Metrics    *metrics.Metrics
	Events     chan<- session.Event
	Log        zerolog.Logger
}

type handler struct {
	d   Deps
	log zerolog.Logger
}

// NewRouter builds the diagnostics router:
//
//	GET    /api/v1/status        device status snapshot
//	GET    /api/v1/photo         stored photo metadata
//	DELETE /api/v1/photo         clear the stored photo
//	GET    /api/v1/photo/export  tagged hex dump of the stored photo
//	POST   /api/v1/input/{button}  inject a button event (primary|secondary)
//	GET    /metrics              prometheus exposition
func NewRouter(d Deps) http.Handler {
	h := &handler{d: d, log: d.Log.With().Str("component", "diag").Logger()}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/photo", h.photoInfo)
		r.Delete("/photo", h.photoClear)
		r.Get("/photo/export", h.photoExport)
		r.Post("/input/{button}", h.input)
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	return r
}

type captureReport struct {
	Running bool   `json:"running"`
	Frames  uint64 `json:"frames"`
	Drops   uint64 `json:"drops"`
}

type sensorReport struct {
	Name           string  `json:"name"`
	ChipID         uint16  `json:"chip_id"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FPS            float64 `json:"fps"`
	CompleteFrames uint64  `json:"complete_frames"`
	Errors         uint64  `json:"errors"`
}

type heapReport struct {
	SizeBytes   int    `json:"size_bytes"`
	UsedBytes   uint64 `json:"used_bytes"`
	FreeBytes   uint64 `json:"free_bytes"`
	Initialized bool   `json:"initialized"`
}

type statusReport struct {
	State      string        `json:"state"`
	Capture    captureReport `json:"capture"`
	Sensor     sensorReport  `json:"sensor"`
	Heap       heapReport    `json:"heap"`
	PhotoValid bool          `json:"photo_valid"`
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	stats := h.d.Controller.Stats()
	st := h.d.Controller.SensorStatus()
	info := h.d.Controller.SensorInfo()
	heap := h.d.Store.HeapStats()

	h.writeJSON(w, http.StatusOK, statusReport{
		State: h.d.Session.State().String(),
		Capture: captureReport{
			Running: stats.Running,
			Frames:  stats.Frames,
			Drops:   stats.Drops,
		},
		Sensor: sensorReport{
			Name:           info.Name,
			ChipID:         info.ChipID,
			Width:          info.Width,
			Height:         info.Height,
			FPS:            st.FPS,
			CompleteFrames: st.CompleteFrames,
			Errors:         st.Errors,
		},
		Heap: heapReport{
			SizeBytes:   heap.Size,
			UsedBytes:   heap.Used,
			FreeBytes:   heap.Free,
			Initialized: heap.Initialized,
		},
		PhotoValid: h.d.Store.Valid(),
	})
}

type photoReport struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"size_bytes"`
	TakenAt   string `json:"taken_at"`
}

func (h *handler) photoInfo(w http.ResponseWriter, r *http.Request) {
	v, err := h.d.Store.Get()
	if errors.Is(err, photostore.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no photo stored")
		return
	}

	h.writeJSON(w, http.StatusOK, photoReport{
		Width:     v.Width,
		Height:    v.Height,
		SizeBytes: v.Size,
		TakenAt:   v.TakenAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func (h *handler) photoClear(w http.ResponseWriter, r *http.Request) {
	h.d.Store.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) photoExport(w http.ResponseWriter, r *http.Request) {
	// Probe first so an empty store yields a clean 404 instead of a
	// half-written body.
	if _, err := h.d.Store.Get(); errors.Is(err, photostore.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no photo stored")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := export.Dump(w, h.d.Store); err != nil {
		h.log.Error().Err(err).Msg("photo export failed")
	}
}

func (h *handler) input(w http.ResponseWriter, r *http.Request) {
	if h.d.Events == nil {
		h.writeError(w, http.StatusServiceUnavailable, "input injection disabled")
		return
	}

	var ev session.Event
	switch chi.URLParam(r, "button") {
	case "primary":
		ev = session.EventPrimary
	case "secondary":
		ev = session.EventSecondary
	default:
		h.writeError(w, http.StatusBadRequest, "unknown button")
		return
	}

	// Non-blocking, like a debounced GPIO flag: if the control loop has
	// not consumed the previous press yet, this one is dropped.
	select {
	case h.d.Events <- ev:
		w.WriteHeader(http.StatusAccepted)
	default:
		h.writeError(w, http.StatusTooManyRequests, "event queue full")
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("response encode failed")
	}
}

func (h *handler) writeError(w http.ResponseWriter, code int, msg string) {
	h.writeJSON(w, code, map[string]string{"error": msg})
}
