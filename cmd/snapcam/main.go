// Command snapcam runs the capture device against the simulated sensor:
// the session state machine on a single control loop, the photo store
// over the secondary heap, and the diagnostics HTTP surface.
//
// Button events arrive through the diagnostics API:
//
//	curl -X POST localhost:8650/api/v1/input/primary
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/e7canasta/snapcam/capture"
	"github.com/e7canasta/snapcam/capture/sim"
	"github.com/e7canasta/snapcam/config"
	"github.com/e7canasta/snapcam/diag"
	"github.com/e7canasta/snapcam/display"
	"github.com/e7canasta/snapcam/logging"
	"github.com/e7canasta/snapcam/memheap"
	"github.com/e7canasta/snapcam/metrics"
	"github.com/e7canasta/snapcam/photostore"
	"github.com/e7canasta/snapcam/session"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "snapcam:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()

	heap := memheap.New(cfg.Storage.RegionSize)
	store := photostore.New(heap, log)
	met.ObserveHeap(store.HeapStats)

	sensor := sim.New(sim.Config{
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	}, log)
	ctrl := capture.New(sensor, capture.Options{
		FirstFrameTimeout: cfg.Capture.FirstFrameTimeout,
		PollInterval:      cfg.Capture.PollInterval,
	}, log)
	met.ObserveCapture(ctrl.FPS,
		func() uint64 { return ctrl.Stats().Frames },
		func() uint64 { return ctrl.Stats().Drops })

	surface := display.NewLogSurface(log)
	sess := session.New(ctrl, store, surface, met, log)

	// Capacity one: at most a single pending press, like a debounced
	// button flag.
	events := make(chan session.Event, 1)

	var diagSrv *http.Server
	if cfg.Diag.Enabled {
		diagSrv = &http.Server{
			Addr: cfg.Diag.Addr,
			Handler: diag.NewRouter(diag.Deps{
				Session:    sess,
				Controller: ctrl,
				Store:      store,
				Metrics:    met,
				Events:     events,
				Log:        log,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Diag.Addr).Msg("diagnostics listening")
			if err := diagSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("diagnostics server failed")
			}
		}()
	}

	log.Info().
		Int("width", cfg.Camera.Width).
		Int("height", cfg.Camera.Height).
		Int("region_bytes", cfg.Storage.RegionSize).
		Msg("snapcam up")

	controlLoop(ctx, sess, events, cfg.Loop.TickInterval, log)

	// Orderly teardown: stop streaming, then the diagnostics server.
	if err := ctrl.Stop(); err != nil {
		log.Warn().Err(err).Msg("capture stop on shutdown")
	}
	if diagSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := diagSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("diagnostics shutdown")
		}
	}

	log.Info().Msg("snapcam down")
	return nil
}

// controlLoop is the single goroutine that owns every state transition
// and display update, mirroring the device's main thread. It services
// pending button events and the periodic tick until ctx is cancelled.
func controlLoop(ctx context.Context, sess *session.Session, events <-chan session.Event, tick time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := sess.HandleEvent(ctx, ev); err != nil {
				log.Error().Err(err).Stringer("event", ev).Msg("event handling degraded")
			}
		case <-ticker.C:
			sess.Tick()
		}
	}
}
