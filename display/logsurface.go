package display

import "github.com/rs/zerolog"

// LogSurface is a Surface that renders to the structured log. Stands in
// for the LCD in the demo binary and headless deployments.
type LogSurface struct {
	log zerolog.Logger
}

func NewLogSurface(log zerolog.Logger) *LogSurface {
	return &LogSurface{log: log.With().Str("component", "display").Logger()}
}

func (s *LogSurface) Load(scr Screen) {
	s.log.Info().Stringer("screen", scr).Msg("screen loaded")
}

func (s *LogSurface) SetLiveImage(img Image) {
	s.log.Debug().
		Stringer("format", img.Format).
		Int("width", img.Width).
		Int("height", img.Height).
		Int("stride", img.Stride).
		Msg("live image descriptor updated")
}

func (s *LogSurface) SetReviewImage(img Image) {
	s.log.Debug().
		Stringer("format", img.Format).
		Int("width", img.Width).
		Int("height", img.Height).
		Msg("review image descriptor updated")
}

func (s *LogSurface) Invalidate(scr Screen) {
	s.log.Trace().Stringer("screen", scr).Msg("invalidate")
}

func (s *LogSurface) SetFPSLabel(text string) {
	s.log.Debug().Str("label", text).Msg("fps label")
}
