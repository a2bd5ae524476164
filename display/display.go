// Package display defines the contract consumed by the rendering
// toolkit. The core hands over image descriptors and redraw requests;
// redraw timing and batching are the display layer's concern.
package display

import "fmt"

// Format tags the pixel layout of an image descriptor.
type Format uint8

const (
	// FormatRGB565 is 16-bit 5-6-5 packed RGB, little endian.
	FormatRGB565 Format = iota
)

func (f Format) String() string {
	switch f {
	case FormatRGB565:
		return "RGB565"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// BytesPerPixel returns the pixel width in bytes.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGB565:
		return 2
	default:
		return 0
	}
}

// Image is the descriptor handed to the display surface. Data is
// borrowed: valid only until the producer's next frame boundary (live
// view) or the next photo store mutation (review view).
type Image struct {
	Format Format
	Width  int
	Height int
	Stride int
	Data   []byte
	Size   int
}

// Screen identifies one of the device's three screens.
type Screen int

const (
	ScreenIdle Screen = iota
	ScreenLive
	ScreenReview
)

func (s Screen) String() string {
	switch s {
	case ScreenIdle:
		return "idle"
	case ScreenLive:
		return "live"
	case ScreenReview:
		return "review"
	default:
		return fmt.Sprintf("Screen(%d)", int(s))
	}
}

// Surface is the display collaborator. Implementations decide how and
// when pixels actually hit glass; calls here only update descriptors and
// request redraws. All calls come from the control goroutine.
type Surface interface {
	// Load switches the visible screen.
	Load(Screen)

	// SetLiveImage updates the viewfinder image descriptor.
	SetLiveImage(Image)

	// SetReviewImage updates the review (stored photo) image descriptor.
	SetReviewImage(Image)

	// Invalidate requests a redraw of the given screen's image region.
	Invalidate(Screen)

	// SetFPSLabel updates the viewfinder's FPS text.
	SetFPSLabel(text string)
}
