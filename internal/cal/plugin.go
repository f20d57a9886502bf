// Package cal defines the Capture Abstraction Layer contract: the small
// set of operations any capture backend must implement, and the config
// record a backend populates during Init.
//
// The original implementation (see DESIGN.md) loaded this as a dlopen'd
// shared object exporting a record of five function pointers. Per the
// spec's redesign notes this is re-expressed as a plain Go interface —
// dynamic loading was a deployment choice, not a core requirement. A
// backend is just a Go type satisfying Plugin; the vgpu subpackage is
// the one reference backend.
package cal

import "edss/internal/status"

// PixFmt enumerates the small set of source pixel formats a CAL backend
// may report. The reference backend always reports BGRA.
type PixFmt int

const (
	PixFmtBGRA PixFmt = iota
	PixFmtNV12
)

func (f PixFmt) BytesPerPixel() int {
	switch f {
	case PixFmtBGRA:
		return 4
	case PixFmtNV12:
		return 1 // base plane; chroma handled separately by callers that care
	default:
		return 4
	}
}

// Config is populated by Plugin.Init and describes the capture surface.
// Frame is a borrowed pointer into plugin-owned memory: it must not be
// freed by the caller, stays stable across ReadFrame calls (though the
// bytes behind it may change), and must not be dereferenced after
// Shutdown returns.
type Config struct {
	Width     uint16
	Height    uint16
	PixFmt    PixFmt
	Framerate uint16
	Frame     []byte // window into plugin-owned memory; do not retain past Shutdown
}

// FrameSize is width*height*bytes_per_pixel(pixfmt), the invariant quantity
// spec §3 requires to be constant for the session's lifetime.
func (c *Config) FrameSize() int {
	return int(c.Width) * int(c.Height) * c.PixFmt.BytesPerPixel()
}

// MouseEvent is the tagged union of input events the Facade forwards to
// a plugin's WriteMouseEvent. Exactly one of the two shapes is populated,
// selected by Kind.
type MouseEvent struct {
	Kind MouseEventKind

	// Click fields.
	Button  MouseButton
	Pressed bool

	// Move fields: absolute pixel position in [0, width) x [0, height).
	X, Y int
}

type MouseEventKind int

const (
	MouseClick MouseEventKind = iota
	MouseMove
)

type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonMiddle
	MouseButtonRight
)

// Plugin is the Capture Abstraction Layer contract (spec §4.1). A backend
// is loaded once and referenced for the lifetime of a session.
//
// Lifecycle: Options -> Init -> (ReadFrame | WriteMouseEvent)* -> Shutdown.
type Plugin interface {
	// Name identifies the backend for logging.
	Name() string

	// Options returns a recognized-keys map seeded with empty default
	// values, e.g. {"vgpuId": ""} for the reference vGPU backend.
	Options() map[string]string

	// Init validates options, acquires capture resources, and fills cfg.
	// After it returns OK, cfg.Frame must be readable and kept live until
	// Shutdown.
	Init(options map[string]string, cfg *Config) status.Status

	// ReadFrame ensures cfg.Frame reflects the latest available surface.
	// For kernel-updated surfaces (memory-mapped framebuffers) this is a
	// no-op that always returns OK.
	ReadFrame() status.Status

	// WriteMouseEvent injects one logical event into the guest's input
	// stream. Every logical event must terminate with a synchronization
	// marker on the underlying device.
	WriteMouseEvent(event MouseEvent) status.Status

	// Shutdown releases all resources. After it returns, cfg.Frame must
	// not be dereferenced.
	Shutdown() status.Status
}
