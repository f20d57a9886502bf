//go:build linux

// Package vgpu is the reference CAL backend (spec §4.1 "Reference vGPU
// plugin"): it memory-maps the BGRA console framebuffer of a virtual GPU
// device and injects mouse events through a created uinput device.
//
// Grounded on _examples/original_source/EDSS/CAL/vgpu/calPluginVgpu.c
// (device path, fixed 1920x1080x4 region, VGPU_MMAP_CONSOLE_OFFSET) and
// richinsley-bunghole/internal/capture/nvfbc_linux.go's style of owning
// a kernel/driver handle behind a small Go wrapper struct.
package vgpu

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"

	"edss/internal/cal"
	"edss/internal/status"
)

func init() {
	cal.Register("vgpu", func() cal.Plugin { return &Plugin{} })
}

const (
	imgWidth  = 1920
	imgHeight = 1080
	// consoleOffset is the fixed device offset the vGPU driver exposes
	// its console framebuffer at (original_source: VGPU_MMAP_CONSOLE_OFFSET).
	consoleOffset = 0x10000000000
)

// Plugin is the reference vGPU CAL backend. It holds exactly one live
// capture session; re-initialization is undefined (spec §4.1).
type Plugin struct {
	fd     int
	mapped []byte
	input  *uinputDevice
	cfg    *cal.Config
}

func (p *Plugin) Name() string { return "vgpu" }

func (p *Plugin) Options() map[string]string {
	return map[string]string{"vgpuId": ""}
}

func (p *Plugin) Init(options map[string]string, cfg *cal.Config) status.Status {
	idStr, ok := options["vgpuId"]
	if !ok {
		return status.InvalidCalOptions
	}
	vgpuID, err := strconv.Atoi(idStr)
	if err != nil {
		return status.InvalidCalOptions
	}

	path := fmt.Sprintf("/dev/nvidia-vgpu%d", vgpuID)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return status.CalFileNotFound
	}

	region, err := unix.Mmap(fd, consoleOffset, imgWidth*imgHeight*4, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		unix.Close(fd)
		return status.CalLibraryFailure
	}

	input, err := newUinputDevice(imgWidth, imgHeight)
	if err != nil {
		unix.Munmap(region)
		unix.Close(fd)
		return status.CalLibraryFailure
	}

	p.fd = fd
	p.mapped = region
	p.input = input
	p.cfg = cfg

	cfg.Width = imgWidth
	cfg.Height = imgHeight
	cfg.PixFmt = cal.PixFmtBGRA
	// TODO: derive framerate from vGPU metadata (e.g.
	// /sys/bus/mdev/devices/<uuid>/nvidia/vgpu_params) instead of
	// hardcoding; no such source exists in this environment yet.
	cfg.Framerate = 60
	cfg.Frame = p.mapped

	return status.OK
}

// ReadFrame is a no-op: the mapped region is kernel-updated, so
// cfg.Frame already reflects the latest surface (spec §4.1).
func (p *Plugin) ReadFrame() status.Status { return status.OK }

func (p *Plugin) WriteMouseEvent(event cal.MouseEvent) status.Status {
	if p.input == nil {
		return status.Uninitialised
	}
	var err error
	switch event.Kind {
	case cal.MouseMove:
		err = p.input.moveAbs(event.X, event.Y)
	case cal.MouseClick:
		err = p.input.click(buttonCode(event.Button), event.Pressed)
	}
	if err != nil {
		return status.CalLibraryFailure
	}
	return status.OK
}

func (p *Plugin) Shutdown() status.Status {
	if p.input != nil {
		_ = p.input.close()
		p.input = nil
	}
	if p.mapped != nil {
		_ = unix.Munmap(p.mapped)
		p.mapped = nil
	}
	if p.fd != 0 {
		err := unix.Close(p.fd)
		p.fd = 0
		if err != nil {
			return status.CalLibraryFailure
		}
	}
	if p.cfg != nil {
		p.cfg.Frame = nil
		p.cfg.Width = 0
		p.cfg.Height = 0
		p.cfg.PixFmt = 0
		p.cfg = nil
	}
	return status.OK
}

func buttonCode(b cal.MouseButton) int {
	switch b {
	case cal.MouseButtonMiddle:
		return btnMiddle
	case cal.MouseButtonRight:
		return btnRight
	default:
		return btnLeft
	}
}
