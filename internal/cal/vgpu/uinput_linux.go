//go:build linux

package vgpu

// Minimal /dev/uinput driver: enough to create one absolute-pointer +
// three-button mouse device and feed it ABS_X/ABS_Y/KEY/SYN_REPORT
// events. This is the pure-Go analogue of the teacher's XTest-based
// input injector (richinsley-bunghole/internal/input/xtest_linux.go),
// translated to the uinput character-device ABI because the vGPU
// backend targets a guest kernel input stack, not an X server.

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0

	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112

	absX = 0x00
	absY = 0x01

	absCnt = 64

	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetAbsBit  = 0x40045567
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
)

// uinputUserDev mirrors struct uinput_user_dev from linux/uinput.h.
type uinputUserDev struct {
	Name      [80]byte
	BusType   uint16
	Vendor    uint16
	Product   uint16
	Version   uint16
	FFEffects uint32
	AbsMax    [absCnt]int32
	AbsMin    [absCnt]int32
	AbsFuzz   [absCnt]int32
	AbsFlat   [absCnt]int32
}

// inputEvent mirrors struct input_event on a 64-bit kernel: exactly 24
// bytes (2x int64 timeval + 2x uint16 + int32), already 8-byte aligned
// with no trailing pad. binary.Write packs fields tightly, so an extra
// field here would make every emit() write 28 bytes and get rejected by
// the kernel's uinput_write.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// uinputDevice is a created virtual absolute-pointer + button input
// device, feeding synthetic mouse clicks and absolute moves into the
// kernel input stack.
type uinputDevice struct {
	f *os.File
}

func newUinputDevice(width, height int) (*uinputDevice, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w", err)
	}

	if err := ioctl(f, uiSetEvBit, evKey); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_SET_EVBIT EV_KEY: %w", err)
	}
	if err := ioctl(f, uiSetEvBit, evAbs); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_SET_EVBIT EV_ABS: %w", err)
	}
	for _, btn := range []int{btnLeft, btnRight, btnMiddle} {
		if err := ioctl(f, uiSetKeyBit, btn); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_KEYBIT %#x: %w", btn, err)
		}
	}
	for _, axis := range []int{absX, absY} {
		if err := ioctl(f, uiSetAbsBit, axis); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_ABSBIT %#x: %w", axis, err)
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:], "edss-vgpu-mouse")
	dev.BusType = 0x03 // BUS_USB
	dev.Vendor = 0x1
	dev.Product = 0x1
	dev.Version = 1
	dev.AbsMin[absX], dev.AbsMax[absX] = 0, int32(width-1)
	dev.AbsMin[absY], dev.AbsMax[absY] = 0, int32(height-1)

	if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
		f.Close()
		return nil, fmt.Errorf("write uinput_user_dev: %w", err)
	}

	if err := ioctl(f, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	return &uinputDevice{f: f}, nil
}

func (d *uinputDevice) emit(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	return binary.Write(d.f, binary.LittleEndian, &ev)
}

func (d *uinputDevice) sync() error {
	return d.emit(evSyn, synReport, 0)
}

// moveAbs sends ABS_X, ABS_Y followed by one SYN_REPORT, matching the
// exact per-event synchronization framing spec §4.1/§8 scenario 5
// requires: one SYN_REPORT terminating the whole logical move.
func (d *uinputDevice) moveAbs(x, y int) error {
	if err := d.emit(evAbs, absX, int32(x)); err != nil {
		return err
	}
	if err := d.emit(evAbs, absY, int32(y)); err != nil {
		return err
	}
	return d.sync()
}

// click sends one KEY event on the given button code followed by one
// SYN_REPORT.
func (d *uinputDevice) click(button int, pressed bool) error {
	v := int32(0)
	if pressed {
		v = 1
	}
	if err := d.emit(evKey, uint16(button), v); err != nil {
		return err
	}
	return d.sync()
}

func (d *uinputDevice) close() error {
	_ = ioctl(d.f, uiDevDestroy, 0)
	return d.f.Close()
}

func ioctl(f *os.File, req uint, arg int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
