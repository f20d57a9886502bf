//go:build !linux

// Package vgpu has no backend outside Linux: the vGPU device node and
// uinput are Linux kernel interfaces. Mirrors the teacher's
// platform-stub convention (richinsley-bunghole/internal/vm/vm_other.go)
// for keeping the rest of the module buildable on other hosts.
package vgpu

import (
	"edss/internal/cal"
	"edss/internal/status"
)

func init() {
	cal.Register("vgpu", func() cal.Plugin { return &Plugin{} })
}

type Plugin struct{}

func (p *Plugin) Name() string                    { return "vgpu" }
func (p *Plugin) Options() map[string]string      { return map[string]string{"vgpuId": ""} }
func (p *Plugin) Shutdown() status.Status          { return status.OK }
func (p *Plugin) ReadFrame() status.Status         { return status.OK }
func (p *Plugin) WriteMouseEvent(cal.MouseEvent) status.Status {
	return status.CalLibraryFailure
}

func (p *Plugin) Init(map[string]string, *cal.Config) status.Status {
	return status.CalLibraryFailure
}
