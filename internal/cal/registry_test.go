package cal

import (
	"testing"

	"edss/internal/status"
)

type stubPlugin struct{ name string }

func (p *stubPlugin) Name() string               { return p.name }
func (p *stubPlugin) Options() map[string]string { return nil }
func (p *stubPlugin) Init(map[string]string, *Config) status.Status {
	return status.OK
}
func (p *stubPlugin) ReadFrame() status.Status { return status.OK }
func (p *stubPlugin) WriteMouseEvent(MouseEvent) status.Status {
	return status.OK
}
func (p *stubPlugin) Shutdown() status.Status { return status.OK }

func TestLoadPluginReturnsRegisteredFactory(t *testing.T) {
	Register("stub-test", func() Plugin { return &stubPlugin{name: "stub-test"} })

	p, err := LoadPlugin("stub-test")
	if err != nil {
		t.Fatalf("LoadPlugin returned error: %v", err)
	}
	if p.Name() != "stub-test" {
		t.Fatalf("p.Name() = %q, want %q", p.Name(), "stub-test")
	}
}

func TestLoadPluginUnknownNameErrors(t *testing.T) {
	if _, err := LoadPlugin("does-not-exist"); err == nil {
		t.Fatal("expected an error for an unregistered plugin name")
	}
}

func TestConfigFrameSize(t *testing.T) {
	c := &Config{Width: 1920, Height: 1080, PixFmt: PixFmtBGRA}
	if got, want := c.FrameSize(), 1920*1080*4; got != want {
		t.Fatalf("FrameSize() = %d, want %d", got, want)
	}
}
