package capture

import (
	"testing"
	"time"

	"edss/internal/cal"
	"edss/internal/ring"
	"edss/internal/status"
)

// fakePlugin produces an incrementing byte value per ReadFrame call so
// tests can assert frames actually flow from plugin to ring.
type fakePlugin struct {
	frame []byte
	n     byte
}

func (p *fakePlugin) Name() string               { return "fake" }
func (p *fakePlugin) Options() map[string]string { return nil }
func (p *fakePlugin) Init(map[string]string, *cal.Config) status.Status {
	return status.OK
}
func (p *fakePlugin) ReadFrame() status.Status {
	p.n++
	for i := range p.frame {
		p.frame[i] = p.n
	}
	return status.OK
}
func (p *fakePlugin) WriteMouseEvent(cal.MouseEvent) status.Status { return status.OK }
func (p *fakePlugin) Shutdown() status.Status                      { return status.OK }

func TestThreadPublishesFramesToRing(t *testing.T) {
	frameBuf := make([]byte, 8) // width(2) * height(1) * bytesPerPixel(BGRA=4)
	plugin := &fakePlugin{frame: frameBuf}
	cfg := &cal.Config{Width: 2, Height: 1, PixFmt: cal.PixFmtBGRA, Frame: frameBuf}

	r := ring.NewFrameRing()
	th := NewThread(plugin, cfg, r)

	go th.Run()
	defer func() {
		th.Stop()
		r.PostShutdown()
		<-th.Done()
	}()

	r.Wait()
	slot, ok := r.Pop()
	if !ok {
		t.Fatal("expected a published slot")
	}
	if len(slot.Buffer) != len(frameBuf) {
		t.Fatalf("slot buffer size = %d, want %d", len(slot.Buffer), len(frameBuf))
	}
}

func TestThreadStopJoins(t *testing.T) {
	frameBuf := make([]byte, 8)
	plugin := &fakePlugin{frame: frameBuf}
	cfg := &cal.Config{Width: 2, Height: 1, PixFmt: cal.PixFmtBGRA, Frame: frameBuf}

	r := ring.NewFrameRing()
	th := NewThread(plugin, cfg, r)

	go th.Run()

	th.Stop()

	select {
	case <-th.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop within timeout")
	}
}
