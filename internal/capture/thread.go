// Package capture implements the Capture Thread state machine (spec
// §4.3): Idle -> Running -> Exiting, pulling frames from a cal.Plugin
// into one of two double-buffered slots and publishing them onto a
// ring.FrameRing.
//
// Grounded on richinsley-bunghole/internal/server/server.go's
// runPipeline ticker-paced capture loop (the teacher's closest analogue
// to a dedicated capture thread) and on
// _examples/original_source/EDSS/src/edssCapture.c's exact slot-select /
// copy / enqueue / post / sleep sequence.
package capture

import (
	"log"
	"sync/atomic"
	"time"

	"edss/internal/cal"
	"edss/internal/ring"
	"edss/internal/status"
)

// framePeriod is the sole pacing mechanism (spec §4.2 invariant): the
// producer sleeps ~16.6ms between frames regardless of configured
// framerate, matching the reference vGPU backend's fixed 60Hz surface.
const framePeriod = 16600 * time.Microsecond

// Thread runs the capture loop on its own goroutine.
type Thread struct {
	plugin cal.Plugin
	cfg    *cal.Config
	ring   *ring.FrameRing
	slots  [2]*ring.Slot

	finished atomic.Bool
	done     chan struct{}
}

// NewThread allocates the two capture slots sized to one frame each and
// returns a Thread ready to Run.
func NewThread(plugin cal.Plugin, cfg *cal.Config, frameRing *ring.FrameRing) *Thread {
	size := cfg.FrameSize()
	return &Thread{
		plugin: plugin,
		cfg:    cfg,
		ring:   frameRing,
		slots:  [2]*ring.Slot{ring.NewSlot(size), ring.NewSlot(size)},
		done:   make(chan struct{}),
	}
}

// Stop sets the cooperative shutdown flag. Safe to call once; the
// caller (Server Facade) is responsible for also posting the ring's
// semaphore so the stream thread wakes (spec §5 cancellation model).
func (t *Thread) Stop() { t.finished.Store(true) }

// Run is the capture loop body (spec §4.3 Running state). It returns
// once Stop has been observed and both slot buffers have had their
// final owning unlock; call from its own goroutine and Wait on Done()
// to join.
func (t *Thread) Run() {
	defer close(t.done)

	for {
		slot := t.acquireFreeSlot()

		if t.finished.Load() {
			slot.Unlock()
			t.ring.PostShutdown()
			return
		}

		if st := t.plugin.ReadFrame(); st != status.OK {
			log.Printf("capture: ReadFrame failed: %s", st)
			slot.Unlock()
			time.Sleep(framePeriod)
			continue
		}

		n := copy(slot.Buffer, t.cfg.Frame)
		slot.Unlock()

		if n != len(slot.Buffer) {
			log.Printf("capture: short frame copy: got %d want %d", n, len(slot.Buffer))
		}

		if !t.ring.Push(slot) {
			log.Printf("capture: ring full, dropping frame")
			// spec §4.2: enqueue failure must not post the semaphore.
			time.Sleep(framePeriod)
			continue
		}

		time.Sleep(framePeriod)
	}
}

// acquireFreeSlot spins over the two slot mutexes, biased to slot 1
// (spec §4.3 step 1, §4.2 producer discipline).
func (t *Thread) acquireFreeSlot() *ring.Slot {
	for {
		if t.slots[0].TryLock() {
			return t.slots[0]
		}
		if t.slots[1].TryLock() {
			return t.slots[1]
		}
	}
}

// Done returns a channel closed when Run has returned.
func (t *Thread) Done() <-chan struct{} { return t.done }
