// Package stream implements the Stream Thread (spec §4.5): the sole
// consumer of a ring.FrameRing, converting each dequeued slot's pixels
// through the encoder and interleaving the resulting access units into
// the muxer.
//
// Grounded on richinsley-bunghole/internal/server/server.go's consumer
// side of its pipeline (wait, dequeue, process, loop) and on
// _examples/original_source/EDSS/src/edssStream.c's exact
// wait/dequeue/lock/convert/encode/drain/unref/sleep sequence: a dequeue
// failure (spurious semaphore post) logs and continues, but an encoder
// send/receive failure is fatal — edssStream.c:57-59 tears the thread
// down with EDSS_ENCODE_FAILURE rather than skip the frame, since a
// failing encoder will fail again on every subsequent frame.
package stream

import (
	"log"
	"sync/atomic"

	"edss/internal/encode"
	"edss/internal/mux"
	"edss/internal/ring"
	"edss/internal/status"
)

// Thread runs the stream (consumer) loop on its own goroutine.
type Thread struct {
	ring    *ring.FrameRing
	encoder *encode.Encoder
	muxer   *mux.Muxer

	finished atomic.Bool
	done     chan struct{}

	failure atomic.Value // holds status.Status, set at most once
}

// NewThread builds a Thread bound to an already-open encoder and muxer
// (spec §4.4 init order: encoder and muxer must exist before the stream
// thread starts, since the muxer's stream mirrors the encoder's codec
// parameters). The encoder and muxer share a single time_base (spec
// §4.4: "the stream's time_base equals the encoder's time_base"), so the
// per-frame PTS the stream thread counts doubles directly as the
// muxer's rescaled timestamp with no conversion factor.
func NewThread(frameRing *ring.FrameRing, enc *encode.Encoder, m *mux.Muxer) *Thread {
	return &Thread{
		ring:    frameRing,
		encoder: enc,
		muxer:   m,
		done:    make(chan struct{}),
	}
}

// Stop sets the cooperative shutdown flag. The caller must also post the
// ring's semaphore (via ring.PostShutdown, done by the Server Facade's
// CloseStreaming, and again by the capture thread's Run when it observes
// its own stop flag) so a blocked Wait returns.
func (t *Thread) Stop() { t.finished.Store(true) }

// Status reports the fatal status the loop terminated with, or
// status.OK if Run is still running or stopped cleanly via Stop. Callers
// join the thread (<-Done()) before calling this.
func (t *Thread) Status() status.Status {
	v, _ := t.failure.Load().(status.Status)
	return v
}

// Run is the stream loop body (spec §4.5 Running state).
func (t *Thread) Run() {
	defer close(t.done)

	var pts int64

	for {
		t.ring.Wait()

		if t.finished.Load() {
			return
		}

		slot, ok := t.ring.Pop()
		if !ok {
			log.Printf("stream: spurious wake, dequeue failed")
			continue
		}

		slot.Lock()
		pkt, err := t.encoder.Encode(slot.Buffer)
		slot.Unlock()

		t.encoder.AdvancePTS()

		if err != nil {
			log.Printf("stream: encode failed, terminating stream thread: %v", err)
			t.failure.Store(status.EncodeFailure)
			return
		}
		if pkt == nil {
			// Encoder is still buffering (B-frame reordering disabled, so
			// this is rare, but the API contract allows it); nothing to
			// write this iteration.
			continue
		}

		if err := t.muxer.WritePacket(pkt.Data, pts, pts, 1, pkt.IsKey); err != nil {
			log.Printf("stream: mux write failed: %v", err)
		}
		pts++
	}
}

// Done returns a channel closed when Run has returned.
func (t *Thread) Done() <-chan struct{} { return t.done }
