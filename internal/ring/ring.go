// Package ring implements the bounded single-producer/single-consumer
// frame ring and the paired counting semaphore (spec §3 FrameRing, §4.2).
//
// The original implementation used ck_ring (a lock-free SPSC ring) plus
// a POSIX counting semaphore whose count was meant to track the ring's
// size exactly. Per spec §4.2/§9 Open Question (a), the original source
// posts the semaphore unconditionally, even when the enqueue fails —
// this can desynchronize the count from the ring's actual occupancy.
// This implementation fixes that: Push only signals the semaphore when
// the enqueue actually succeeds.
package ring

import "sync/atomic"

// Slot is one of the two double-buffered capture slots (spec §3
// CaptureSlot); the ring holds pointers to slots, not frame bytes.
type Slot struct {
	mu     chanMutex
	Buffer []byte
}

// NewSlot allocates a slot sized for one frame.
func NewSlot(size int) *Slot {
	return &Slot{mu: newChanMutex(), Buffer: make([]byte, size)}
}

// TryLock attempts to acquire the slot without blocking, mirroring
// pthread_mutex_trylock's semantics: returns true iff the lock was
// acquired. Spec §9 Open Question (b) flags that the original source
// inverted this return-code convention on its second branch (treating a
// nonzero trylock result as success) — a bug. Implementations here treat
// success uniformly as "the attempt returned true".
func (s *Slot) TryLock() bool { return s.mu.TryLock() }

// Lock blocks until the slot is acquired (used by the consumer while it
// re-reads a dequeued slot for conversion — spec §4.2 consumer step).
func (s *Slot) Lock() { s.mu.Lock() }

// Unlock releases the slot, publishing its buffer contents (spec §3:
// "unlocking publishes the pixel contents").
func (s *Slot) Unlock() { s.mu.Unlock() }

// chanMutex is a non-blocking-capable mutex built on a 1-buffered
// channel, since sync.Mutex has no TryLock on older toolchains and the
// capture thread's biased-spin-over-two-slots behavior (spec §4.3 step
// 1) is most naturally expressed as repeated non-blocking acquire
// attempts.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	c := make(chanMutex, 1)
	c <- struct{}{}
	return c
}

func (c chanMutex) TryLock() bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

func (c chanMutex) Lock() { <-c }

func (c chanMutex) Unlock() {
	select {
	case c <- struct{}{}:
	default:
		panic("ring: unlock of unlocked slot")
	}
}

// FrameRing is the bounded SPSC queue of *Slot with capacity 2, paired
// with a counting semaphore whose value tracks the ring's occupancy
// exactly (spec §3, §8: semaphore_count == successful enqueues -
// successful dequeues, at all times).
//
// Capacity is fixed at 2, matching spec §4.2. The implementation is a
// lock-free array-backed SPSC ring using atomic head/tail indices —
// exactly one producer (capture thread) calls Push, exactly one
// consumer (stream thread) calls Pop, per spec §5 shared resource
// policy.
type FrameRing struct {
	slots [2]*Slot
	head  atomic.Uint32 // next write index, producer-owned
	tail  atomic.Uint32 // next read index, consumer-owned
	sem   chan struct{} // counting semaphore, buffered to capacity
}

// NewFrameRing constructs an empty ring of capacity 2.
func NewFrameRing() *FrameRing {
	return &FrameRing{sem: make(chan struct{}, 2)}
}

// Push enqueues a slot pointer. It returns false (without posting the
// semaphore) if the ring is already at capacity 2 — the ring tolerates
// one dropped frame per overrun rather than blocking the producer (spec
// §4.2 invariant, §8 "Ring full" boundary behavior).
func (r *FrameRing) Push(s *Slot) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= 2 {
		return false // full; do not post the semaphore
	}
	r.slots[head%2] = s
	r.head.Store(head + 1)
	r.sem <- struct{}{} // post: exactly one per successful enqueue
	return true
}

// Wait blocks until a post is available, mirroring sem_wait. Returns
// immediately if a post is already pending.
func (r *FrameRing) Wait() { <-r.sem }

// Pop dequeues the next slot pointer. It returns (nil, false) on a
// spurious wake — i.e. Wait returned but the ring was already drained by
// a racing consumer, or a shutdown post drained the queue — matching
// spec §8 "Semaphore spurious post: dequeue fails cleanly and the loop
// continues."
func (r *FrameRing) Pop() (*Slot, bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail >= head {
		return nil, false
	}
	s := r.slots[tail%2]
	r.tail.Store(tail + 1)
	return s, true
}

// PostShutdown posts the semaphore once without touching the ring, so a
// consumer blocked in Wait wakes up and observes the shutdown flag (spec
// §4.3 step 2, §5 "Close must post the semaphore once after setting the
// flag"). This is the one legitimate unconditional post in the design —
// it deliberately produces a spurious wake, which Pop handles cleanly.
func (r *FrameRing) PostShutdown() {
	select {
	case r.sem <- struct{}{}:
	default:
		// Semaphore already has a pending post (e.g. from a real frame);
		// the consumer will wake and observe the shutdown flag on its
		// next loop iteration regardless.
	}
}

// Len reports the ring's current occupancy (head - tail), exposed for
// tests asserting spec §8's semaphore/occupancy invariant.
func (r *FrameRing) Len() int {
	return int(r.head.Load() - r.tail.Load())
}
