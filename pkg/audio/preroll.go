package audio

import "time"

// PreRollRing is a bounded ring buffer of the most recent frames. The wake
// detector and the follow-up waiter keep one filled so that syllables
// spoken before a trigger fires are not lost: when the trigger lands, the
// ring's snapshot seeds the segment capturer.
//
// A PreRollRing is owned by a single goroutine. Snapshot returns deep
// copies, so a snapshot may safely cross a goroutine boundary while the
// owner keeps pushing.
type PreRollRing struct {
	frames []AudioFrame
	next   int
	size   int
}

// NewPreRollRing creates a ring sized to hold duration worth of frames of
// the given frame duration. Capacity is at least one frame.
func NewPreRollRing(duration, frameDuration time.Duration) *PreRollRing {
	if frameDuration <= 0 {
		frameDuration = 20 * time.Millisecond
	}
	capacity := int(duration / frameDuration)
	if duration%frameDuration != 0 {
		capacity++
	}
	if capacity < 1 {
		capacity = 1
	}
	return &PreRollRing{frames: make([]AudioFrame, capacity)}
}

// Push inserts a frame, evicting the oldest one once the ring is full.
// The frame is stored as-is; callers must not mutate it afterwards.
func (r *PreRollRing) Push(f AudioFrame) {
	r.frames[r.next] = f
	r.next = (r.next + 1) % len(r.frames)
	if r.size < len(r.frames) {
		r.size++
	}
}

// Snapshot returns deep copies of the buffered frames, oldest first.
// Returns nil when the ring is empty.
func (r *PreRollRing) Snapshot() []AudioFrame {
	if r.size == 0 {
		return nil
	}
	out := make([]AudioFrame, 0, r.size)
	start := (r.next - r.size + len(r.frames)) % len(r.frames)
	for i := range r.size {
		out = append(out, r.frames[(start+i)%len(r.frames)].Clone())
	}
	return out
}

// Len returns the number of buffered frames.
func (r *PreRollRing) Len() int { return r.size }

// Cap returns the ring capacity in frames.
func (r *PreRollRing) Cap() int { return len(r.frames) }

// Reset empties the ring without reallocating.
func (r *PreRollRing) Reset() {
	for i := range r.frames {
		r.frames[i] = AudioFrame{}
	}
	r.next = 0
	r.size = 0
}
