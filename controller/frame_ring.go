package controller

import "trigger-capture/models"

// frameRing keeps the last n frames; pushing into a full ring evicts the
// oldest one. Not safe for concurrent use.
type frameRing struct {
	frames []*models.Frame
	start  int // index of the oldest frame
	size   int
}

func newFrameRing(capacity int) *frameRing {
	if capacity < 0 {
		capacity = 0
	}
	return &frameRing{frames: make([]*models.Frame, capacity)}
}

// push appends f and returns the evicted frame, if any. A zero-capacity
// ring evicts f itself.
func (r *frameRing) push(f *models.Frame) (evicted *models.Frame) {
	n := len(r.frames)
	if n == 0 {
		return f
	}
	if r.size == n {
		evicted = r.frames[r.start]
		r.frames[r.start] = f
		r.start = (r.start + 1) % n
		return evicted
	}
	r.frames[(r.start+r.size)%n] = f
	r.size++
	return nil
}

// history returns the buffered frames from oldest to newest in a new slice.
func (r *frameRing) history() []*models.Frame {
	out := make([]*models.Frame, 0, r.size)
	n := len(r.frames)
	for i := 0; i < r.size; i++ {
		out = append(out, r.frames[(r.start+i)%n])
	}
	return out
}

// reset empties the ring and drops its references so evicted frames can be
// collected once nobody else holds them.
func (r *frameRing) reset() {
	clear(r.frames)
	r.start, r.size = 0, 0
}

func (r *frameRing) len() int { return r.size }
func (r *frameRing) cap() int { return len(r.frames) }
