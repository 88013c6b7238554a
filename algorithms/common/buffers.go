package common

// Ring is a fixed-capacity ring buffer. Once full, each Push overwrites the
// oldest element. It never grows after construction.
type Ring[T any] struct {
	buffer   []T
	writePos int
	count    int
}

// NewRing creates a ring holding at most capacity elements.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buffer: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full.
func (r *Ring[T]) Push(v T) {
	r.buffer[r.writePos] = v
	r.writePos = (r.writePos + 1) % len(r.buffer)
	if r.count < len(r.buffer) {
		r.count++
	}
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buffer)
}

// At returns the i-th element, oldest first. It panics when i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.count {
		panic("common: ring index out of range")
	}
	start := (r.writePos - r.count + len(r.buffer)) % len(r.buffer)
	return r.buffer[(start+i)%len(r.buffer)]
}

// Last returns the newest element and whether one exists.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.buffer[(r.writePos-1+len(r.buffer))%len(r.buffer)], true
}

// AppendTo appends the contents, oldest first, to dst and returns it.
// Passing a reused dst[:0] keeps the hot path allocation free.
func (r *Ring[T]) AppendTo(dst []T) []T {
	for i := 0; i < r.count; i++ {
		dst = append(dst, r.At(i))
	}
	return dst
}

// Clear empties the ring without releasing storage.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buffer {
		r.buffer[i] = zero
	}
	r.writePos = 0
	r.count = 0
}

// HopBuffer accumulates arbitrarily sized chunks into fixed-size hops.
// Its fill level never exceeds the hop size.
type HopBuffer struct {
	buffer []float64
	fill   int
}

// NewHopBuffer creates a hop buffer of hopSize samples.
func NewHopBuffer(hopSize int) *HopBuffer {
	return &HopBuffer{buffer: make([]float64, hopSize)}
}

// Fill copies as many samples from src as fit in the current hop and returns
// the number consumed. When the hop is complete, Full reports true.
func (hb *HopBuffer) Fill(src []float64) int {
	n := copy(hb.buffer[hb.fill:], src)
	hb.fill += n
	return n
}

// Full reports whether a complete hop is buffered.
func (hb *HopBuffer) Full() bool {
	return hb.fill == len(hb.buffer)
}

// Hop returns the buffered samples. The slice is owned by the buffer and is
// only valid until Reset.
func (hb *HopBuffer) Hop() []float64 {
	return hb.buffer[:hb.fill]
}

// Len returns the number of buffered samples.
func (hb *HopBuffer) Len() int {
	return hb.fill
}

// Size returns the hop size.
func (hb *HopBuffer) Size() int {
	return len(hb.buffer)
}

// Reset empties the buffer without releasing storage.
func (hb *HopBuffer) Reset() {
	hb.fill = 0
}

// SlidingWindow keeps the most recent windowSize samples. Each Slide shifts
// the window left by len(hop) and appends hop at the end.
type SlidingWindow struct {
	buffer []float64
}

// NewSlidingWindow creates a zero-filled window.
func NewSlidingWindow(windowSize int) *SlidingWindow {
	return &SlidingWindow{buffer: make([]float64, windowSize)}
}

// Slide appends hop, discarding the oldest samples.
func (sw *SlidingWindow) Slide(hop []float64) {
	if len(hop) >= len(sw.buffer) {
		copy(sw.buffer, hop[len(hop)-len(sw.buffer):])
		return
	}
	copy(sw.buffer, sw.buffer[len(hop):])
	copy(sw.buffer[len(sw.buffer)-len(hop):], hop)
}

// Samples returns the window contents, oldest first.
func (sw *SlidingWindow) Samples() []float64 {
	return sw.buffer
}

// Reset zeroes the window.
func (sw *SlidingWindow) Reset() {
	for i := range sw.buffer {
		sw.buffer[i] = 0.0
	}
}
