package app

// RSSIRing keeps the most recent RSSI values of a run.
type RSSIRing struct {
	buf   []int
	pos   int
	count int
}

// NewRSSIRing creates a new circular buffer with the given capacity.
func NewRSSIRing(capacity int) *RSSIRing {
	return &RSSIRing{
		buf: make([]int, capacity),
	}
}

// Push adds a value, overwriting the oldest once full.
func (r *RSSIRing) Push(val int) {
	r.buf[r.pos] = val
	r.pos = (r.pos + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Values returns all stored values in chronological order.
func (r *RSSIRing) Values() []int {
	if r.count == 0 {
		return nil
	}
	result := make([]int, r.count)
	if r.count < len(r.buf) {
		copy(result, r.buf[:r.count])
	} else {
		n := copy(result, r.buf[r.pos:])
		copy(result[n:], r.buf[:r.pos])
	}
	return result
}

// Reset forgets all values.
func (r *RSSIRing) Reset() {
	r.pos = 0
	r.count = 0
}

// Len returns the number of stored values.
func (r *RSSIRing) Len() int {
	return r.count
}
