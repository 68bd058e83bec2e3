package window

// Ring is a fixed-size FIFO of the most recent tokens. It starts full of a
// fill value and every Push drops the oldest entry.
type Ring struct {
	buf  []int
	head int
}

// NewRing returns a ring of size slots set to fill. A size below zero is
// treated as zero.
func NewRing(size, fill int) *Ring {
	buf := make([]int, max(size, 0))
	for i := range buf {
		buf[i] = fill
	}
	return &Ring{buf: buf}
}

// Len is the fixed number of slots.
func (r *Ring) Len() int { return len(r.buf) }

// Push appends tok, evicting the oldest token.
func (r *Ring) Push(tok int) {
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.head] = tok
	r.head = (r.head + 1) % len(r.buf)
}

// AppendTo appends the contents oldest first to dst.
func (r *Ring) AppendTo(dst []int) []int {
	dst = append(dst, r.buf[r.head:]...)
	return append(dst, r.buf[:r.head]...)
}

// Tokens returns the contents oldest first.
func (r *Ring) Tokens() []int {
	return r.AppendTo(make([]int, 0, len(r.buf)))
}

// Last returns the i-th most recent token, i == 0 being the newest. It
// returns -1 for an empty ring.
func (r *Ring) Last(i int) int {
	n := len(r.buf)
	if n == 0 {
		return -1
	}
	return r.buf[((r.head-1-i)%n+n)%n]
}
