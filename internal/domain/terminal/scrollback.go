package terminal

// Scrollback is a circular buffer holding the most recent output of a
// session. It is not safe for concurrent use; the owning topic serializes
// access.
type Scrollback struct {
	data []byte
	size int
	head int
	full bool
}

// NewScrollback creates a buffer keeping the last size bytes. A size of
// zero or less disables it and returns nil.
func NewScrollback(size int) *Scrollback {
	if size <= 0 {
		return nil
	}
	return &Scrollback{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends p, overwriting the oldest bytes once the buffer is full.
func (b *Scrollback) Write(p []byte) (int, error) {
	if b == nil {
		return len(p), nil
	}
	n := len(p)

	// Only the tail of an oversized write can survive.
	if len(p) >= b.size {
		copy(b.data, p[len(p)-b.size:])
		b.head = 0
		b.full = true
		return n, nil
	}

	for len(p) > 0 {
		c := copy(b.data[b.head:], p)
		p = p[c:]
		b.head += c
		if b.head == b.size {
			b.head = 0
			b.full = true
		}
	}
	return n, nil
}

// Len returns the number of buffered bytes.
func (b *Scrollback) Len() int {
	switch {
	case b == nil:
		return 0
	case b.full:
		return b.size
	default:
		return b.head
	}
}

// Bytes returns a copy of the buffered bytes, oldest first.
func (b *Scrollback) Bytes() []byte {
	if b.Len() == 0 {
		return nil
	}
	if !b.full {
		out := make([]byte, b.head)
		copy(out, b.data[:b.head])
		return out
	}

	// Buffer wrapped around
	out := make([]byte, b.size)
	c := copy(out, b.data[b.head:])
	copy(out[c:], b.data[:b.head])
	return out
}
