package runner

import "sync"

// DefaultMaxOutputBytes caps how much command output is retained (1 MiB).
const DefaultMaxOutputBytes = 1 << 20

// HeadTailBuffer is a capped io.Writer that keeps the first and last halves
// of its budget and drops the middle once the cap is exceeded. It is safe for
// concurrent writers, so stdout and stderr can share one buffer.
type HeadTailBuffer struct {
	mu         sync.Mutex
	headBudget int
	tailBudget int
	head       []byte
	tail       [][]byte
	tailBytes  int
	omitted    int
}

// NewHeadTailBuffer creates a buffer that retains at most maxBytes.
func NewHeadTailBuffer(maxBytes int) *HeadTailBuffer {
	if maxBytes < 0 {
		maxBytes = 0
	}
	headBudget := maxBytes / 2
	return &HeadTailBuffer{
		headBudget: headBudget,
		tailBudget: maxBytes - headBudget,
	}
}

// Write appends p. It never fails and always reports len(p) written.
func (b *HeadTailBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	chunk := p
	if room := b.headBudget - len(b.head); room > 0 {
		if len(chunk) <= room {
			b.head = append(b.head, chunk...)
			return len(p), nil
		}
		b.head = append(b.head, chunk[:room]...)
		chunk = chunk[room:]
	}
	b.pushTail(chunk)
	return len(p), nil
}

func (b *HeadTailBuffer) pushTail(chunk []byte) {
	if b.tailBudget == 0 {
		b.omitted += len(chunk)
		return
	}
	if len(chunk) >= b.tailBudget {
		kept := append([]byte(nil), chunk[len(chunk)-b.tailBudget:]...)
		b.omitted += b.tailBytes + len(chunk) - len(kept)
		b.tail = [][]byte{kept}
		b.tailBytes = len(kept)
		return
	}

	b.tail = append(b.tail, append([]byte(nil), chunk...))
	b.tailBytes += len(chunk)

	excess := b.tailBytes - b.tailBudget
	for excess > 0 && len(b.tail) > 0 {
		front := b.tail[0]
		if excess >= len(front) {
			excess -= len(front)
			b.tailBytes -= len(front)
			b.omitted += len(front)
			b.tail = b.tail[1:]
			continue
		}
		b.tail[0] = front[excess:]
		b.tailBytes -= excess
		b.omitted += excess
		excess = 0
	}
}

// Bytes returns the retained output, head followed by tail.
func (b *HeadTailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	size := len(b.head) + b.tailBytes
	if size == 0 {
		return nil
	}
	out := make([]byte, 0, size)
	out = append(out, b.head...)
	for _, c := range b.tail {
		out = append(out, c...)
	}
	return out
}

// Omitted returns the number of bytes dropped from the middle.
func (b *HeadTailBuffer) Omitted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.omitted
}
