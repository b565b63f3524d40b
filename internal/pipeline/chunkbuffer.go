package pipeline

import (
	"sync"

	"github.com/babelroom/babelroom/internal/adapters/metrics"
)

// ChunkBuffer accumulates inbound PCM16 audio between processor cycles.
// It is bounded: pushing past the capacity evicts the oldest chunks so
// a stalled processor sheds the stalest audio first.
type ChunkBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
	max    int
}

// NewChunkBuffer creates a buffer holding at most max bytes.
func NewChunkBuffer(max int) *ChunkBuffer {
	return &ChunkBuffer{max: max}
}

// Push appends a chunk, evicting from the front until it fits. A chunk
// larger than the whole capacity is truncated to its newest max bytes.
func (b *ChunkBuffer) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(chunk) > b.max {
		dropped := len(chunk) - b.max
		chunk = chunk[dropped:]
		metrics.ChunkBufferDrops.Add(float64(dropped))
	}

	for b.size+len(chunk) > b.max && len(b.chunks) > 0 {
		oldest := b.chunks[0]
		b.chunks = b.chunks[1:]
		b.size -= len(oldest)
		metrics.ChunkBufferDrops.Add(float64(len(oldest)))
	}

	owned := make([]byte, len(chunk))
	copy(owned, chunk)
	b.chunks = append(b.chunks, owned)
	b.size += len(owned)
}

// Len reports the buffered byte count.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Drain removes and concatenates up to max buffered bytes. Chunks are
// consumed whole; a chunk that would cross the limit is split and its
// tail stays buffered.
func (b *ChunkBuffer) Drain(max int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}
	if max <= 0 || max > b.size {
		max = b.size
	}

	out := make([]byte, 0, max)
	for len(b.chunks) > 0 && len(out) < max {
		chunk := b.chunks[0]
		room := max - len(out)
		if len(chunk) <= room {
			out = append(out, chunk...)
			b.chunks = b.chunks[1:]
			b.size -= len(chunk)
			continue
		}
		out = append(out, chunk[:room]...)
		b.chunks[0] = chunk[room:]
		b.size -= room
	}
	return out
}

// Reset discards all buffered audio.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.size = 0
}
