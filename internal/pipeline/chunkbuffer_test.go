package pipeline

import (
	"bytes"
	"testing"
)

func TestChunkBufferPushDrain(t *testing.T) {
	b := NewChunkBuffer(100)
	b.Push([]byte{1, 2, 3})
	b.Push([]byte{4, 5})

	if b.Len() != 5 {
		t.Fatalf("Len = %d", b.Len())
	}

	got := b.Drain(100)
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Drain = %v", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len after drain = %d", b.Len())
	}
}

func TestChunkBufferDrainSplitsChunk(t *testing.T) {
	b := NewChunkBuffer(100)
	b.Push([]byte{1, 2, 3, 4, 5, 6})

	first := b.Drain(4)
	if !bytes.Equal(first, []byte{1, 2, 3, 4}) {
		t.Errorf("first = %v", first)
	}
	rest := b.Drain(100)
	if !bytes.Equal(rest, []byte{5, 6}) {
		t.Errorf("rest = %v", rest)
	}
}

func TestChunkBufferDropsOldestOnOverflow(t *testing.T) {
	b := NewChunkBuffer(6)
	b.Push([]byte{1, 1})
	b.Push([]byte{2, 2})
	b.Push([]byte{3, 3})
	b.Push([]byte{4, 4}) // evicts {1,1}

	got := b.Drain(100)
	if !bytes.Equal(got, []byte{2, 2, 3, 3, 4, 4}) {
		t.Errorf("Drain = %v", got)
	}
}

func TestChunkBufferOversizedChunkKeepsNewestBytes(t *testing.T) {
	b := NewChunkBuffer(4)
	b.Push([]byte{1, 2, 3, 4, 5, 6})

	got := b.Drain(100)
	if !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("Drain = %v", got)
	}
}

func TestChunkBufferReset(t *testing.T) {
	b := NewChunkBuffer(100)
	b.Push([]byte{1, 2, 3})
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len = %d after reset", b.Len())
	}
	if got := b.Drain(100); got != nil {
		t.Errorf("Drain = %v after reset", got)
	}
}

func TestChunkBufferPushEmpty(t *testing.T) {
	b := NewChunkBuffer(10)
	b.Push(nil)
	b.Push([]byte{})
	if b.Len() != 0 {
		t.Errorf("Len = %d", b.Len())
	}
}
