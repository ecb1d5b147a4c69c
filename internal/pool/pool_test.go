package pool

import (
	"bytes"
	"testing"
)

func TestPool_GetPut(t *testing.T) {
	p := NewPool(
		func() *bytes.Buffer { return &bytes.Buffer{} },
		func(b **bytes.Buffer) { (*b).Reset() },
	)

	buf := p.Get()
	buf.WriteString("hello")
	p.Put(buf)

	got := p.Get()
	if got.Len() != 0 {
		t.Errorf("expected reset buffer, got %d bytes", got.Len())
	}

	stats := p.Stats()
	if stats.Gets != 2 {
		t.Errorf("Gets = %d, want 2", stats.Gets)
	}
	if stats.Puts != 1 {
		t.Errorf("Puts = %d, want 1", stats.Puts)
	}
}

func TestPool_StatsHitRate(t *testing.T) {
	p := NewPool(func() int { return 0 }, nil)

	if rate := p.Stats().HitRate(); rate != 0 {
		t.Errorf("empty pool hit rate = %f, want 0", rate)
	}

	v := p.Get()
	p.Put(v)
	p.Get()

	stats := p.Stats()
	if stats.News == 0 {
		t.Error("expected at least one allocation")
	}
}

func TestByteBufferPool(t *testing.T) {
	buf := ByteBufferPool.Get()
	buf.WriteString("payload")
	ByteBufferPool.Put(buf)

	reused := ByteBufferPool.Get()
	defer ByteBufferPool.Put(reused)
	if reused.Len() != 0 {
		t.Errorf("expected reset buffer from shared pool, got %d bytes", reused.Len())
	}
}
