package pools

import (
	"sync"
)

// Float64SlicePool recycles float64 buffers. Buffers handed out by Get have
// length n and undefined contents.
type Float64SlicePool struct {
	pool    sync.Pool
	maxSize int
}

// NewFloat64SlicePool creates a pool that keeps buffers up to maxSize
// elements; larger buffers are left to the GC.
func NewFloat64SlicePool(maxSize int) *Float64SlicePool {
	return &Float64SlicePool{maxSize: maxSize}
}

// Get returns a buffer of length n
func (p *Float64SlicePool) Get(n int) []float64 {
	if v := p.pool.Get(); v != nil {
		buf := *(v.(*[]float64))
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]float64, n)
}

// Put returns a buffer to the pool
func (p *Float64SlicePool) Put(buf []float64) {
	if buf == nil || (p.maxSize > 0 && cap(buf) > p.maxSize) {
		return
	}
	buf = buf[:0]
	p.pool.Put(&buf)
}
