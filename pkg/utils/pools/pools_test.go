package pools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat64SlicePoolLength(t *testing.T) {
	p := NewFloat64SlicePool(1024)

	buf := p.Get(100)
	assert.Len(t, buf, 100)
	p.Put(buf)

	small := p.Get(10)
	assert.Len(t, small, 10)

	big := p.Get(500)
	assert.Len(t, big, 500)
}

func TestFloat64SlicePoolDropsOversize(t *testing.T) {
	p := NewFloat64SlicePool(8)
	p.Put(make([]float64, 64))
	p.Put(nil)

	buf := p.Get(4)
	assert.Len(t, buf, 4)
}
