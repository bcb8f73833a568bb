package esg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense row-major (paths, instruments, steps) array
type Tensor struct {
	paths       int
	instruments int
	steps       int
	data        []float64
}

// NewTensor allocates a zeroed tensor
func NewTensor(paths, instruments, steps int) *Tensor {
	if paths < 0 || instruments < 0 || steps < 0 {
		panic(fmt.Sprintf("esg: negative tensor shape (%d, %d, %d)", paths, instruments, steps))
	}
	return &Tensor{
		paths:       paths,
		instruments: instruments,
		steps:       steps,
		data:        make([]float64, paths*instruments*steps),
	}
}

// Shape returns (paths, instruments, steps)
func (t *Tensor) Shape() (int, int, int) {
	return t.paths, t.instruments, t.steps
}

func (t *Tensor) offset(p, i, s int) int {
	if p < 0 || p >= t.paths || i < 0 || i >= t.instruments || s < 0 || s >= t.steps {
		panic(fmt.Sprintf("esg: index (%d, %d, %d) out of range for shape (%d, %d, %d)",
			p, i, s, t.paths, t.instruments, t.steps))
	}
	return (p*t.instruments+i)*t.steps + s
}

// At returns the value of instrument i on path p at step s
func (t *Tensor) At(p, i, s int) float64 {
	return t.data[t.offset(p, i, s)]
}

// Set stores v at (p, i, s)
func (t *Tensor) Set(p, i, s int, v float64) {
	t.data[t.offset(p, i, s)] = v
}

// Path returns the instruments×steps block of path p, row-major.
// The slice aliases the tensor.
func (t *Tensor) Path(p int) []float64 {
	if p < 0 || p >= t.paths {
		panic(fmt.Sprintf("esg: path %d out of range [0, %d)", p, t.paths))
	}
	n := t.instruments * t.steps
	return t.data[p*n : (p+1)*n : (p+1)*n]
}

// Series returns the steps of instrument i on path p. The slice aliases the tensor.
func (t *Tensor) Series(p, i int) []float64 {
	start := t.offset(p, i, 0)
	return t.data[start : start+t.steps : start+t.steps]
}

// IsFinite reports whether every value is neither NaN nor infinite
func (t *Tensor) IsFinite() bool {
	if floats.HasNaN(t.data) {
		return false
	}
	for _, v := range t.data {
		if math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Terminal returns the last step of instrument i across all paths
func (t *Tensor) Terminal(i int) []float64 {
	out := make([]float64, t.paths)
	if t.steps == 0 {
		return out
	}
	for p := range out {
		out[p] = t.At(p, i, t.steps-1)
	}
	return out
}

// Nested converts the tensor to nested slices for JSON encoding
func (t *Tensor) Nested() [][][]float64 {
	out := make([][][]float64, t.paths)
	for p := range out {
		out[p] = make([][]float64, t.instruments)
		for i := range out[p] {
			out[p][i] = append([]float64(nil), t.Series(p, i)...)
		}
	}
	return out
}

// Concat joins tensors along the path axis in argument order. All inputs
// must share instruments and steps.
func Concat(parts ...*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return NewTensor(0, 0, 0), nil
	}

	instruments, steps := parts[0].instruments, parts[0].steps
	paths := 0
	for k, p := range parts {
		if p.instruments != instruments || p.steps != steps {
			return nil, fmt.Errorf("esg: segment %d has shape (%d, %d, %d), want (_, %d, %d)",
				k, p.paths, p.instruments, p.steps, instruments, steps)
		}
		paths += p.paths
	}

	out := &Tensor{
		paths:       paths,
		instruments: instruments,
		steps:       steps,
		data:        make([]float64, 0, paths*instruments*steps),
	}
	for _, p := range parts {
		out.data = append(out.data, p.data...)
	}
	return out, nil
}
