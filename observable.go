package qproc

import (
	"fmt"
	"math/bits"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// diagonalFunc is the value a classical observable takes on one basis label.
type diagonalFunc func(basis uint64, width int) (float64, error)

type term struct {
	coeff    float64
	diagonal diagonalFunc
	matrix   [][]complex128
}

/*
Observable is a real linear combination of terms. A term is either diagonal
in the computational basis, and can be evaluated on any result, or a full
Hermitian matrix, which needs a vector snapshot.

Scale and Add build new observables; the expectation of the result is the
same combination of the expectations of its parts.
*/
type Observable struct {
	terms []term
}

// Diagonal assigns values[b] to basis label b. It needs 2^width values.
func Diagonal(values []float64) Observable {
	vals := append([]float64(nil), values...)
	return Observable{terms: []term{{coeff: 1, diagonal: func(basis uint64, width int) (float64, error) {
		if len(vals) != 1<<width {
			return 0, fmt.Errorf(
				"%w: diagonal of %d values on %d qubits", ErrUnsupportedObservable, len(vals), width,
			)
		}
		return vals[basis], nil
	}}}}
}

// ObservableFunc lifts an arbitrary function of the basis label.
func ObservableFunc(f func(basis uint64) float64) Observable {
	return Observable{terms: []term{{coeff: 1, diagonal: func(basis uint64, _ int) (float64, error) {
		return f(basis), nil
	}}}}
}

/*
PauliZ is +1 when the k-th qubit of the result, counted from the first, is
0 and -1 when it is 1.
*/
func PauliZ(k int) Observable {
	return Observable{terms: []term{{coeff: 1, diagonal: func(basis uint64, width int) (float64, error) {
		if k < 0 || k >= width {
			return 0, fmt.Errorf("%w: Z on qubit %d of %d", ErrUnsupportedObservable, k, width)
		}
		if basis>>(width-1-k)&1 == 1 {
			return -1, nil
		}
		return 1, nil
	}}}}
}

// Parity is the product of Z over every qubit of the result.
func Parity() Observable {
	return ObservableFunc(func(basis uint64) float64 {
		if bits.OnesCount64(basis)%2 == 1 {
			return -1
		}
		return 1
	})
}

// Hermitian is a full 2^w x 2^w observable over the dumped qubits.
func Hermitian(m [][]complex128) Observable {
	out := make([][]complex128, len(m))
	for i := range m {
		out[i] = append([]complex128(nil), m[i]...)
	}
	return Observable{terms: []term{{coeff: 1, matrix: out}}}
}

func (o Observable) Scale(c float64) Observable {
	out := make([]term, len(o.terms))
	for i, t := range o.terms {
		t.coeff *= c
		out[i] = t
	}
	return Observable{terms: out}
}

func (o Observable) Add(other Observable) Observable {
	out := make([]term, 0, len(o.terms)+len(other.terms))
	out = append(out, o.terms...)
	return Observable{terms: append(out, other.terms...)}
}

/*
Expectation evaluates the observable on a snapshot.

  - shots: the mean over the histogram, weighted by counts
  - probability: the diagonal dotted with the probabilities
  - vector: ⟨ψ|O|ψ⟩, the only form that accepts Hermitian terms
*/
func (o Observable) Expectation(s *Snapshot) (float64, error) {
	if s == nil {
		return 0, fmt.Errorf("%w: no snapshot", ErrUnsupportedObservable)
	}

	total := 0.0
	for _, t := range o.terms {
		var (
			v   float64
			err error
		)
		if t.matrix != nil {
			v, err = t.vectorExpectation(s)
		} else {
			v, err = t.diagonalExpectation(s)
		}
		if err != nil {
			return 0, err
		}
		total += t.coeff * v
	}
	return total, nil
}

func (t term) diagonalValues(basis []uint64, width int) ([]float64, error) {
	values := make([]float64, len(basis))
	for i, b := range basis {
		v, err := t.diagonal(b, width)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (t term) diagonalExpectation(s *Snapshot) (float64, error) {
	if s.Kind == DumpShots {
		values, err := t.diagonalValues(s.Basis, s.Width)
		if err != nil {
			return 0, err
		}
		weights := make([]float64, len(s.Counts))
		for i, c := range s.Counts {
			weights[i] = float64(c)
		}
		if floats.Sum(weights) == 0 {
			return 0, fmt.Errorf("%w: empty histogram", ErrUnsupportedObservable)
		}
		return stat.Mean(values, weights), nil
	}

	basis, probs := s.Distribution()
	values, err := t.diagonalValues(basis, s.Width)
	if err != nil {
		return 0, err
	}
	return floats.Dot(values, probs), nil
}

func (t term) vectorExpectation(s *Snapshot) (float64, error) {
	if s.Kind != DumpVector {
		return 0, fmt.Errorf("%w: matrix observable on a %s snapshot", ErrUnsupportedObservable, s.Kind)
	}

	dim := 1 << s.Width
	if len(t.matrix) != dim {
		return 0, fmt.Errorf("%w: %d-row matrix on %d qubits", ErrUnsupportedObservable, len(t.matrix), s.Width)
	}
	for i := range t.matrix {
		if len(t.matrix[i]) != dim {
			return 0, fmt.Errorf("%w: matrix is not square", ErrUnsupportedObservable)
		}
		for j := range t.matrix[i] {
			if cmplx.Abs(t.matrix[i][j]-cmplx.Conj(t.matrix[j][i])) > tolerance {
				return 0, fmt.Errorf("%w: matrix is not Hermitian", ErrUnsupportedObservable)
			}
		}
	}

	// The dumped qubits may be entangled with the rest: sum over each
	// environment label separately.
	groups := make(map[uint64][]complex128)
	for i, b := range s.Basis {
		env := s.Environment[i]
		if groups[env] == nil {
			groups[env] = make([]complex128, dim)
		}
		groups[env][b] += s.Amplitudes[i]
	}

	var total complex128
	for _, psi := range groups {
		for i := 0; i < dim; i++ {
			if psi[i] == 0 {
				continue
			}
			var row complex128
			for j := 0; j < dim; j++ {
				row += t.matrix[i][j] * psi[j]
			}
			total += cmplx.Conj(psi[i]) * row
		}
	}

	return real(total), nil
}

/*
Mean is the empirical expectation over measured values, each a packed
result of width qubits.
*/
func (o Observable) Mean(values []uint64, widths []int) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: no measurements", ErrUnsupportedObservable)
	}

	total := 0.0
	for _, t := range o.terms {
		if t.matrix != nil {
			return 0, fmt.Errorf("%w: matrix observable on measurements", ErrUnsupportedObservable)
		}
		samples := make([]float64, len(values))
		for i, v := range values {
			x, err := t.diagonal(v, widths[i])
			if err != nil {
				return 0, err
			}
			samples[i] = x
		}
		total += t.coeff * stat.Mean(samples, nil)
	}
	return total, nil
}
