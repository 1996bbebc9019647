package qproc

import (
	"math"
	"math/cmplx"
)

const tolerance = 1e-9

// Matrix is a single-qubit operator in the computational basis, row-major.
type Matrix [2][2]complex128

// Identity returns the 2x2 identity.
func Identity() Matrix {
	return Matrix{{1, 0}, {0, 1}}
}

// Mul returns m·n.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j]
		}
	}
	return out
}

// Dagger returns the conjugate transpose.
func (m Matrix) Dagger() Matrix {
	return Matrix{
		{cmplx.Conj(m[0][0]), cmplx.Conj(m[1][0])},
		{cmplx.Conj(m[0][1]), cmplx.Conj(m[1][1])},
	}
}

func (m Matrix) Det() complex128 {
	return m[0][0]*m[1][1] - m[0][1]*m[1][0]
}

// Scale multiplies every entry by c.
func (m Matrix) Scale(c complex128) Matrix {
	return Matrix{{c * m[0][0], c * m[0][1]}, {c * m[1][0], c * m[1][1]}}
}

// IsUnitary reports whether m·m† is the identity within tolerance.
func (m Matrix) IsUnitary() bool {
	return m.Mul(m.Dagger()).ApproxEqual(Identity(), 1e-7)
}

func (m Matrix) ApproxEqual(n Matrix, eps float64) bool {
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if cmplx.Abs(m[i][j]-n[i][j]) > eps {
				return false
			}
		}
	}
	return true
}

// EqualUpToPhase reports whether m = e^{iφ}·n for some real φ.
func (m Matrix) EqualUpToPhase(n Matrix, eps float64) bool {
	// Pick the largest entry of n to fix the phase.
	bi, bj, best := 0, 0, 0.0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if a := cmplx.Abs(n[i][j]); a > best {
				bi, bj, best = i, j, a
			}
		}
	}
	if best < eps {
		return m.ApproxEqual(n, eps)
	}
	phase := m[bi][bj] / n[bi][bj]
	if math.Abs(cmplx.Abs(phase)-1) > eps {
		return false
	}
	return m.ApproxEqual(n.Scale(phase), eps)
}

func rxMatrix(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(0, -math.Sin(theta/2))
	return Matrix{{c, s}, {s, c}}
}

func ryMatrix(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return Matrix{{c, -s}, {s, c}}
}

func rzMatrix(theta float64) Matrix {
	return Matrix{
		{cmplx.Exp(complex(0, -theta/2)), 0},
		{0, cmplx.Exp(complex(0, theta/2))},
	}
}

func phaseMatrix(lambda float64) Matrix {
	return Matrix{{1, 0}, {0, cmplx.Exp(complex(0, lambda))}}
}

/*
eulerZYZ factors a single-qubit unitary as

	U = e^{iα} · Rz(β) · Ry(γ) · Rz(δ)

The angles are exact for the given matrix: the phase α is taken from the
determinant, and the remaining special-unitary part fixes β, γ and δ.
*/
func eulerZYZ(u Matrix) (alpha, beta, gamma, delta float64) {
	alpha = cmplx.Phase(u.Det()) / 2
	v := u.Scale(cmplx.Exp(complex(0, -alpha)))

	c := cmplx.Abs(v[0][0])
	s := cmplx.Abs(v[1][0])
	gamma = 2 * math.Atan2(s, c)

	switch {
	case s < tolerance:
		// Diagonal: only β+δ is defined.
		beta = -2 * cmplx.Phase(v[0][0])
	case c < tolerance:
		// Anti-diagonal: only β-δ is defined.
		beta = 2 * cmplx.Phase(v[1][0])
	default:
		sum := -2 * cmplx.Phase(v[0][0])
		diff := 2 * cmplx.Phase(v[1][0])
		beta = (sum + diff) / 2
		delta = (sum - diff) / 2
	}

	return alpha, beta, gamma, delta
}
