package acm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// pinvRcond is the cutoff for small singular values relative to the largest.
const pinvRcond = 1e-15

// leastSquares solves X B ~ Y for B.
// X: T x m design, Y: T x n targets
// Returns: m x n coefficients
func leastSquares(X, Y mat.Matrix) (*mat.Dense, error) {
	_, m := X.Dims()
	_, n := Y.Dims()

	// First try: normal equations B = (X'X)^(-1) X'Y
	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	var xtxInv mat.Dense
	xtxErr := xtxInv.Inverse(&xtx)
	if xtxErr == nil {
		var xty mat.Dense
		xty.Mul(X.T(), Y)

		var B mat.Dense
		B.Mul(&xtxInv, &xty)
		return &B, nil
	}

	// Fallback: X'X is singular or badly conditioned.
	// Use SVD-based least squares for the minimum-norm B.
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDFullU|mat.SVDFullV); !ok {
		return nil, fmt.Errorf("%w: X'X singular and SVD factorization failed: %v", ErrNumericalDegeneracy, xtxErr)
	}

	rank := svd.Rank(1e-12)
	if rank == 0 {
		// X is numerically all-zero, the minimum-norm solution is B = 0
		return mat.NewDense(m, n, nil), nil
	}

	var B mat.Dense
	svd.SolveTo(&B, Y, rank)
	return &B, nil
}

// pinv returns the Moore-Penrose pseudo-inverse of a.
func pinv(a mat.Matrix) (*mat.Dense, error) {
	r, c := a.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD factorization failed for %dx%d matrix", ErrNumericalDegeneracy, r, c)
	}

	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := 0.0
	if len(s) > 0 {
		cutoff = pinvRcond * s[0]
	}

	// pinv(a) = V diag(1/s) U', zeroing the singular values below cutoff
	inv := make([]float64, len(s))
	for i, sv := range s {
		if sv > cutoff {
			inv[i] = 1 / sv
		}
	}

	var vs mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(inv), inv))

	out := mat.NewDense(c, r, nil)
	out.Mul(&vs, u.T())
	return out, nil
}

// inverse inverts a square matrix, falling back to the pseudo-inverse when
// it is singular.
func inverse(a mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(a); err == nil {
		return &inv, nil
	}
	return pinv(a)
}

// withConstant prepends a column of ones to x.
func withConstant(x mat.Matrix) *mat.Dense {
	T, K := x.Dims()
	out := mat.NewDense(T, K+1, nil)
	for t := 0; t < T; t++ {
		out.Set(t, 0, 1)
		for k := 0; k < K; k++ {
			out.Set(t, k+1, x.At(t, k))
		}
	}
	return out
}

// identity returns the n x n identity matrix.
func identity(n int) *mat.Dense {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return mat.NewDense(n, n, data)
}

// kron returns the Kronecker product of a and b.
func kron(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Kronecker(a, b)
	return &out
}

// mul returns the product of the given matrices, left to right.
func mul(ms ...mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(ms[0])
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Mul(out, m)
		out = &next
	}
	return out
}
