package acm

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// AffineRecursion builds the no-arbitrage bond pricing coefficients for
// maturities 1..n months.
//
// The short rate is first regressed on the factors to get delta0 and delta1,
// then for every maturity:
//
//	A(n+1) = A(n) + B(n)'(mu - lambda0) + 1/2 B(n)' Sigma B(n) - delta0
//	B(n+1) = B(n)'(phi - lambda1) - delta1
//
// lambda0, lambda1: price of risk, nil for the risk neutral recursion
// x: factors at the curve's frequency, T x K (the first row is not used)
// shortRate: one-period rate, aligned so its last T-1 values match x[1:]
func AffineRecursion(lambda0 *mat.VecDense, lambda1 *mat.Dense, x *FactorPanel, shortRate []float64, vp *VARParameters, n int) (*AffineCoefficients, error) {
	T, K := x.X.Dims()
	if T < 2 {
		return nil, fmt.Errorf("%w: affine recursion needs at least 2 factor observations", ErrInsufficientHistory)
	}
	if len(shortRate) < T-1 {
		return nil, fmt.Errorf("%w: %d short rate observations for %d factor observations",
			ErrDimensionMismatch, len(shortRate), T-1)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: number of maturities must be > 0", ErrDimensionMismatch)
	}

	if lambda0 == nil {
		lambda0 = mat.NewVecDense(K, nil)
	}
	if lambda1 == nil {
		lambda1 = mat.NewDense(K, K, nil)
	}

	// 1. Short rate loadings
	X := x.X.Slice(1, T, 0, K)
	r1 := mat.NewVecDense(T-1, shortRate[len(shortRate)-(T-1):])

	design, err := pinv(withConstant(X))
	if err != nil {
		return nil, fmt.Errorf("affine recursion: %w", err)
	}
	var delta mat.VecDense
	delta.MulVec(design, r1)

	delta0 := delta.AtVec(0)
	delta1 := mat.NewVecDense(K, nil)
	for k := 0; k < K; k++ {
		delta1.SetVec(k, delta.AtVec(k+1))
	}

	// 2. Dynamics under the pricing measure
	var muQ mat.VecDense
	muQ.SubVec(vp.Mu, lambda0)
	var phiQ mat.Dense
	phiQ.Sub(vp.Phi, lambda1)

	A := make([]float64, n)
	B := mat.NewDense(n, K, nil)

	A[0] = -delta0
	for k := 0; k < K; k++ {
		B.Set(0, k, -delta1.AtVec(k))
	}

	// 3. Recursion over maturities
	for i := 0; i < n-1; i++ {
		b := B.RowView(i)

		convexity := 0.5 * mat.Inner(b, vp.Sigma, b)
		A[i+1] = A[i] + mat.Dot(b, &muQ) + convexity - delta0

		var next mat.VecDense
		next.MulVec(phiQ.T(), b)
		next.SubVec(&next, delta1)
		B.SetRow(i+1, next.RawVector().Data)
	}

	return &AffineCoefficients{
		A:      A,
		B:      B,
		Delta0: delta0,
		Delta1: mat.Col(nil, 0, delta1),
	}, nil
}

// Yields converts the coefficients to annualized yields for every factor
// observation after the first, -(A(n) + B(n)'X_t) / (n/12).
func (ac *AffineCoefficients) Yields(x *FactorPanel) *YieldPanel {
	T, K := x.X.Dims()
	n := len(ac.A)

	// log prices, (T-1) x n
	var lp mat.Dense
	lp.Mul(x.X.Slice(1, T, 0, K), ac.B.T())

	Y := mat.NewDense(T-1, n, nil)
	for t := 0; t < T-1; t++ {
		for j := 0; j < n; j++ {
			ttm := float64(j+1) / 12
			Y.Set(t, j, -(ac.A[j]+lp.At(t, j))/ttm)
		}
	}

	dates := make([]time.Time, T-1)
	copy(dates, x.Dates[1:])
	maturities := make([]int, n)
	for j := range maturities {
		maturities[j] = j + 1
	}

	return &YieldPanel{Dates: dates, Maturities: maturities, Y: Y}
}

// TermPremium returns model implied minus risk neutral yields.
func TermPremium(modelImplied, riskNeutral *YieldPanel) *YieldPanel {
	var tp mat.Dense
	tp.Sub(modelImplied.Y, riskNeutral.Y)

	dates := make([]time.Time, len(modelImplied.Dates))
	copy(dates, modelImplied.Dates)
	maturities := make([]int, len(modelImplied.Maturities))
	copy(maturities, modelImplied.Maturities)

	return &YieldPanel{Dates: dates, Maturities: maturities, Y: &tp}
}
