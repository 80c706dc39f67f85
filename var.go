package acm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// EstimateVAR fits X_t = mu + phi X_{t-1} + v_t on the monthly factors.
//
// The constant is estimated together with phi and then forced to zero;
// innovations and their covariance come from the constrained model.
// f: monthly factors, T x K
// Returns: VAR parameters with Mu equal to the zero vector
func EstimateVAR(f *FactorPanel) (*VARParameters, error) {
	T, K := f.X.Dims()
	Treg := T - 1
	if Treg < 2 {
		return nil, fmt.Errorf("%w: VAR needs at least 3 observations, got %d", ErrInsufficientHistory, T)
	}

	// Left hand side X_t and lagged right hand side [1; X_{t-1}], both in columns
	lhs := mat.DenseCopyOf(f.X.Slice(1, T, 0, K).T())
	rhs := withConstant(f.X.Slice(0, T-1, 0, K)).T()

	rhsInv, err := pinv(rhs)
	if err != nil {
		return nil, fmt.Errorf("VAR: %w", err)
	}

	var coeffs mat.Dense
	coeffs.Mul(lhs, rhsInv) // K x (K+1)

	phi := mat.DenseCopyOf(coeffs.Slice(0, K, 1, K+1))

	// Force constant to zero
	for k := 0; k < K; k++ {
		coeffs.Set(k, 0, 0)
	}

	// Residuals of the constrained model
	var fitted mat.Dense
	fitted.Mul(&coeffs, rhs)

	var v mat.Dense
	v.Sub(lhs, &fitted) // K x Treg

	var Sigma mat.Dense
	Sigma.Mul(&v, v.T())
	Sigma.Scale(1/float64(Treg-1), &Sigma)

	// Sample covariance of the innovations, stacked into a column
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, v.T(), nil)

	return &VARParameters{
		Mu:    mat.NewVecDense(K, nil),
		Phi:   phi,
		Sigma: &Sigma,
		V:     &v,
		S0:    Vec(&cov),
	}, nil
}

// NumFactors returns the dimension of the VAR.
func (vp *VARParameters) NumFactors() int {
	K, _ := vp.Phi.Dims()
	return K
}
