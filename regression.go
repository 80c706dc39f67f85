package acm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RegressExcessReturns regresses excess returns on a constant, the lagged
// factors and the VAR innovations.
// rx: monthly excess returns, T x N
// factors: monthly factors, (T+1) x K
// selected: maturities used in the regression, empty for all columns
// Returns: return loadings on the innovations and residual variance
func RegressExcessReturns(rx *YieldPanel, factors *FactorPanel, vp *VARParameters, selected []int, policy VariancePolicy) (*RegressionParameters, error) {
	R, maturities, err := selectColumns(rx, selected)
	if err != nil {
		return nil, fmt.Errorf("excess-return regression: %w", err)
	}

	T, N := R.Dims()
	_, K := factors.X.Dims()
	if err := checkReturnAlignment(T, factors, vp); err != nil {
		return nil, err
	}
	if T <= 2*K+1 {
		return nil, fmt.Errorf("%w: %d regressors need more than %d observations, got %d",
			ErrInsufficientHistory, 2*K+1, 2*K+1, T)
	}

	// Design [1, X_{t-1}, v_t]
	var Z mat.Dense
	Z.Augment(withConstant(factors.X.Slice(0, T, 0, K)), vp.V.T())

	abc, err := leastSquares(&Z, R) // (2K+1) x N
	if err != nil {
		return nil, fmt.Errorf("excess-return regression: %w", err)
	}

	var E mat.Dense
	E.Mul(&Z, abc)
	E.Sub(R, &E)

	sigma2, omega := residualVariance(&E, policy)

	// Loadings on the innovations are the last K coefficients
	beta := mat.DenseCopyOf(abc.Slice(1+K, 1+2*K, 0, N).T()) // N x K

	betaStar := mat.NewDense(N, K*K, nil)
	for i := 0; i < N; i++ {
		b := mat.NewVecDense(K, mat.Row(nil, i, beta))
		betaStar.SetRow(i, kron(b, b).RawMatrix().Data)
	}

	return &RegressionParameters{
		Maturities: maturities,
		Beta:       beta,
		Sigma2:     sigma2,
		Omega:      omega,
		BetaStar:   betaStar,
	}, nil
}

// residualVariance computes the residual variance under the chosen policy.
// Population variances are used, matching the closed form of the estimator.
func residualVariance(E *mat.Dense, policy VariancePolicy) (float64, *mat.DiagDense) {
	T, N := E.Dims()
	diag := make([]float64, N)

	switch policy {
	case VariancePerMaturity:
		total := 0.0
		for j := 0; j < N; j++ {
			diag[j] = stat.PopVariance(mat.Col(nil, j, E), nil)
			total += diag[j]
		}
		return total / float64(N), mat.NewDiagDense(N, diag)
	default:
		all := make([]float64, 0, T*N)
		for t := 0; t < T; t++ {
			all = append(all, E.RawRowView(t)...)
		}
		sigma2 := stat.PopVariance(all, nil)
		for j := range diag {
			diag[j] = sigma2
		}
		return sigma2, mat.NewDiagDense(N, diag)
	}
}

// RecoverPriceOfRisk recovers lambda0 and lambda1 from the convexity
// adjusted excess returns.
// rx: monthly excess returns (the regression's maturities are selected)
// factors: monthly factors, (T+1) x K
// Returns: price of risk and the risk neutral VAR parameters
func RecoverPriceOfRisk(rx *YieldPanel, factors *FactorPanel, vp *VARParameters, reg *RegressionParameters) (*PriceOfRisk, error) {
	R, _, err := selectColumns(rx, reg.Maturities)
	if err != nil {
		return nil, fmt.Errorf("price of risk: %w", err)
	}

	T, N := R.Dims()
	_, K := factors.X.Dims()
	if err := checkReturnAlignment(T, factors, vp); err != nil {
		return nil, err
	}

	// 1. Orthogonalize [1, X_{t-1}] with respect to the innovations
	F := withConstant(factors.X.Slice(0, T, 0, K)) // T x (K+1)

	var vvt mat.Dense
	vvt.Mul(vp.V, vp.V.T())
	vvtInv, err := pinv(&vvt)
	if err != nil {
		return nil, fmt.Errorf("price of risk: %w", err)
	}
	proj := mul(vp.V.T(), vvtInv, vp.V) // T x T

	var projF mat.Dense
	projF.Mul(proj, F)
	F.Sub(F, &projF)

	// 2. Convexity adjustment beta* s0 + diag(omega), added to every row
	var adj mat.VecDense
	adj.MulVec(reg.BetaStar, vp.S0)
	for i := 0; i < N; i++ {
		adj.SetVec(i, adj.AtVec(i)+reg.Omega.At(i, i))
	}

	adjusted := mat.DenseCopyOf(R)
	for t := 0; t < T; t++ {
		for i := 0; i < N; i++ {
			adjusted.Set(t, i, adjusted.At(t, i)+0.5*adj.AtVec(i))
		}
	}

	// 3. Time series regression, then cross section on beta
	Yt, err := leastSquares(F, adjusted) // (K+1) x N
	if err != nil {
		return nil, fmt.Errorf("price of risk: %w", err)
	}

	Lambda, err := leastSquares(reg.Beta, Yt.T()) // K x (K+1)
	if err != nil {
		return nil, fmt.Errorf("price of risk: %w", err)
	}

	lambda0 := mat.NewVecDense(K, mat.Col(nil, 0, Lambda))
	lambda1 := mat.DenseCopyOf(Lambda.Slice(0, K, 1, K+1))

	var muStar mat.VecDense
	muStar.SubVec(vp.Mu, lambda0)

	var phiStar mat.Dense
	phiStar.Sub(vp.Phi, lambda1)

	return &PriceOfRisk{
		Lambda:  Lambda,
		Lambda0: lambda0,
		Lambda1: lambda1,
		MuStar:  &muStar,
		PhiStar: &phiStar,
	}, nil
}

// checkReturnAlignment makes sure T return observations line up with the
// lagged factors and the innovations.
func checkReturnAlignment(T int, factors *FactorPanel, vp *VARParameters) error {
	Tf, _ := factors.X.Dims()
	_, Tv := vp.V.Dims()
	if Tf != T+1 || Tv != T {
		return fmt.Errorf("%w: %d excess returns, %d factor observations, %d innovations",
			ErrDimensionMismatch, T, Tf, Tv)
	}
	return nil
}
