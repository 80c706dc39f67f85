package acm

import (
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ExpectedReturns computes the expected excess return loadings and the
// historical in-sample expected returns at both frequencies.
//
// The loadings are beta lambda1 scaled by the standard deviation of each
// monthly factor, i.e. the effect of a one standard deviation factor move.
// The historical series is beta(lambda0 + lambda1 X_t) plus the convexity
// term diag(beta Sigma beta') + sigma2.
func ExpectedReturns(reg *RegressionParameters, por *PriceOfRisk, vp *VARParameters, fs *FactorSet) *ExpectedReturnSet {
	N, K := reg.Beta.Dims()

	var loadings mat.Dense
	loadings.Mul(reg.Beta, por.Lambda1)
	for k := 0; k < K; k++ {
		sd := stat.StdDev(mat.Col(nil, k, fs.Monthly.X), nil)
		for i := 0; i < N; i++ {
			loadings.Set(i, k, loadings.At(i, k)*sd)
		}
	}

	// Convexity term, shared by both frequencies
	bsb := mul(reg.Beta, vp.Sigma, reg.Beta.T())
	convexity := make([]float64, N)
	for i := range convexity {
		convexity[i] = bsb.At(i, i) + reg.Sigma2
	}

	return &ExpectedReturnSet{
		Loadings: &loadings,
		Monthly:  expectedReturnHistory(reg, por, fs.Monthly, convexity),
		HighFreq: expectedReturnHistory(reg, por, fs.HighFreq, convexity),
	}
}

// expectedReturnHistory evaluates the expected returns on every row of f.
func expectedReturnHistory(reg *RegressionParameters, por *PriceOfRisk, f *FactorPanel, convexity []float64) *YieldPanel {
	T, K := f.X.Dims()

	// lambda0 + lambda1 X_t for every date, T x K
	var risk mat.Dense
	risk.Mul(f.X, por.Lambda1.T())
	for t := 0; t < T; t++ {
		for k := 0; k < K; k++ {
			risk.Set(t, k, risk.At(t, k)+por.Lambda0.AtVec(k))
		}
	}

	var er mat.Dense
	er.Mul(&risk, reg.Beta.T()) // T x N
	_, N := er.Dims()
	for t := 0; t < T; t++ {
		for i := 0; i < N; i++ {
			er.Set(t, i, er.At(t, i)+convexity[i])
		}
	}

	dates := make([]time.Time, T)
	copy(dates, f.Dates)
	maturities := make([]int, len(reg.Maturities))
	copy(maturities, reg.Maturities)

	return &YieldPanel{Dates: dates, Maturities: maturities, Y: &er}
}
