package acm

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestExpectedReturns(t *testing.T) {
	const T, K, N = 30, 2, 3
	rng := rand.New(rand.NewSource(60))

	monthly := &FactorPanel{Dates: monthEnds(T), X: randomDense(rng, T, K)}
	high := &FactorPanel{Dates: businessDays(2 * T), X: randomDense(rng, 2*T, K)}
	fs := &FactorSet{Monthly: monthly, HighFreq: high}

	beta := randomDense(rng, N, K)
	reg := &RegressionParameters{Maturities: []int{6, 12, 24}, Beta: beta, Sigma2: 0.0004}
	vp := &VARParameters{Sigma: mat.NewDense(K, K, []float64{1, 0.3, 0.3, 2})}

	lambda0 := mat.NewVecDense(K, []float64{0.1, -0.05})
	lambda1 := mat.NewDense(K, K, []float64{0.2, 0, -0.1, 0.3})
	por := &PriceOfRisk{Lambda0: lambda0, Lambda1: lambda1}

	er := ExpectedReturns(reg, por, vp, fs)

	// Loadings: beta lambda1 scaled by each factor's standard deviation
	var bl mat.Dense
	bl.Mul(beta, lambda1)
	for i := 0; i < N; i++ {
		for k := 0; k < K; k++ {
			want := bl.At(i, k) * stat.StdDev(mat.Col(nil, k, monthly.X), nil)
			if !almostEqual(er.Loadings.At(i, k), want, 1e-14) {
				t.Errorf("loading[%d, %d]: got %v, want %v", i, k, er.Loadings.At(i, k), want)
			}
		}
	}

	check := func(name string, f *FactorPanel, got *YieldPanel) {
		rows, cols := got.Dims()
		Tf, _ := f.X.Dims()
		if rows != Tf || cols != N {
			t.Fatalf("%s dims: got %dx%d, want %dx%d", name, rows, cols, Tf, N)
		}
		for j, m := range reg.Maturities {
			if got.Maturities[j] != m {
				t.Errorf("%s maturity %d: got %d, want %d", name, j, got.Maturities[j], m)
			}
		}
		for tt := 0; tt < Tf; tt++ {
			var risk mat.VecDense
			risk.MulVec(lambda1, f.X.RowView(tt))
			risk.AddVec(&risk, lambda0)
			for i := 0; i < N; i++ {
				b := beta.RowView(i)
				want := mat.Dot(b, &risk) + mat.Inner(b, vp.Sigma, b) + reg.Sigma2
				if !almostEqual(got.Y.At(tt, i), want, 1e-12) {
					t.Errorf("%s[%d, %d]: got %v, want %v", name, tt, i, got.Y.At(tt, i), want)
				}
			}
		}
	}
	check("monthly", monthly, er.Monthly)
	check("high frequency", high, er.HighFreq)
}
