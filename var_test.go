package acm

import (
	"errors"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// simulateFactors draws T observations of X_t = phi X_{t-1} + e_t.
func simulateFactors(seed int64, T int, phi *mat.Dense) *FactorPanel {
	rng := rand.New(rand.NewSource(seed))
	K, _ := phi.Dims()

	X := mat.NewDense(T, K, nil)
	prev := mat.NewVecDense(K, nil)
	for t := 0; t < T; t++ {
		var next mat.VecDense
		next.MulVec(phi, prev)
		for k := 0; k < K; k++ {
			next.SetVec(k, next.AtVec(k)+rng.NormFloat64())
		}
		X.SetRow(t, next.RawVector().Data)
		prev = &next
	}
	return &FactorPanel{Dates: monthEnds(T), X: X}
}

func TestEstimateVAR(t *testing.T) {
	phi := mat.NewDense(2, 2, []float64{
		0.9, 0.1,
		0.0, 0.5,
	})
	f := simulateFactors(20, 3000, phi)

	vp, err := EstimateVAR(f)
	if err != nil {
		t.Fatalf("EstimateVAR: %v", err)
	}

	for k := 0; k < 2; k++ {
		if vp.Mu.AtVec(k) != 0 {
			t.Errorf("mu[%d]: got %v, want exactly 0", k, vp.Mu.AtVec(k))
		}
	}
	if !matricesAlmostEqual(vp.Phi, phi, 0.07) {
		t.Errorf("phi: got\n%v\nwant\n%v", mat.Formatted(vp.Phi), mat.Formatted(phi))
	}
	if !matricesAlmostEqual(vp.Sigma, identity(2), 0.1) {
		t.Errorf("Sigma: got\n%v\nwant the identity", mat.Formatted(vp.Sigma))
	}

	K, Tv := vp.V.Dims()
	if K != 2 || Tv != 2999 {
		t.Fatalf("innovations dims: got %dx%d, want 2x2999", K, Tv)
	}
	if vp.S0.Len() != 4 {
		t.Errorf("S0 length: got %d, want 4", vp.S0.Len())
	}
	if vp.NumFactors() != 2 {
		t.Errorf("NumFactors: got %d, want 2", vp.NumFactors())
	}
}

func TestEstimateVARInnovations(t *testing.T) {
	phi := mat.NewDense(3, 3, []float64{
		0.8, 0, 0,
		0.1, 0.6, 0,
		0, 0.2, 0.3,
	})
	f := simulateFactors(21, 40, phi)
	vp, err := EstimateVAR(f)
	if err != nil {
		t.Fatalf("EstimateVAR: %v", err)
	}

	// With the constant dropped, v_t = X_t - phi X_{t-1}
	T, K := f.X.Dims()
	for tt := 1; tt < T; tt++ {
		var fitted mat.VecDense
		fitted.MulVec(vp.Phi, f.X.RowView(tt-1))
		for k := 0; k < K; k++ {
			want := f.X.At(tt, k) - fitted.AtVec(k)
			if !almostEqual(vp.V.At(k, tt-1), want, 1e-12) {
				t.Errorf("v[%d, %d]: got %v, want %v", k, tt-1, vp.V.At(k, tt-1), want)
			}
		}
	}

	// Sigma = v v' / (T - 2)
	var want mat.Dense
	want.Mul(vp.V, vp.V.T())
	want.Scale(1/float64(T-2), &want)
	if !matricesAlmostEqual(vp.Sigma, &want, 1e-12) {
		t.Error("Sigma is not v v' / (T-2)")
	}
	if !matricesAlmostEqual(vp.Sigma, vp.Sigma.T(), 1e-14) {
		t.Error("Sigma is not symmetric")
	}
}

func TestEstimateVARInsufficientHistory(t *testing.T) {
	f := &FactorPanel{Dates: monthEnds(2), X: mat.NewDense(2, 2, []float64{1, 2, 3, 4})}
	if _, err := EstimateVAR(f); !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("got %v, want ErrInsufficientHistory", err)
	}
}
