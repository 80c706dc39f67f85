package acm

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestVecUnvec(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})

	v := Vec(m)
	want := []float64{1, 4, 2, 5, 3, 6}
	for i, w := range want {
		if v.AtVec(i) != w {
			t.Errorf("vec[%d]: got %v, want %v", i, v.AtVec(i), w)
		}
	}

	if back := Unvec(v.RawVector().Data, 2, 3); !mat.Equal(back, m) {
		t.Errorf("Unvec(Vec(m)) differs from m:\n%v", mat.Formatted(back))
	}

	x := mat.NewVecDense(2, []float64{2, 3})
	q := VecQuadForm(x)
	for i, w := range []float64{4, 6, 6, 9} {
		if q.AtVec(i) != w {
			t.Errorf("vec(xx')[%d]: got %v, want %v", i, q.AtVec(i), w)
		}
	}
}

func TestCommutationMatrix(t *testing.T) {
	rng := rand.New(rand.NewSource(50))

	for i, dims := range [][2]int{{1, 1}, {2, 3}, {4, 2}, {3, 3}} {
		m, n := dims[0], dims[1]
		M := randomDense(rng, m, n)
		K := CommutationMatrix(m, n)

		var got mat.VecDense
		got.MulVec(K, Vec(M))
		want := Vec(M.T())
		if !mat.EqualApprox(&got, want, 0) {
			t.Errorf("Test %d: K vec(M) != vec(M') for a %dx%d matrix", i, m, n)
		}

		// K(m,n)' = K(n,m) and K is a permutation
		if !mat.Equal(K.T(), CommutationMatrix(n, m)) {
			t.Errorf("Test %d: K(%d,%d)' != K(%d,%d)", i, m, n, n, m)
		}
		var kkt mat.Dense
		kkt.Mul(K, K.T())
		if !mat.Equal(&kkt, identity(m*n)) {
			t.Errorf("Test %d: K K' is not the identity", i)
		}
	}
}

func TestInfer(t *testing.T) {
	const T, K, N = 120, 2, 5
	rng := rand.New(rand.NewSource(51))
	beta := randomDense(rng, N, K)
	lambda := randomDense(rng, K, K+1)

	rx, factors, vp := pricedReturns(52, T, K, N, beta, lambda)

	// Measurement error so that sigma2 is not zero
	noise := rand.New(rand.NewSource(53))
	for i := 0; i < T; i++ {
		for j := 0; j < N; j++ {
			rx.Y.Set(i, j, rx.Y.At(i, j)+0.01*noise.NormFloat64())
		}
	}

	reg, err := RegressExcessReturns(rx, factors, vp, nil, VariancePooled)
	if err != nil {
		t.Fatal(err)
	}
	por, err := RecoverPriceOfRisk(rx, factors, vp, reg)
	if err != nil {
		t.Fatal(err)
	}

	inf, err := Infer(reg, por, vp, factors)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}

	shapes := []struct {
		name       string
		m          *mat.Dense
		rows, cols int
	}{
		{"SEBeta", inf.SEBeta, N, K},
		{"ZBeta", inf.ZBeta, N, K},
		{"PBeta", inf.PBeta, N, K},
		{"SELambda", inf.SELambda, K, K + 1},
		{"ZLambda", inf.ZLambda, K, K + 1},
		{"PLambda", inf.PLambda, K, K + 1},
	}
	for _, s := range shapes {
		if r, c := s.m.Dims(); r != s.rows || c != s.cols {
			t.Errorf("%s dims: got %dx%d, want %dx%d", s.name, r, c, s.rows, s.cols)
		}
	}

	// vBeta = sigma2 (I_N kron Sigma^-1)
	var sigmaInv mat.Dense
	if err := sigmaInv.Inverse(vp.Sigma); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < N; i++ {
		for k := 0; k < K; k++ {
			want := math.Sqrt(reg.Sigma2 * sigmaInv.At(k, k))
			if !almostEqual(inf.SEBeta.At(i, k), want, 1e-12) {
				t.Errorf("se(beta)[%d, %d]: got %v, want %v", i, k, inf.SEBeta.At(i, k), want)
			}
			z := reg.Beta.At(i, k) / want
			if !almostEqual(inf.ZBeta.At(i, k), z, 1e-9*math.Max(1, math.Abs(z))) {
				t.Errorf("z(beta)[%d, %d]: got %v, want %v", i, k, inf.ZBeta.At(i, k), z)
			}
		}
	}

	// p-values are two-sided and in [0, 1]
	for i := 0; i < K; i++ {
		for j := 0; j < K+1; j++ {
			p := inf.PLambda.At(i, j)
			if math.IsNaN(inf.SELambda.At(i, j)) {
				continue
			}
			if p < 0 || p > 1 {
				t.Errorf("p(lambda)[%d, %d] = %v is outside [0, 1]", i, j, p)
			}
		}
	}

	z := mat.NewDense(1, 3, []float64{0, 1.959963984540054, -1.959963984540054})
	p := pValues(z)
	if !almostEqual(p.At(0, 0), 1, 1e-12) || !almostEqual(p.At(0, 1), 0.05, 1e-9) || !almostEqual(p.At(0, 2), 0.05, 1e-9) {
		t.Errorf("pValues: got %v", mat.Formatted(p))
	}
}
