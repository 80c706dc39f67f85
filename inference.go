package acm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Vec stacks the columns of m into a single column vector.
func Vec(m mat.Matrix) *mat.VecDense {
	r, c := m.Dims()
	out := mat.NewVecDense(r*c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.SetVec(j*r+i, m.At(i, j))
		}
	}
	return out
}

// Unvec is the inverse of Vec: it fills an r x c matrix column by column.
func Unvec(v []float64, r, c int) *mat.Dense {
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(i, j, v[j*r+i])
		}
	}
	return out
}

// VecQuadForm returns vec(x x').
func VecQuadForm(x mat.Vector) *mat.VecDense {
	var outer mat.Dense
	outer.Outer(1, x, x)
	return Vec(&outer)
}

// CommutationMatrix returns the mn x mn matrix K with K vec(M) = vec(M')
// for any m x n matrix M.
func CommutationMatrix(m, n int) *mat.Dense {
	K := mat.NewDense(m*n, m*n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			// M[i,j] sits at j*m+i in vec(M) and at i*n+j in vec(M')
			K.Set(i*n+j, j*m+i, 1)
		}
	}
	return K
}

// Infer computes asymptotic standard errors, z-statistics and p-values for
// beta and for Lambda = [lambda0 | lambda1].
//
// All parameter vectors are stacked column-major with Vec, and the standard
// errors are reshaped back with Unvec. Beta is handled in its K x N
// (factor by maturity) orientation and transposed back at the end.
func Infer(reg *RegressionParameters, por *PriceOfRisk, vp *VARParameters, factors *FactorPanel) (*InferenceResult, error) {
	N, K := reg.Beta.Dims()
	Tf, _ := factors.X.Dims()
	T := Tf - 1
	if T <= 0 {
		return nil, fmt.Errorf("%w: inference needs at least 2 factor observations", ErrInsufficientHistory)
	}

	sigma2 := reg.Sigma2
	beta := reg.Beta.T() // K x N
	Lambda := por.Lambda // K x (K+1)

	// Auxiliary matrices
	Z := withConstant(factors.X.Slice(1, Tf, 0, K)).T() // (K+1) x T

	rho1 := mat.NewDense(K+1, 1, nil)
	rho1.Set(0, 0, 1)
	var rhoRho mat.Dense
	rhoRho.Mul(rho1, rho1.T())

	// Block diagonal, column i holds beta_i in rows iK..(i+1)K
	Abeta := mat.NewDense(K*N, N, nil)
	for i := 0; i < N; i++ {
		for k := 0; k < K; k++ {
			Abeta.Set(i*K+k, i, beta.At(k, i))
		}
	}

	commKK := CommutationMatrix(K, K)
	commKN := CommutationMatrix(K, N)

	sigmaInv, err := inverse(vp.Sigma)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	var bbt mat.Dense
	bbt.Mul(beta, beta.T())
	bbtInv, err := inverse(&bbt)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	var upsilon mat.Dense
	upsilon.Mul(Z, Z.T())
	upsilon.Scale(1/float64(T), &upsilon)
	upsilonInv, err := inverse(&upsilon)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	// (beta beta')^-1 beta, used by every lambda term
	var proj mat.Dense
	proj.Mul(bbtInv, beta) // K x N

	// Asymptotic variance of the betas
	vBeta := kron(identity(N), sigmaInv)
	vBeta.Scale(sigma2, vBeta)

	// Asymptotic variance of the lambdas
	v1 := kron(upsilonInv, vp.Sigma)

	v2 := kron(upsilonInv, bbtInv)
	v2.Scale(sigma2, v2)

	v3 := kron(mul(Lambda.T(), vp.Sigma, Lambda), bbtInv)
	v3.Scale(sigma2, v3)

	sigmaBlock := kron(identity(N), vp.Sigma)

	v4Sim := mul(&proj, Abeta.T())
	v4 := kron(&rhoRho, mul(v4Sim, sigmaBlock, v4Sim.T()))
	v4.Scale(sigma2, v4)

	v5Sim := mul(&proj, reg.BetaStar)
	var v5Mid mat.Dense
	v5Mid.Add(identity(K*K), commKK)
	v5Mid.Mul(mat.DenseCopyOf(&v5Mid), kron(vp.Sigma, vp.Sigma))
	v5 := kron(&rhoRho, mul(v5Sim, &v5Mid, v5Sim.T()))
	v5.Scale(0.25, v5)

	ones := mat.NewDense(N, 1, nil)
	for i := 0; i < N; i++ {
		ones.Set(i, 0, 1)
	}
	v6Sim := mul(&proj, ones)
	v6 := kron(&rhoRho, mul(v6Sim, v6Sim.T()))
	v6.Scale(0.5*sigma2*sigma2, v6)

	var vLambdaTau mat.Dense
	vLambdaTau.Add(v1, v2)
	for _, term := range []*mat.Dense{v3, v4, v5, v6} {
		vLambdaTau.Add(&vLambdaTau, term)
	}

	// Covariance between the lambda and beta estimation errors
	c1 := kron(Lambda.T(), &proj)
	c2 := kron(rho1, mul(&proj, Abeta.T(), sigmaBlock))
	cLambdaTau := mul(c1, commKN, vBeta, c2.T())
	cLambdaTau.Scale(-1, cLambdaTau)

	var vLambda mat.Dense
	vLambda.Add(&vLambdaTau, cLambdaTau)
	vLambda.Add(&vLambda, cLambdaTau.T())

	// Standard errors, reshaped column-major to the parameter shapes
	seLambda := Unvec(sqrtDiag(&vLambda), K, K+1)
	seBeta := Unvec(sqrtDiag(vBeta), K, N)

	zLambda := divElem(Lambda, seLambda)
	zBeta := divElem(beta, seBeta)

	return &InferenceResult{
		SEBeta:   mat.DenseCopyOf(seBeta.T()),
		SELambda: seLambda,
		ZBeta:    mat.DenseCopyOf(zBeta.T()),
		ZLambda:  zLambda,
		PBeta:    mat.DenseCopyOf(pValues(zBeta).T()),
		PLambda:  pValues(zLambda),
	}, nil
}

// sqrtDiag returns the square roots of the diagonal of a square matrix.
// Negative variances give NaN.
func sqrtDiag(m mat.Matrix) []float64 {
	n, _ := m.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sqrt(m.At(i, i))
	}
	return out
}

func divElem(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.DivElem(a, b)
	return &out
}

// pValues returns two-sided p-values of standard normal test statistics.
func pValues(z *mat.Dense) *mat.Dense {
	var p mat.Dense
	p.Apply(func(_, _ int, v float64) float64 {
		return 2 * distuv.UnitNormal.Survival(math.Abs(v))
	}, z)
	return &p
}
