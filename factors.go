package acm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// nullVarianceRatio marks components whose share of variance is numerical noise.
const nullVarianceRatio = 1e-12

// ExtractFactors fits k principal components on the monthly yields and
// projects the higher frequency panel on the same loadings.
// monthly: monthly yield panel used for the fit
// highFreq: panel at the curve's own frequency (may be the monthly panel)
// k: number of factors
// dropLeading: number of short maturities left out of the fit
// Returns: loadings and factors normalized to unit standard deviation and
// signed so that every factor has a non-negative average loading.
func ExtractFactors(monthly, highFreq *YieldPanel, k, dropLeading int) (*FactorSet, error) {
	T, N := monthly.Y.Dims()
	_, Nh := highFreq.Y.Dims()

	if k <= 0 {
		return nil, fmt.Errorf("%w: number of factors must be > 0, got %d", ErrDimensionMismatch, k)
	}
	if Nh != N {
		return nil, fmt.Errorf("%w: monthly panel has %d maturities, curve has %d", ErrDimensionMismatch, N, Nh)
	}
	usable := N - dropLeading
	if usable < k {
		return nil, fmt.Errorf("%w: %d factors need at least %d maturities after dropping %d, have %d",
			ErrDimensionMismatch, k, k, dropLeading, usable)
	}
	if T < 2 {
		return nil, fmt.Errorf("%w: need at least 2 monthly observations, got %d", ErrInsufficientHistory, T)
	}

	// 1. Drop the leading maturities and demean with the monthly means
	Xm, maturities := monthly.dropLeading(dropLeading)
	Xd, _ := highFreq.dropLeading(dropLeading)

	means := make([]float64, usable)
	for j := 0; j < usable; j++ {
		means[j] = stat.Mean(mat.Col(nil, j, Xm), nil)
	}
	demean(Xm, means)
	demean(Xd, means)

	// 2. Principal components of the monthly panel
	var pc stat.PC
	if ok := pc.PrincipalComponents(Xm, nil); !ok {
		return nil, fmt.Errorf("%w: principal components failed", ErrNumericalDegeneracy)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	total := 0.0
	for _, v := range vars {
		total += v
	}

	// With fewer observations than factors, the missing components stay zero
	L := mat.NewDense(usable, k, nil)
	explained := make([]float64, k)
	for i := 0; i < k && i < len(vars); i++ {
		if total <= 0 || vars[i]/total < nullVarianceRatio {
			continue
		}
		explained[i] = vars[i] / total
		L.SetCol(i, mat.Col(nil, i, &vecs))
	}

	// 3. Raw factors, then rescale to unit standard deviation
	var F mat.Dense
	F.Mul(Xm, L)

	scales := make([]float64, k)
	for i := 0; i < k; i++ {
		col := mat.Col(nil, i, &F)
		sd := stat.StdDev(col, nil)
		scales[i] = sd
		if sd == 0 {
			continue
		}

		// Enforce average positive loadings
		sign := 1.0
		if stat.Mean(mat.Col(nil, i, L), nil) < 0 {
			sign = -1
		}

		for t := range col {
			F.Set(t, i, sign*col[t]/sd)
		}
		for j := 0; j < usable; j++ {
			L.Set(j, i, sign*L.At(j, i)/sd)
		}
	}

	// 4. Higher frequency factors use the monthly loadings
	var Fd mat.Dense
	Fd.Mul(Xd, L)

	return &FactorSet{
		Monthly:           &FactorPanel{Dates: monthly.Dates, X: &F},
		HighFreq:          &FactorPanel{Dates: highFreq.Dates, X: &Fd},
		Loadings:          L,
		LoadingMaturities: maturities,
		Means:             means,
		Scales:            scales,
		Explained:         explained,
	}, nil
}

// Project maps a yield panel with the same maturities as the fit onto the
// factor loadings.
func (fs *FactorSet) Project(p *YieldPanel) (*FactorPanel, error) {
	_, N := p.Y.Dims()
	drop := N - len(fs.LoadingMaturities)
	if drop < 0 {
		return nil, fmt.Errorf("%w: panel has %d maturities, loadings need %d",
			ErrDimensionMismatch, N, len(fs.LoadingMaturities))
	}

	X, _ := p.dropLeading(drop)
	demean(X, fs.Means)

	var F mat.Dense
	F.Mul(X, fs.Loadings)
	return &FactorPanel{Dates: p.Dates, X: &F}, nil
}

// Reconstruct maps factors back to yields of the loading maturities,
// adding back the monthly means. When the number of factors equals the rank
// of the demeaned panel this reproduces the input exactly.
func (fs *FactorSet) Reconstruct(f *FactorPanel) *mat.Dense {
	// Loadings are W D^-1 with W orthonormal, so yields are F D^2 L'
	sq := make([]float64, len(fs.Scales))
	for i, s := range fs.Scales {
		sq[i] = s * s
	}

	Y := mul(f.X, mat.NewDiagDense(len(sq), sq), fs.Loadings.T())

	T, N := Y.Dims()
	for t := 0; t < T; t++ {
		for j := 0; j < N; j++ {
			Y.Set(t, j, Y.At(t, j)+fs.Means[j])
		}
	}
	return Y
}

// NumFactors returns the number of factors in the set.
func (fs *FactorSet) NumFactors() int {
	_, k := fs.Loadings.Dims()
	return k
}

func demean(X *mat.Dense, means []float64) {
	T, N := X.Dims()
	for t := 0; t < T; t++ {
		for j := 0; j < N; j++ {
			X.Set(t, j, X.At(t, j)-means[j])
		}
	}
}
