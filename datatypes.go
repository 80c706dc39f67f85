package acm

import (
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"
)

// YieldPanel is a date by maturity table of annualized log yields.
type YieldPanel struct {
	// Observation dates, strictly increasing
	Dates []time.Time
	// Maturity of each column in months
	Maturities []int
	// T x N matrix of yields, rows are dates
	Y *mat.Dense
}

// FactorPanel holds K factors per date. X is T x K.
type FactorPanel struct {
	Dates []time.Time
	X     *mat.Dense
}

// What kind of residual variance the excess-return regression reports
type VariancePolicy int

const (
	// One variance pooled across every residual entry
	VariancePooled VariancePolicy = iota
	// One variance per maturity; Sigma2 is then their average
	VariancePerMaturity
)

// Default settings used when a ModelSpec field is left at its zero value.
const (
	DefaultFactors     = 5
	DefaultDropLeading = 2
)

// ModelSpec describes one estimation run.
type ModelSpec struct {
	// Number of principal components used as state variables (default 5)
	Factors int

	// Maturities, in months, of the excess returns used in the return
	// regression. Empty means every excess-return column.
	SelectedMaturities []int

	// Pre-resampled monthly panel. Nil means the curve is resampled by
	// taking the last observation of each month.
	Monthly *YieldPanel

	// Number of leading maturity columns dropped before the PCA. Zero means
	// the default of 2; use a negative value to keep every column.
	DropLeading int

	// Residual variance policy for the excess-return regression
	Variance VariancePolicy
}

// withDefaults fills the zero-valued fields.
func (s ModelSpec) withDefaults() ModelSpec {
	if s.Factors == 0 {
		s.Factors = DefaultFactors
	}
	if s.DropLeading == 0 {
		s.DropLeading = DefaultDropLeading
	}
	if s.DropLeading < 0 {
		s.DropLeading = 0
	}
	return s
}

// FactorSet is the output of the principal component step.
type FactorSet struct {
	// Monthly factors, each with unit standard deviation
	Monthly *FactorPanel
	// Factors of the curve at its own frequency, projected on the monthly loadings
	HighFreq *FactorPanel

	// Loadings map demeaned yields to factors (usable maturities x K)
	Loadings *mat.Dense
	// Maturities of the rows of Loadings
	LoadingMaturities []int
	// Monthly mean of each usable maturity, subtracted before projecting
	Means []float64
	// Standard deviation of each raw factor before rescaling
	Scales []float64
	// Fraction of total variance explained by each factor
	Explained []float64
}

// VARParameters holds the first-order factor VAR with the constant forced to zero.
type VARParameters struct {
	// Factor mean, always the zero vector
	Mu *mat.VecDense
	// K x K transition matrix
	Phi *mat.Dense
	// K x K innovation covariance, v v' / (T-1)
	Sigma *mat.Dense
	// K x T innovations
	V *mat.Dense
	// vec of the sample covariance of V, used as a convexity term
	S0 *mat.VecDense
}

// RegressionParameters holds the excess-return regression output.
type RegressionParameters struct {
	// Maturities of the rows of Beta
	Maturities []int
	// N x K loadings of excess returns on the VAR innovations
	Beta *mat.Dense
	// Residual variance
	Sigma2 float64
	// N x N diagonal residual variance matrix
	Omega *mat.DiagDense
	// N x K^2, row i is kron(Beta_i, Beta_i)
	BetaStar *mat.Dense
}

// PriceOfRisk holds the market prices of risk and the risk neutral VAR.
type PriceOfRisk struct {
	// K x (K+1) stacked [lambda0 | lambda1]
	Lambda  *mat.Dense
	Lambda0 *mat.VecDense
	Lambda1 *mat.Dense

	MuStar  *mat.VecDense
	PhiStar *mat.Dense
}

// AffineCoefficients define log bond prices A(n) + B(n)'X for n = 1..N months.
type AffineCoefficients struct {
	A []float64
	// N x K, row n-1 is B(n)
	B *mat.Dense

	// Short rate loadings r = delta0 + delta1'X
	Delta0 float64
	Delta1 []float64
}

// FittedCurves holds the model decomposition of the yield curve.
type FittedCurves struct {
	ModelImplied *YieldPanel
	RiskNeutral  *YieldPanel
	TermPremium  *YieldPanel
}

// ExpectedReturnSet holds expected excess returns implied by the model.
type ExpectedReturnSet struct {
	// N x K effect of a one standard deviation factor move
	Loadings *mat.Dense
	// Historical in-sample expected returns, columns are the regression maturities
	Monthly  *YieldPanel
	HighFreq *YieldPanel
}

// InferenceResult holds asymptotic standard errors and test statistics.
// Beta-shaped matrices are N x K, Lambda-shaped ones are K x (K+1).
type InferenceResult struct {
	SEBeta   *mat.Dense
	SELambda *mat.Dense

	ZBeta   *mat.Dense
	ZLambda *mat.Dense

	// Two-sided p-values under the standard normal
	PBeta   *mat.Dense
	PLambda *mat.Dense
}

// ForwardCurve holds one-month forward rates for a single date.
type ForwardCurve struct {
	Date         time.Time
	Maturities   []int
	Observed     []float64
	ModelImplied []float64
	RiskNeutral  []float64
}

// Model is the result of one estimation run. Every field is computed by
// Estimate and must be treated as read-only.
type Model struct {
	Spec ModelSpec

	Curve         *YieldPanel
	Monthly       *YieldPanel
	ExcessReturns *YieldPanel
	// One-month short rate of the curve, per period (y1 / 12)
	ShortRate []float64

	Factors     *FactorSet
	VAR         *VARParameters
	Regression  *RegressionParameters
	PriceOfRisk *PriceOfRisk

	Affine            *AffineCoefficients
	RiskNeutralAffine *AffineCoefficients
	Curves            *FittedCurves

	ExpectedReturns *ExpectedReturnSet
	Inference       *InferenceResult
}

// Estimator runs the ACM pipeline.
type Estimator struct {
	// Logger receives one debug record per stage. Nil uses slog.Default().
	Logger *slog.Logger
}

func (e *Estimator) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// FactorNames returns the column labels used for k factors.
func FactorNames(k int) []string {
	names := make([]string, k)
	for i := range names {
		names[i] = fmt.Sprintf("PC %d", i+1)
	}
	return names
}
