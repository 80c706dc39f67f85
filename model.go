package acm

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Estimate runs the full ACM decomposition on curve.
//
// The steps are: monthly resampling and excess returns, principal
// components, the factor VAR, the excess-return regression, the price of
// risk, the affine recursions for fitted and risk neutral yields, expected
// returns and inference. Estimate either returns a complete Model or an error.
// curve: yields at monthly or higher frequency, maturities 1..N months
// spec: run settings, zero values select the defaults
func (e *Estimator) Estimate(curve *YieldPanel, spec ModelSpec) (*Model, error) {
	log := e.logger()
	spec = spec.withDefaults()
	K := spec.Factors

	// 1. Validate the inputs and build the monthly panel
	if err := curve.Validate(); err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}

	monthly := spec.Monthly
	if monthly == nil {
		monthly = curve.ResampleMonthly()
	} else if err := monthly.Validate(); err != nil {
		return nil, fmt.Errorf("monthly curve: %w", err)
	}

	if err := checkSpec(curve, monthly, spec); err != nil {
		return nil, err
	}

	Tm, N := monthly.Dims()
	log.Debug("curve prepared",
		slog.Int("observations", len(curve.Dates)),
		slog.Int("monthly_observations", Tm),
		slog.Int("maturities", N),
		slog.Bool("monthly", curve.IsMonthly()),
	)

	// 2. Excess returns and principal components
	rx := ExcessReturns(monthly)

	fs, err := ExtractFactors(monthly, curve, K, spec.DropLeading)
	if err != nil {
		return nil, fmt.Errorf("factors: %w", err)
	}
	log.Debug("factors extracted", slog.Any("explained", fs.Explained))

	// ===== Three-step regression =====
	// 3. Factor VAR
	vp, err := EstimateVAR(fs.Monthly)
	if err != nil {
		return nil, err
	}

	// 4. Excess returns on innovations
	reg, err := RegressExcessReturns(rx, fs.Monthly, vp, spec.SelectedMaturities, spec.Variance)
	if err != nil {
		return nil, err
	}
	log.Debug("excess returns regressed",
		slog.Int("maturities", len(reg.Maturities)),
		slog.Float64("sigma2", reg.Sigma2),
	)

	// 5. Convexity-adjusted price of risk
	por, err := RecoverPriceOfRisk(rx, fs.Monthly, vp, reg)
	if err != nil {
		return nil, err
	}

	// 6. Affine recursions at the curve's own frequency
	shortRate := ShortRate(curve)
	affine, err := AffineRecursion(por.Lambda0, por.Lambda1, fs.HighFreq, shortRate, vp, N)
	if err != nil {
		return nil, err
	}
	neutral, err := AffineRecursion(nil, nil, fs.HighFreq, shortRate, vp, N)
	if err != nil {
		return nil, err
	}

	miy := affine.Yields(fs.HighFreq)
	rny := neutral.Yields(fs.HighFreq)
	curves := &FittedCurves{
		ModelImplied: miy,
		RiskNeutral:  rny,
		TermPremium:  TermPremium(miy, rny),
	}
	log.Debug("affine recursions done", slog.Float64("delta0", affine.Delta0))

	// 7. Expected returns
	er := ExpectedReturns(reg, por, vp, fs)

	// 8. Inference
	inf, err := Infer(reg, por, vp, fs.Monthly)
	if err != nil {
		return nil, err
	}
	log.Debug("inference done")

	return &Model{
		Spec:              spec,
		Curve:             curve,
		Monthly:           monthly,
		ExcessReturns:     rx,
		ShortRate:         shortRate,
		Factors:           fs,
		VAR:               vp,
		Regression:        reg,
		PriceOfRisk:       por,
		Affine:            affine,
		RiskNeutralAffine: neutral,
		Curves:            curves,
		ExpectedReturns:   er,
		Inference:         inf,
	}, nil
}

// checkSpec validates the run settings against the panels before any estimation.
func checkSpec(curve, monthly *YieldPanel, spec ModelSpec) error {
	Tm, N := monthly.Dims()
	_, Nc := curve.Dims()
	K := spec.Factors

	if K <= 0 {
		return fmt.Errorf("%w: number of factors must be > 0, got %d", ErrDimensionMismatch, K)
	}
	if N != Nc {
		return fmt.Errorf("%w: monthly curve has %d maturities, curve has %d", ErrDimensionMismatch, N, Nc)
	}
	if N-spec.DropLeading < K {
		return fmt.Errorf("%w: %d factors need %d maturities after dropping %d, have %d",
			ErrDimensionMismatch, K, K, spec.DropLeading, N-spec.DropLeading)
	}

	// The return regression has 2K+1 regressors over Tm-1 months
	if Tm-1 <= 2*K+1 {
		return fmt.Errorf("%w: %d factors need more than %d monthly observations, got %d",
			ErrInsufficientHistory, K, 2*K+2, Tm)
	}

	selected := len(spec.SelectedMaturities)
	if selected == 0 {
		selected = N - 1
	}
	if selected > Tm-1 {
		return fmt.Errorf("%w: %d maturities in the return regression but only %d months of returns",
			ErrInsufficientHistory, selected, Tm-1)
	}
	if selected < K {
		return fmt.Errorf("%w: %d factors need at least %d maturities in the return regression, got %d",
			ErrDimensionMismatch, K, K, selected)
	}
	for _, m := range spec.SelectedMaturities {
		if m < 1 || m > N-1 {
			return fmt.Errorf("%w: %dm has no excess return (available 1m to %dm)", ErrUnknownMaturity, m, N-1)
		}
	}
	return nil
}

// ForwardCurve computes observed, model implied and risk neutral one-month
// forward rates on date. A nil date selects the last observation.
func (m *Model) ForwardCurve(date *time.Time) (*ForwardCurve, error) {
	d := m.Curve.Dates[len(m.Curve.Dates)-1]
	if date != nil {
		d = *date
	}

	observed, err := m.Curve.Row(d)
	if err != nil {
		return nil, fmt.Errorf("observed curve: %w", err)
	}
	miy, err := m.Curves.ModelImplied.Row(d)
	if err != nil {
		return nil, fmt.Errorf("model implied curve: %w", err)
	}
	rny, err := m.Curves.RiskNeutral.Row(d)
	if err != nil {
		return nil, fmt.Errorf("risk neutral curve: %w", err)
	}

	maturities := make([]int, len(m.Curve.Maturities))
	copy(maturities, m.Curve.Maturities)

	return &ForwardCurve{
		Date:         d,
		Maturities:   maturities,
		Observed:     ForwardRates(observed),
		ModelImplied: ForwardRates(miy),
		RiskNeutral:  ForwardRates(rny),
	}, nil
}

// ForwardRates converts a spot curve with maturities 1..n months into
// annualized one-month forward rates:
//
//	fwd(n) = ((1+y(n))^(n/12) / (1+y(n-1))^((n-1)/12))^12 - 1
//
// The first forward equals the one-month spot rate.
func ForwardRates(spot []float64) []float64 {
	fwd := make([]float64, len(spot))
	prev := 1.0
	for i, y := range spot {
		factor := math.Pow(1+y, float64(i+1)/12)
		fwd[i] = math.Pow(factor/prev, 12) - 1
		prev = factor
	}
	return fwd
}

// NumFactors returns the number of factors of the model.
func (m *Model) NumFactors() int {
	return m.Spec.Factors
}
