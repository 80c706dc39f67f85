package acm

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
)

// almostEqual compares floats with tolerance
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// matricesAlmostEqual compares two matrices element by element.
func matricesAlmostEqual(a, b mat.Matrix, tol float64) bool {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb || ca != cb {
		return false
	}
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			if !almostEqual(a.At(i, j), b.At(i, j), tol) {
				return false
			}
		}
	}
	return true
}

// monthEnds returns T consecutive month-end dates starting in January 2000.
func monthEnds(T int) []time.Time {
	dates := make([]time.Time, T)
	for i := range dates {
		dates[i] = time.Date(2000, time.Month(i+2), 0, 0, 0, 0, 0, time.UTC)
	}
	return dates
}

// businessDays returns T consecutive weekdays starting on 3 January 2000.
func businessDays(T int) []time.Time {
	dates := make([]time.Time, 0, T)
	d := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
	for len(dates) < T {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

// syntheticCurve simulates a Nelson-Siegel curve whose level, slope and
// curvature follow AR(1) processes, plus a little measurement noise so every
// maturity carries independent variation.
func syntheticCurve(seed int64, dates []time.Time, N int) *YieldPanel {
	rng := rand.New(rand.NewSource(seed))
	T := len(dates)

	const tau = 30.0
	level, slope, curv := 0.05, -0.02, 0.01

	Y := mat.NewDense(T, N, nil)
	for t := 0; t < T; t++ {
		level = 0.05 + 0.97*(level-0.05) + 0.002*rng.NormFloat64()
		slope = -0.02 + 0.95*(slope+0.02) + 0.003*rng.NormFloat64()
		curv = 0.01 + 0.90*(curv-0.01) + 0.004*rng.NormFloat64()

		for j := 0; j < N; j++ {
			n := float64(j+1) / tau
			f1 := (1 - math.Exp(-n)) / n
			f2 := f1 - math.Exp(-n)
			Y.Set(t, j, level+slope*f1+curv*f2+0.0002*rng.NormFloat64())
		}
	}

	maturities := make([]int, N)
	for j := range maturities {
		maturities[j] = j + 1
	}
	return &YieldPanel{Dates: dates, Maturities: maturities, Y: Y}
}

// monthlyCurve is a synthetic curve observed at month ends.
func monthlyCurve(seed int64, T, N int) *YieldPanel {
	return syntheticCurve(seed, monthEnds(T), N)
}

// dailyCurve is a synthetic curve observed on business days.
func dailyCurve(seed int64, T, N int) *YieldPanel {
	return syntheticCurve(seed, businessDays(T), N)
}

// randomDense fills an r x c matrix with standard normal draws.
func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}
