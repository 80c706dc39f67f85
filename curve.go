package acm

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// logPrices converts annualized log yields to log zero-coupon bond prices,
// -y * n/12 for maturity n months.
func logPrices(p *YieldPanel) *mat.Dense {
	var lp mat.Dense
	lp.Apply(func(i, j int, v float64) float64 {
		return -v * float64(p.Maturities[j]) / 12
	}, p.Y)
	return &lp
}

// ExcessReturns computes monthly log excess returns of synthetic
// zero-coupon bonds.
//
// The return labelled with maturity n at month t is the bond bought at t-1
// with n+1 months left and held until t, net of the one-month rate known at
// t-1:
//
//	rx(n, t) = p(n, t) - p(n+1, t-1) - r(t),  r(t) = -p(1, t-1)
//
// The first month and the longest maturity are undefined and dropped, so the
// result has one row and one column fewer than the monthly panel.
func ExcessReturns(monthly *YieldPanel) *YieldPanel {
	T, N := monthly.Y.Dims()
	lp := logPrices(monthly)

	rx := mat.NewDense(T-1, N-1, nil)
	for t := 1; t < T; t++ {
		rf := -lp.At(t-1, 0)
		for j := 0; j < N-1; j++ {
			rx.Set(t-1, j, lp.At(t, j)-lp.At(t-1, j+1)-rf)
		}
	}

	dates := make([]time.Time, T-1)
	copy(dates, monthly.Dates[1:])
	maturities := make([]int, N-1)
	copy(maturities, monthly.Maturities[:N-1])

	return &YieldPanel{Dates: dates, Maturities: maturities, Y: rx}
}

// ShortRate returns the one-period rate of every observation, -p(1, t),
// i.e. the one-month yield divided by 12.
func ShortRate(p *YieldPanel) []float64 {
	T, _ := p.Y.Dims()
	r := make([]float64, T)
	for t := 0; t < T; t++ {
		r[t] = p.Y.At(t, 0) * float64(p.Maturities[0]) / 12
	}
	return r
}

// selectColumns returns the columns of p with the given maturities. An empty
// selection returns every column.
func selectColumns(p *YieldPanel, maturities []int) (*mat.Dense, []int, error) {
	if len(maturities) == 0 {
		out := make([]int, len(p.Maturities))
		copy(out, p.Maturities)
		return mat.DenseCopyOf(p.Y), out, nil
	}

	T, _ := p.Y.Dims()
	sel := mat.NewDense(T, len(maturities), nil)
	for c, m := range maturities {
		col, err := p.Column(m)
		if err != nil {
			return nil, nil, err
		}
		sel.SetCol(c, col)
	}

	out := make([]int, len(maturities))
	copy(out, maturities)
	return sel, out, nil
}
