package acm

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// NewYieldPanel builds a panel and checks the input contract: dates strictly
// increasing, maturities equal to 1..N months and no missing values.
// values: T x N matrix, rows follow dates
func NewYieldPanel(dates []time.Time, maturities []int, values *mat.Dense) (*YieldPanel, error) {
	p := &YieldPanel{Dates: dates, Maturities: maturities, Y: values}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the panel against the input contract.
func (p *YieldPanel) Validate() error {
	if p == nil || p.Y == nil {
		return fmt.Errorf("%w: no data", ErrInvalidPanel)
	}

	T, N := p.Y.Dims()
	if T != len(p.Dates) {
		return fmt.Errorf("%w: %d rows but %d dates", ErrDimensionMismatch, T, len(p.Dates))
	}
	if N != len(p.Maturities) {
		return fmt.Errorf("%w: %d columns but %d maturities", ErrDimensionMismatch, N, len(p.Maturities))
	}

	for i := 1; i < T; i++ {
		if !p.Dates[i].After(p.Dates[i-1]) {
			return fmt.Errorf("%w: dates not strictly increasing at row %d (%s)",
				ErrInvalidPanel, i, p.Dates[i].Format(time.DateOnly))
		}
	}

	// The affine recursion steps one month at a time, so columns must be 1..N
	for j, m := range p.Maturities {
		if m != j+1 {
			return fmt.Errorf("%w: column %d has maturity %d, want %d", ErrInvalidPanel, j, m, j+1)
		}
	}

	for i := 0; i < T; i++ {
		for j := 0; j < N; j++ {
			if v := p.Y.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: missing value at %s, %dm",
					ErrInvalidPanel, p.Dates[i].Format(time.DateOnly), p.Maturities[j])
			}
		}
	}
	return nil
}

// Dims returns the number of dates and maturities.
func (p *YieldPanel) Dims() (int, int) {
	return p.Y.Dims()
}

// Column returns the series of the given maturity.
func (p *YieldPanel) Column(maturity int) ([]float64, error) {
	j := p.columnIndex(maturity)
	if j < 0 {
		return nil, fmt.Errorf("%w: %dm", ErrUnknownMaturity, maturity)
	}
	return mat.Col(nil, j, p.Y), nil
}

// Row returns the curve observed on date.
func (p *YieldPanel) Row(date time.Time) ([]float64, error) {
	i := dateIndex(p.Dates, date)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrDateNotFound, date.Format(time.DateOnly))
	}
	return mat.Row(nil, i, p.Y), nil
}

// Head returns a copy of the first n rows of the panel.
func (p *YieldPanel) Head(n int) *YieldPanel {
	_, N := p.Y.Dims()
	dates := make([]time.Time, n)
	copy(dates, p.Dates[:n])
	maturities := make([]int, N)
	copy(maturities, p.Maturities)
	return &YieldPanel{
		Dates:      dates,
		Maturities: maturities,
		Y:          mat.DenseCopyOf(p.Y.Slice(0, n, 0, N)),
	}
}

// IsMonthly reports whether the panel has at most one observation per
// calendar month.
func (p *YieldPanel) IsMonthly() bool {
	for i := 1; i < len(p.Dates); i++ {
		if sameMonth(p.Dates[i-1], p.Dates[i]) {
			return false
		}
	}
	return true
}

// ResampleMonthly keeps the last observation of every calendar month. Rows
// are labelled with the last calendar day of their month.
func (p *YieldPanel) ResampleMonthly() *YieldPanel {
	T, N := p.Y.Dims()

	var (
		rows  []int
		dates []time.Time
	)
	for i := 0; i < T; i++ {
		// last row of the month is the one whose successor is in another month
		if i == T-1 || !sameMonth(p.Dates[i], p.Dates[i+1]) {
			rows = append(rows, i)
			dates = append(dates, monthEnd(p.Dates[i]))
		}
	}

	Y := mat.NewDense(len(rows), N, nil)
	for r, i := range rows {
		Y.SetRow(r, p.Y.RawRowView(i))
	}

	maturities := make([]int, N)
	copy(maturities, p.Maturities)

	return &YieldPanel{Dates: dates, Maturities: maturities, Y: Y}
}

// dropLeading returns a copy of the panel values without its first k columns.
func (p *YieldPanel) dropLeading(k int) (*mat.Dense, []int) {
	T, N := p.Y.Dims()
	maturities := make([]int, N-k)
	copy(maturities, p.Maturities[k:])
	return mat.DenseCopyOf(p.Y.Slice(0, T, k, N)), maturities
}

func (p *YieldPanel) columnIndex(maturity int) int {
	for j, m := range p.Maturities {
		if m == maturity {
			return j
		}
	}
	return -1
}

func dateIndex(dates []time.Time, date time.Time) int {
	for i, d := range dates {
		if d.Equal(date) {
			return i
		}
	}
	return -1
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}
