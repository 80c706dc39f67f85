package acm

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
)

func TestNewYieldPanelValidation(t *testing.T) {
	d := monthEnds(3)
	good := mat.NewDense(3, 2, []float64{0.01, 0.02, 0.011, 0.021, 0.012, 0.022})

	nan := mat.DenseCopyOf(good)
	nan.Set(1, 1, math.NaN())

	tests := []struct {
		dates      []time.Time
		maturities []int
		values     *mat.Dense
		want       error
	}{
		{d, []int{1, 2}, good, nil},
		{[]time.Time{d[0], d[2], d[1]}, []int{1, 2}, good, ErrInvalidPanel},
		{[]time.Time{d[0], d[0], d[1]}, []int{1, 2}, good, ErrInvalidPanel},
		{d, []int{1, 3}, good, ErrInvalidPanel},
		{d, []int{1, 2}, nan, ErrInvalidPanel},
		{d[:2], []int{1, 2}, good, ErrDimensionMismatch},
		{d, []int{1}, good, ErrDimensionMismatch},
		{d, []int{1, 2}, nil, ErrInvalidPanel},
	}

	for i, test := range tests {
		_, err := NewYieldPanel(test.dates, test.maturities, test.values)
		if test.want == nil {
			if err != nil {
				t.Errorf("Test %d: unexpected error %v", i, err)
			}
			continue
		}
		if !errors.Is(err, test.want) {
			t.Errorf("Test %d: got error %v, want %v", i, err, test.want)
		}
	}
}

func TestResampleMonthly(t *testing.T) {
	daily := dailyCurve(1, 65, 4) // January to the end of March 2000
	monthly := daily.ResampleMonthly()

	if daily.IsMonthly() {
		t.Error("daily panel reported as monthly")
	}
	if !monthly.IsMonthly() {
		t.Error("resampled panel is not monthly")
	}

	T, N := monthly.Dims()
	if T != 3 || N != 4 {
		t.Fatalf("resampled dims: got %dx%d, want 3x4", T, N)
	}

	wantDates := []time.Time{
		time.Date(2000, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	for i, want := range wantDates {
		if !monthly.Dates[i].Equal(want) {
			t.Errorf("Test %d: date got %s, want %s", i, monthly.Dates[i].Format(time.DateOnly), want.Format(time.DateOnly))
		}
	}

	// Each month keeps its last business day
	last := map[time.Month]int{}
	for i, d := range daily.Dates {
		last[d.Month()] = i
	}
	for r, month := range []time.Month{time.January, time.February, time.March} {
		for j := 0; j < N; j++ {
			if monthly.Y.At(r, j) != daily.Y.At(last[month], j) {
				t.Errorf("Test %d: %s value at column %d differs from the last daily value", r, month, j)
			}
		}
	}

	// Resampling does not touch the source panel
	if Td, _ := daily.Dims(); Td != 65 {
		t.Errorf("source panel changed to %d rows", Td)
	}
}

func TestPanelLookups(t *testing.T) {
	p := monthlyCurve(2, 6, 3)

	col, err := p.Column(2)
	if err != nil {
		t.Fatalf("Column(2): %v", err)
	}
	for i, v := range col {
		if v != p.Y.At(i, 1) {
			t.Errorf("Test %d: Column(2) got %v, want %v", i, v, p.Y.At(i, 1))
		}
	}
	if _, err := p.Column(4); !errors.Is(err, ErrUnknownMaturity) {
		t.Errorf("Column(4): got %v, want ErrUnknownMaturity", err)
	}

	row, err := p.Row(p.Dates[3])
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if row[0] != p.Y.At(3, 0) {
		t.Errorf("Row: got %v, want %v", row[0], p.Y.At(3, 0))
	}
	if _, err := p.Row(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrDateNotFound) {
		t.Errorf("Row: got %v, want ErrDateNotFound", err)
	}

	head := p.Head(4)
	if T, _ := head.Dims(); T != 4 {
		t.Fatalf("Head(4): got %d rows", T)
	}
	head.Y.Set(0, 0, 99)
	if p.Y.At(0, 0) == 99 {
		t.Error("Head shares storage with the source panel")
	}
}
