package acm

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadYieldCSV(t *testing.T) {
	input := `date,1m,2m,3m,4m
2020-02-28,0.011,0.012,0.013,0.014
2020-01-31,0.010,0.011,0.012,0.013

2020-03-31,0.012,,0.014,0.015
2020-04-30,0.013,0.014,0.015,0.016
`
	p, err := ReadYieldCSV(strings.NewReader(input), 3)
	if err != nil {
		t.Fatalf("ReadYieldCSV: %v", err)
	}

	T, N := p.Dims()
	if T != 3 || N != 3 {
		t.Fatalf("dims: got %dx%d, want 3x3", T, N)
	}

	wantDates := []string{"2020-01-31", "2020-02-28", "2020-04-30"}
	for i, want := range wantDates {
		if got := p.Dates[i].Format(time.DateOnly); got != want {
			t.Errorf("Test %d: date got %s, want %s", i, got, want)
		}
	}
	if p.Y.At(0, 0) != 0.010 || p.Y.At(2, 2) != 0.015 {
		t.Errorf("values: got %v and %v", p.Y.At(0, 0), p.Y.At(2, 2))
	}
}

func TestReadYieldCSVErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"date,1m,3m\n2020-01-31,0.01,0.02\n", ErrInvalidPanel},
		{"date,1m,ten\n2020-01-31,0.01,0.02\n", ErrInvalidPanel},
		{"date\n2020-01-31\n", ErrInvalidPanel},
		{"date,1m\n2020-01-31,\n", ErrInvalidPanel},
		{"date,1m\n2020-01-31,0.01\n2020-01-31,0.02\n", ErrInvalidPanel},
	}
	for i, test := range tests {
		if _, err := ReadYieldCSV(strings.NewReader(test.input), 0); !errors.Is(err, test.want) {
			t.Errorf("Test %d: got %v, want %v", i, err, test.want)
		}
	}

	if _, err := ReadYieldCSV(strings.NewReader("date,1m\n31/01/2020,0.01\n"), 0); err == nil {
		t.Error("unparseable date should fail")
	}
	if _, err := ReadYieldCSV(strings.NewReader("date,1m\n2020-01-31,abc\n"), 0); err == nil {
		t.Error("unparseable value should fail")
	}
}

func TestWriteYieldCSV(t *testing.T) {
	p := monthlyCurve(90, 5, 4)
	path := filepath.Join(t.TempDir(), "curve.csv")

	if err := WriteYieldCSV(path, p); err != nil {
		t.Fatalf("WriteYieldCSV: %v", err)
	}
	back, err := LoadYieldCSV(path, 0)
	if err != nil {
		t.Fatalf("LoadYieldCSV: %v", err)
	}
	if !matricesAlmostEqual(back.Y, p.Y, 0) {
		t.Error("values changed when written and read back")
	}
	for i := range p.Dates {
		if !back.Dates[i].Equal(p.Dates[i]) {
			t.Errorf("Test %d: date got %v, want %v", i, back.Dates[i], p.Dates[i])
		}
	}

	if _, err := LoadYieldCSV(filepath.Join(t.TempDir(), "missing.csv"), 0); err == nil {
		t.Error("loading a missing file should fail")
	}
}

func TestSummary(t *testing.T) {
	var est Estimator
	m, err := est.Estimate(monthlyCurve(91, 30, 10), ModelSpec{Factors: 2})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	m.Summary(&buf)
	out := buf.String()
	for _, want := range []string{"Number of factors (K):     2", "PC 1", "PC 2", "Price of risk", "z-statistics of beta"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary does not contain %q", want)
		}
	}

	fc, err := m.ForwardCurve(nil)
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	PrintForwardCurve(&buf, fc)
	if lines := strings.Count(buf.String(), "\n"); lines != 13 {
		t.Errorf("forward curve table: got %d lines, want 13", lines)
	}
}
