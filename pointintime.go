package acm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// DefaultMinObservations is the smallest window used for point-in-time
// estimates, about one year of business days.
const DefaultMinObservations = 252

// PointInTimeOptions configures PointInTime.
type PointInTimeOptions struct {
	// Smallest number of curve observations in a window (default 252)
	MinObservations int
	// Number of windows estimated at once (default runtime.NumCPU())
	Workers int
}

// PointInTimeResult holds, for every date, the estimate that was available
// using only data up to that date.
type PointInTimeResult struct {
	TermPremium     *YieldPanel
	ExpectedReturns *YieldPanel
	// Windows that could not be estimated, by date
	Skipped map[time.Time]error
}

// PointInTime re-estimates the model on every expanding window of the curve
// with at least MinObservations rows and keeps the last term premium and
// expected return of each window.
//
// Windows are independent, so they are estimated concurrently. A window whose
// estimation fails with ErrInsufficientHistory is recorded in Skipped; any
// other error stops the run.
func (e *Estimator) PointInTime(ctx context.Context, curve *YieldPanel, spec ModelSpec, opts PointInTimeOptions) (*PointInTimeResult, error) {
	log := e.logger()

	if err := curve.Validate(); err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}
	if opts.MinObservations <= 0 {
		opts.MinObservations = DefaultMinObservations
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	T, N := curve.Dims()
	if T < opts.MinObservations {
		return nil, fmt.Errorf("%w: %d observations, need at least %d",
			ErrInsufficientHistory, T, opts.MinObservations)
	}
	// Windows must resample the curve themselves
	spec.Monthly = nil

	start := opts.MinObservations - 1
	windows := T - start

	type windowResult struct {
		tp  []float64
		er  []float64
		err error
	}
	results := make([]windowResult, windows)

	// Each window writes only its own slot, so results needs no lock
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for w := 0; w < windows; w++ {
		w := w
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			window := curve.Head(start + w + 1)
			model, err := e.Estimate(window, spec)
			if err != nil {
				if errors.Is(err, ErrInsufficientHistory) {
					results[w].err = err
					return nil
				}
				return fmt.Errorf("window ending %s: %w", window.Dates[len(window.Dates)-1].Format(time.DateOnly), err)
			}

			tp := model.Curves.TermPremium
			er := model.ExpectedReturns.HighFreq
			lastTP, _ := tp.Dims()
			lastER, _ := er.Dims()
			results[w].tp = mat.Row(nil, lastTP-1, tp.Y)
			results[w].er = mat.Row(nil, lastER-1, er.Y)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Collect the estimated windows in date order
	var (
		dates   []time.Time
		tpRows  [][]float64
		erRows  [][]float64
		skipped = make(map[time.Time]error)
	)
	for w, res := range results {
		date := curve.Dates[start+w]
		if res.err != nil {
			skipped[date] = res.err
			continue
		}
		dates = append(dates, date)
		tpRows = append(tpRows, res.tp)
		erRows = append(erRows, res.er)
	}

	log.Info("point-in-time estimation done",
		slog.Int("windows", windows),
		slog.Int("estimated", len(dates)),
		slog.Int("skipped", len(skipped)),
	)

	if len(dates) == 0 {
		return &PointInTimeResult{Skipped: skipped}, nil
	}

	maturities := make([]int, N)
	for j := range maturities {
		maturities[j] = j + 1
	}
	erMaturities := spec.SelectedMaturities
	if len(erMaturities) == 0 {
		erMaturities = maturities[:N-1]
	}

	return &PointInTimeResult{
		TermPremium:     &YieldPanel{Dates: dates, Maturities: maturities, Y: stackRows(tpRows)},
		ExpectedReturns: &YieldPanel{Dates: dates, Maturities: append([]int(nil), erMaturities...), Y: stackRows(erRows)},
		Skipped:         skipped,
	}, nil
}

func stackRows(rows [][]float64) *mat.Dense {
	out := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		out.SetRow(i, r)
	}
	return out
}
