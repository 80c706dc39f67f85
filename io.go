package acm

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

// LoadYieldCSV loads a yield curve from a CSV file. See ReadYieldCSV.
func LoadYieldCSV(path string, maxMaturity int) (*YieldPanel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	p, err := ReadYieldCSV(f, maxMaturity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ReadYieldCSV reads a date-indexed yield curve. The header is a date column
// followed by maturities in months written as "12m" or "12". Columns beyond
// maxMaturity (if > 0) are ignored, rows with a missing value are dropped and
// rows are sorted by date.
func ReadYieldCSV(r io.Reader, maxMaturity int) (*YieldPanel, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	// 1. Header row
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: header needs a date column and at least one maturity", ErrInvalidPanel)
	}

	var maturities []int
	for j, h := range header[1:] {
		m, err := parseMaturity(h)
		if err != nil {
			return nil, fmt.Errorf("%w: column %d: %v", ErrInvalidPanel, j+2, err)
		}
		if maxMaturity > 0 && m > maxMaturity {
			break
		}
		maturities = append(maturities, m)
	}
	N := len(maturities)
	if N == 0 {
		return nil, fmt.Errorf("%w: no maturities up to %dm", ErrInvalidPanel, maxMaturity)
	}

	type row struct {
		date   time.Time
		values []float64
	}
	var rows []row

	// 2. Data rows
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		if len(record) < N+1 {
			return nil, fmt.Errorf("row %d: expected at least %d columns, got %d", line, N+1, len(record))
		}

		date, err := parseDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		values, complete, err := parseValues(record[1 : N+1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if !complete {
			continue
		}
		rows = append(rows, row{date: date, values: values})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no complete data rows", ErrInvalidPanel)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	// 3. Build the panel
	dates := make([]time.Time, len(rows))
	data := make([]float64, 0, len(rows)*N)
	for i, obs := range rows {
		dates[i] = obs.date
		data = append(data, obs.values...)
	}

	return NewYieldPanel(dates, maturities, mat.NewDense(len(rows), N, data))
}

func parseMaturity(s string) (int, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "m")
	m, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("maturity %q is not a number of months", s)
	}
	return m, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateOnly, time.DateTime, time.RFC3339} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

// parseValues parses one row of yields. complete is false when a value is
// missing.
func parseValues(fields []string) ([]float64, bool, error) {
	values := make([]float64, len(fields))
	for j, s := range fields {
		s = strings.TrimSpace(s)
		if s == "" || s == "." || strings.EqualFold(s, "nan") {
			return nil, false, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false, fmt.Errorf("parse float in column %d (%q): %w", j+2, s, err)
		}
		values[j] = v
	}
	return values, true, nil
}

// WriteYieldCSV writes a panel with a date column and one column per maturity.
func WriteYieldCSV(path string, p *YieldPanel) error {
	header := make([]string, len(p.Maturities))
	for j, m := range p.Maturities {
		header[j] = fmt.Sprintf("%dm", m)
	}
	return writeDatedCSV(path, p.Dates, header, p.Y)
}

// WriteFactorCSV writes a factor panel with columns PC 1..PC K.
func WriteFactorCSV(path string, f *FactorPanel) error {
	_, K := f.X.Dims()
	return writeDatedCSV(path, f.Dates, FactorNames(K), f.X)
}

func writeDatedCSV(path string, dates []time.Time, header []string, values mat.Matrix) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(append([]string{"date"}, header...)); err != nil {
		return err
	}

	rows, cols := values.Dims()
	for i := 0; i < rows; i++ {
		record := make([]string, cols+1)
		record[0] = dates[i].Format(time.DateOnly)
		for j := 0; j < cols; j++ {
			record[j+1] = strconv.FormatFloat(values.At(i, j), 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// Summary prints the estimated parameters.
func (m *Model) Summary(w io.Writer) {
	if m == nil {
		fmt.Fprintln(w, "ACM model is nil")
		return
	}
	fmt.Fprintln(w, "         ACM Term Structure Model Summary      ")

	T, N := m.Curve.Dims()
	Tm, _ := m.Monthly.Dims()
	K := m.NumFactors()

	fmt.Fprintf(w, "Number of factors (K):     %d\n", K)
	fmt.Fprintf(w, "Maturities (N):            %d\n", N)
	fmt.Fprintf(w, "Observations (T):          %d\n", T)
	fmt.Fprintf(w, "Monthly observations:      %d\n", Tm)
	fmt.Fprintf(w, "Regression maturities:     %v\n", m.Regression.Maturities)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Variance explained:")
	for i, name := range FactorNames(K) {
		fmt.Fprintf(w, "  %-6s %8.4f\n", name, m.Factors.Explained[i])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "VAR transition matrix phi:")
	fmt.Fprintf(w, "%v\n\n", mat.Formatted(m.VAR.Phi, mat.Prefix("  ")))

	fmt.Fprintln(w, "Innovation covariance Sigma:")
	fmt.Fprintf(w, "%v\n\n", mat.Formatted(m.VAR.Sigma, mat.Prefix("  ")))

	fmt.Fprintf(w, "Residual variance sigma2:  %g\n\n", m.Regression.Sigma2)

	fmt.Fprintln(w, "Price of risk [lambda0 | lambda1]:")
	fmt.Fprintf(w, "%v\n\n", mat.Formatted(m.PriceOfRisk.Lambda, mat.Prefix("  ")))

	fmt.Fprintln(w, "z-statistics of Lambda:")
	fmt.Fprintf(w, "%v\n\n", mat.Formatted(m.Inference.ZLambda, mat.Prefix("  ")))

	fmt.Fprintln(w, "z-statistics of beta (maturity x factor):")
	fmt.Fprintf(w, "%v\n\n", mat.Formatted(m.Inference.ZBeta, mat.Prefix("  ")))

	fmt.Fprintln(w, "=======================================")
}

// PrintForwardCurve prints the forward curves as a table.
func PrintForwardCurve(w io.Writer, fc *ForwardCurve) {
	fmt.Fprintf(w, "\n=== Forward curves on %s ===\n", fc.Date.Format(time.DateOnly))
	fmt.Fprintf(w, "%8s%14s%14s%14s\n", "Maturity", "Observed", "Model Implied", "Risk-Neutral")
	for i, m := range fc.Maturities {
		fmt.Fprintf(w, "%7dm%14.6f%14.6f%14.6f\n", m, fc.Observed[i], fc.ModelImplied[i], fc.RiskNeutral[i])
	}
}
