package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/mat"

	"github.com/gusamarante/acm"
	"github.com/gusamarante/acm/internal/config"
)

// manifest records what a run read, what it estimated and what it wrote.
type manifest struct {
	Version     string    `toml:"version"`
	Command     string    `toml:"command"`
	GeneratedAt time.Time `toml:"generated_at"`
	Files       []string  `toml:"files"`

	Input     config.InputConfig `toml:"input"`
	Model     config.ModelConfig `toml:"model"`
	Sample    sampleInfo         `toml:"sample"`
	Estimates *estimateInfo      `toml:"estimates,omitempty"`
	Skipped   int                `toml:"skipped_windows,omitempty"`
}

type sampleInfo struct {
	Start        time.Time `toml:"start"`
	End          time.Time `toml:"end"`
	Observations int       `toml:"observations"`
	Maturities   int       `toml:"maturities"`
}

type estimateInfo struct {
	Explained []float64   `toml:"explained"`
	Sigma2    float64     `toml:"sigma2"`
	Delta0    float64     `toml:"delta0"`
	Phi       [][]float64 `toml:"phi"`
	Lambda    [][]float64 `toml:"lambda"`
}

func newManifest(command string, curve *acm.YieldPanel) *manifest {
	T, N := curve.Dims()
	return &manifest{
		Version:     version,
		Command:     command,
		GeneratedAt: time.Now().UTC(),
		Input:       cfg.Input,
		Model:       cfg.Model,
		Sample: sampleInfo{
			Start:        curve.Dates[0],
			End:          curve.Dates[T-1],
			Observations: T,
			Maturities:   N,
		},
	}
}

func (m *manifest) withModel(model *acm.Model) *manifest {
	m.Estimates = &estimateInfo{
		Explained: model.Factors.Explained,
		Sigma2:    model.Regression.Sigma2,
		Delta0:    model.Affine.Delta0,
		Phi:       rows(model.VAR.Phi),
		Lambda:    rows(model.PriceOfRisk.Lambda),
	}
	return m
}

// write encodes the manifest as TOML into dir/manifest.toml.
func (m *manifest) write(dir string) error {
	path := filepath.Join(dir, "manifest.toml")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func rows(a mat.Matrix) [][]float64 {
	r, _ := a.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, a)
	}
	return out
}
