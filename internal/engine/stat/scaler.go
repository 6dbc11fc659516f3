package stat

import (
	"fmt"
	"math"
)

// Scaler standardizes feature vectors to zero mean and unit variance using
// statistics fit at training time. Predict-time transforms reuse the fitted
// statistics; the scaler is never refit on inference data.
//
// Fields are exported so fitted parameters serialize as plain numeric arrays.
type Scaler struct {
	Means  []float64
	Stds   []float64
	Fitted bool
}

// Fit computes per-column mean and population std over the sample matrix.
func (s *Scaler) Fit(samples [][]float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("scaler: no samples to fit")
	}
	dims := len(samples[0])
	s.Means = make([]float64, dims)
	s.Stds = make([]float64, dims)

	col := make([]float64, len(samples))
	for j := 0; j < dims; j++ {
		for i, row := range samples {
			if len(row) != dims {
				return fmt.Errorf("scaler: ragged sample matrix: row %d has %d columns, want %d", i, len(row), dims)
			}
			col[i] = row[j]
		}
		s.Means[j] = Mean(col)
		s.Stds[j] = PopStd(col)
	}
	s.Fitted = true
	return nil
}

// Transform standardizes one vector in place-safe fashion, returning a new
// slice. Zero-variance columns pass through centered only.
func (s *Scaler) Transform(vec []float64) []float64 {
	out := make([]float64, len(vec))
	for j, v := range vec {
		if j >= len(s.Means) {
			break
		}
		v = Finite(v) - s.Means[j]
		if s.Stds[j] > 0 && !math.IsNaN(s.Stds[j]) {
			v /= s.Stds[j]
		}
		out[j] = Finite(v)
	}
	return out
}

// TransformAll standardizes every row of the matrix.
func (s *Scaler) TransformAll(samples [][]float64) [][]float64 {
	out := make([][]float64, len(samples))
	for i, row := range samples {
		out[i] = s.Transform(row)
	}
	return out
}
