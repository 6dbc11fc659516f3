// Package sequence implements the sequence-reconstruction detection strategy:
// a per-feature autoregressive model predicts each sample from its preceding
// window, and samples whose reconstruction error exceeds a calibrated
// percentile of the training error are flagged.
package sequence

import (
	"fmt"
	"log"
	"sync"

	"IoTSpectra/internal/engine/detect"
	"IoTSpectra/internal/engine/stat"
	"IoTSpectra/internal/model"
)

// StrategyName identifies this strategy in config, registry, and model blobs.
const StrategyName = "sequence"

// thresholdPercentile calibrates the anomaly cutoff from training errors.
const thresholdPercentile = 95

func init() {
	detect.Register(StrategyName, func(p detect.Params) (model.Detector, error) {
		return New(p), nil
	})
}

// Detector is the sequence strategy. Train and Load take the write lock;
// Detect and Evaluate are safe to call concurrently.
type Detector struct {
	mu sync.RWMutex

	params detect.Params
	scaler stat.Scaler
	// coeffs holds one AR model per feature: window weights followed by a
	// bias term.
	coeffs    [][]float64
	window    int
	threshold float64
	trained   bool
}

// New creates an untrained sequence detector.
func New(p detect.Params) *Detector {
	if p.WindowSize <= 0 {
		p.WindowSize = detect.DefaultParams().WindowSize
	}
	return &Detector{params: p, window: p.WindowSize}
}

// Strategy returns the registered strategy identifier.
func (d *Detector) Strategy() string { return StrategyName }

// Train fits one autoregressive predictor per flow feature on the ordered
// training batch and sets the threshold at the 95th percentile of the
// training reconstruction error.
func (d *Detector) Train(flows []model.FlowRecord) error {
	vecs := detect.Vectorize(flows)
	if len(vecs) == 0 {
		return model.ErrEmptyTrainingSet
	}
	if len(vecs) <= d.window {
		return fmt.Errorf("sequence training needs more than %d ordered samples, got %d", d.window, len(vecs))
	}

	var scaler stat.Scaler
	if err := scaler.Fit(vecs); err != nil {
		return err
	}
	scaled := scaler.TransformAll(vecs)

	dims := len(scaled[0])
	coeffs := make([][]float64, dims)
	for j := 0; j < dims; j++ {
		coeffs[j] = fitAR(scaled, j, d.window)
	}

	errs := reconstructionErrors(scaled, coeffs, d.window)
	threshold := stat.Percentile(errs, thresholdPercentile)

	d.mu.Lock()
	d.scaler = scaler
	d.coeffs = coeffs
	d.threshold = threshold
	d.trained = true
	d.mu.Unlock()

	log.Printf("Sequence detector trained: %d samples, window %d, threshold %.4f", len(vecs), d.window, threshold)
	return nil
}

// Detect scores a flow batch. Samples inside the initial warm-up window score
// zero; batches too short to form a single window return an empty result.
func (d *Detector) Detect(flows []model.FlowRecord) (*model.AnomalyResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.trained {
		return nil, model.ErrModelNotTrained
	}
	if len(flows) <= d.window {
		return detect.EmptyResult(StrategyName, len(flows)), nil
	}

	scaled := d.scaler.TransformAll(detect.Vectorize(flows))
	scores := make([]float64, len(scaled))
	if len(scaled) > d.window {
		for t, e := range reconstructionErrors(scaled, d.coeffs, d.window) {
			scores[t+d.window] = e
		}
	}
	return detect.Score(StrategyName, scores, d.threshold), nil
}

// Evaluate runs detection and compares it against ground-truth labels.
func (d *Detector) Evaluate(flows []model.FlowRecord, labels []bool) (*model.EvalReport, error) {
	res, err := d.Detect(flows)
	if err != nil {
		return nil, err
	}
	return detect.Evaluate(res, labels)
}

type sequenceState struct {
	Scaler    stat.Scaler
	Coeffs    [][]float64
	Window    int
	Threshold float64
}

// Save persists the fitted predictors under the strategy tag.
func (d *Detector) Save(path string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.trained {
		return model.ErrModelNotTrained
	}
	return detect.SaveModel(path, StrategyName, &sequenceState{
		Scaler:    d.scaler,
		Coeffs:    d.coeffs,
		Window:    d.window,
		Threshold: d.threshold,
	})
}

// Load restores fitted predictors, replacing any current state.
func (d *Detector) Load(path string) error {
	var state sequenceState
	if err := detect.LoadModel(path, StrategyName, &state); err != nil {
		return err
	}
	d.mu.Lock()
	d.scaler = state.Scaler
	d.coeffs = state.Coeffs
	d.window = state.Window
	d.threshold = state.Threshold
	d.trained = true
	d.mu.Unlock()
	return nil
}

// fitAR solves the least-squares AR coefficients for feature j: window
// lagged values plus a bias term, via the normal equations. A singular
// system falls back to a constant mean predictor.
func fitAR(samples [][]float64, j, window int) []float64 {
	p := window + 1 // lags plus bias
	ata := make([][]float64, p)
	for i := range ata {
		ata[i] = make([]float64, p)
	}
	atb := make([]float64, p)

	row := make([]float64, p)
	for t := window; t < len(samples); t++ {
		for k := 0; k < window; k++ {
			row[k] = samples[t-window+k][j]
		}
		row[window] = 1
		y := samples[t][j]
		for a := 0; a < p; a++ {
			for b := 0; b < p; b++ {
				ata[a][b] += row[a] * row[b]
			}
			atb[a] += row[a] * y
		}
	}

	coef, ok := stat.SolveLinear(ata, atb)
	if !ok {
		coef = make([]float64, p)
		sum := 0.0
		for t := window; t < len(samples); t++ {
			sum += samples[t][j]
		}
		coef[window] = sum / float64(len(samples)-window)
	}
	return coef
}

// reconstructionErrors returns the mean squared prediction error for each
// position t >= window, indexed from zero.
func reconstructionErrors(samples [][]float64, coeffs [][]float64, window int) []float64 {
	errs := make([]float64, 0, len(samples)-window)
	for t := window; t < len(samples); t++ {
		mse := 0.0
		for j, coef := range coeffs {
			pred := coef[window]
			for k := 0; k < window; k++ {
				pred += coef[k] * samples[t-window+k][j]
			}
			diff := samples[t][j] - pred
			mse += diff * diff
		}
		errs = append(errs, mse/float64(len(coeffs)))
	}
	return errs
}
