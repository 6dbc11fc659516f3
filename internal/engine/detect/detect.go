// Package detect defines the anomaly-detection strategy registry and the
// per-flow vectorization shared by all strategies. Concrete strategies live
// under impl/ and register themselves at init time.
package detect

import (
	"fmt"
	"sort"

	"IoTSpectra/internal/engine/stat"
	"IoTSpectra/internal/model"
)

// FlowColumns is the fixed, ordered per-flow feature layout every strategy
// consumes. Distinct from the batch-level signature columns: these describe
// one flow, not one device window.
var FlowColumns = []string{
	"byte_count",
	"packet_count",
	"duration",
	"src_port",
	"dst_port",
	"protocol",
	"bytes_per_second",
	"bytes_per_packet",
}

// Params carries the tunables shared across strategies. Fields irrelevant to
// a given strategy are ignored by it.
type Params struct {
	Contamination float64
	TreeCount     int
	SampleSize    int
	WindowSize    int
	Seed          uint64
}

// DefaultParams returns the stock tuning used when config omits a value.
func DefaultParams() Params {
	return Params{
		Contamination: 0.1,
		TreeCount:     100,
		SampleSize:    256,
		WindowSize:    10,
		Seed:          42,
	}
}

// Factory builds one detector instance for its registered strategy.
type Factory func(p Params) (model.Detector, error)

var registry = make(map[string]Factory)

// Register adds a strategy factory. Called from impl package init functions;
// duplicate names are a programming error.
func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("detector strategy '%s' already registered", name))
	}
	registry[name] = factory
}

// New creates a detector for the named strategy.
func New(name string, p Params) (model.Detector, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", model.ErrUnsupportedStrategy, name)
	}
	return factory(p)
}

// Strategies lists the registered strategy names, sorted.
func Strategies() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open restores a persisted detector, dispatching on the strategy tag
// embedded in the blob. Unknown tags yield ErrUnsupportedStrategy.
func Open(path string, p Params) (model.Detector, error) {
	strategy, err := PeekStrategy(path)
	if err != nil {
		return nil, err
	}
	det, err := New(strategy, p)
	if err != nil {
		return nil, err
	}
	if err := det.Load(path); err != nil {
		return nil, err
	}
	return det, nil
}

// Vectorize maps each flow to its FlowColumns feature vector. Derived rates
// guard against zero denominators and every value is clamped finite.
func Vectorize(flows []model.FlowRecord) [][]float64 {
	vecs := make([][]float64, len(flows))
	for i, f := range flows {
		bytesPerSecond := 0.0
		if f.Duration > 0 {
			bytesPerSecond = float64(f.ByteCount) / f.Duration
		}
		bytesPerPacket := 0.0
		if f.PacketCount > 0 {
			bytesPerPacket = float64(f.ByteCount) / float64(f.PacketCount)
		}
		vec := []float64{
			float64(f.ByteCount),
			float64(f.PacketCount),
			f.Duration,
			float64(f.SrcPort),
			float64(f.DstPort),
			float64(f.Protocol),
			bytesPerSecond,
			bytesPerPacket,
		}
		for j := range vec {
			vec[j] = stat.Finite(vec[j])
		}
		vecs[i] = vec
	}
	return vecs
}

// EmptyResult is the uniform outcome for batches a strategy cannot score,
// such as sequence batches too short to form a single window.
func EmptyResult(strategy string, total int) *model.AnomalyResult {
	return &model.AnomalyResult{
		Strategy:     strategy,
		TotalSamples: total,
		Scores:       []float64{},
	}
}

// Score turns per-sample scores plus a threshold into a full result. A
// sample is anomalous when its score strictly exceeds the threshold.
func Score(strategy string, scores []float64, threshold float64) *model.AnomalyResult {
	res := &model.AnomalyResult{
		Strategy:     strategy,
		TotalSamples: len(scores),
		Scores:       scores,
	}
	for i, s := range scores {
		if s > threshold {
			res.AnomalyCount++
			res.AnomalyIndices = append(res.AnomalyIndices, i)
		}
	}
	if res.TotalSamples > 0 {
		res.AnomalyRatio = float64(res.AnomalyCount) / float64(res.TotalSamples)
	}
	return res
}

// Evaluate derives binary detection quality metrics from a detection result
// and ground-truth labels (true = anomalous).
func Evaluate(res *model.AnomalyResult, labels []bool) (*model.EvalReport, error) {
	if len(labels) != res.TotalSamples {
		return nil, fmt.Errorf("label count %d does not match sample count %d", len(labels), res.TotalSamples)
	}

	predicted := make(map[int]struct{}, len(res.AnomalyIndices))
	for _, idx := range res.AnomalyIndices {
		predicted[idx] = struct{}{}
	}

	var tp, fp, tn, fn int
	for i, actual := range labels {
		_, pred := predicted[i]
		switch {
		case pred && actual:
			tp++
		case pred && !actual:
			fp++
		case !pred && actual:
			fn++
		default:
			tn++
		}
	}

	report := &model.EvalReport{
		PredictedAnomalies: tp + fp,
		ActualAnomalies:    tp + fn,
	}
	if total := tp + fp + tn + fn; total > 0 {
		report.Accuracy = float64(tp+tn) / float64(total)
	}
	if tp+fp > 0 {
		report.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		report.Recall = float64(tp) / float64(tp+fn)
	}
	if report.Precision+report.Recall > 0 {
		report.F1 = 2 * report.Precision * report.Recall / (report.Precision + report.Recall)
	}
	return report, nil
}
