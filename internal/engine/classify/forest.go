// Package classify implements the supervised device classifier: a random
// forest over standardized behavioral feature vectors, plus rule-based vendor
// inference from DHCP/hostname/HTTP identity signals.
package classify

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"sync"

	"IoTSpectra/internal/engine/stat"
	"IoTSpectra/internal/model"
)

const (
	defaultTreeCount = 100
	defaultMaxDepth  = 10
	defaultMinLeaf   = 1
)

// Forest is a random-forest device classifier implementing model.Classifier.
// Training and loading mutate shared state and take the write lock; Classify
// takes the read lock, so concurrent classification is safe.
type Forest struct {
	mu sync.RWMutex

	trees   []*tree
	scaler  stat.Scaler
	labels  []model.DeviceType
	trained bool

	treeCount int
	maxDepth  int
	seed      uint64
}

// Option tweaks forest construction.
type Option func(*Forest)

// WithTrees overrides the ensemble size.
func WithTrees(n int) Option { return func(f *Forest) { f.treeCount = n } }

// WithMaxDepth overrides the per-tree depth limit.
func WithMaxDepth(d int) Option { return func(f *Forest) { f.maxDepth = d } }

// WithSeed fixes the RNG seed so training runs are reproducible.
func WithSeed(s uint64) Option { return func(f *Forest) { f.seed = s } }

// NewForest creates an untrained classifier.
func NewForest(opts ...Option) *Forest {
	f := &Forest{
		treeCount: defaultTreeCount,
		maxDepth:  defaultMaxDepth,
		seed:      42,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Train fits the scaler and tree ensemble on labeled feature vectors. Vectors
// shorter than the fixed column set are zero-padded; the scaler statistics
// fitted here are reused verbatim at classify time.
func (f *Forest) Train(examples []model.LabeledExample) (*model.TrainingSummary, error) {
	if len(examples) == 0 {
		return nil, model.ErrEmptyTrainingSet
	}

	dims := len(model.FeatureColumns)
	samples := make([][]float64, len(examples))
	labelSet := make(map[model.DeviceType]struct{})
	for i, ex := range examples {
		samples[i] = padVector(ex.Features, dims)
		labelSet[ex.Label] = struct{}{}
	}

	labels := make([]model.DeviceType, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sortLabels(labels)
	labelIdx := make(map[model.DeviceType]int, len(labels))
	for i, l := range labels {
		labelIdx[l] = i
	}
	y := make([]int, len(examples))
	for i, ex := range examples {
		y[i] = labelIdx[ex.Label]
	}

	var scaler stat.Scaler
	if err := scaler.Fit(samples); err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	scaled := scaler.TransformAll(samples)

	rng := rand.New(rand.NewPCG(f.seed, 0))
	params := treeParams{
		maxDepth:   f.maxDepth,
		minLeaf:    defaultMinLeaf,
		featureSub: max(1, int(math.Sqrt(float64(dims)))),
		classCount: len(labels),
	}

	trees := make([]*tree, f.treeCount)
	for t := 0; t < f.treeCount; t++ {
		// Bootstrap sample with replacement.
		rows := make([]int, len(scaled))
		for i := range rows {
			rows[i] = rng.IntN(len(scaled))
		}
		trees[t] = growTree(scaled, y, rows, params, rng)
	}

	f.mu.Lock()
	f.trees = trees
	f.scaler = scaler
	f.labels = labels
	f.trained = true
	f.mu.Unlock()

	correct := 0
	for i, row := range scaled {
		if argmax(f.distribution(row)) == y[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(scaled))
	log.Printf("Device classifier trained: %d samples, %d classes, accuracy %.3f", len(examples), len(labels), accuracy)

	return &model.TrainingSummary{
		Accuracy:     accuracy,
		SampleCount:  len(examples),
		FeatureCount: dims,
		Labels:       labels,
	}, nil
}

// Classify maps a signature to the arg-max device type with its full
// posterior, vendor inference, and contributing-factor weights.
func (f *Forest) Classify(sig *model.FingerprintSignature) (*model.ClassificationResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, model.ErrModelNotTrained
	}

	vec := f.scaler.Transform(padVector(sig.FeatureVector(), len(model.FeatureColumns)))
	dist := f.distribution(vec)

	probs := make(map[model.DeviceType]float64, len(f.labels))
	for i, l := range f.labels {
		probs[l] = stat.Clamp01(dist[i])
	}
	best := argmax(dist)
	deviceType := f.labels[best]

	return &model.ClassificationResult{
		DeviceType:          deviceType,
		Vendor:              InferVendor(sig, deviceType),
		Probabilities:       probs,
		Confidence:          stat.Clamp01(dist[best]),
		ContributingFactors: contributingFactors(sig),
	}, nil
}

// distribution averages the leaf class distributions across the ensemble.
// Callers must hold at least the read lock.
func (f *Forest) distribution(vec []float64) []float64 {
	sum := make([]float64, len(f.labels))
	for _, t := range f.trees {
		for i, p := range t.classDistribution(vec) {
			sum[i] += p
		}
	}
	total := 0.0
	for _, v := range sum {
		total += v
	}
	if total == 0 {
		// Untouched leaves: fall back to a uniform posterior.
		for i := range sum {
			sum[i] = 1 / float64(len(sum))
		}
		return sum
	}
	for i := range sum {
		sum[i] /= total
	}
	return sum
}

// contributingFactors assigns normalized weights to the identity signals
// present on the signature. The weights always sum to 1.
func contributingFactors(sig *model.FingerprintSignature) map[string]float64 {
	raw := map[string]float64{"ml_posterior": 0.2, "behavioral": 0.2}
	if len(sig.DHCPOptions) > 0 || sig.DHCPVendorClass != "" {
		raw["dhcp"] = 0.3
	}
	if sig.TLSJA3 != "" {
		raw["tls"] = 0.25
	}
	if sig.HTTPUserAgent != "" {
		raw["http"] = 0.25
	}
	total := 0.0
	for _, w := range raw {
		total += w
	}
	for k := range raw {
		raw[k] /= total
	}
	return raw
}

func padVector(vec []float64, dims int) []float64 {
	out := make([]float64, dims)
	copy(out, vec)
	for i := range out {
		out[i] = stat.Finite(out[i])
	}
	return out
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func sortLabels(labels []model.DeviceType) {
	for i := 1; i < len(labels); i++ {
		for j := i; j > 0 && labels[j] < labels[j-1]; j-- {
			labels[j], labels[j-1] = labels[j-1], labels[j]
		}
	}
}
