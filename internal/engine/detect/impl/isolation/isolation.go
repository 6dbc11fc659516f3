// Package isolation implements the isolation-forest detection strategy:
// anomalies isolate in fewer random splits, so short average path lengths
// across the ensemble mark outliers.
package isolation

import (
	"log"
	"math"
	"math/rand/v2"
	"sync"

	"IoTSpectra/internal/engine/detect"
	"IoTSpectra/internal/engine/stat"
	"IoTSpectra/internal/model"
)

// StrategyName identifies this strategy in config, registry, and model blobs.
const StrategyName = "isolation"

func init() {
	detect.Register(StrategyName, func(p detect.Params) (model.Detector, error) {
		return New(p), nil
	})
}

// Node is one node of a fitted isolation tree, stored flat for serialization.
type Node struct {
	Feature int
	Split   float64
	Left    int
	Right   int
	Leaf    bool
	// Size is the subsample count that reached a leaf, used for the path
	// length correction term.
	Size int
}

// Detector is the isolation-forest strategy. Train and Load take the write
// lock; Detect and Evaluate are safe to call concurrently.
type Detector struct {
	mu sync.RWMutex

	params    detect.Params
	scaler    stat.Scaler
	trees     [][]Node
	threshold float64
	trained   bool
}

// New creates an untrained isolation-forest detector.
func New(p detect.Params) *Detector {
	return &Detector{params: p}
}

// Strategy returns the registered strategy identifier.
func (d *Detector) Strategy() string { return StrategyName }

// Train fits the ensemble on presumed-normal flows and calibrates the anomaly
// threshold so roughly a contamination-sized fraction of the training batch
// scores above it.
func (d *Detector) Train(flows []model.FlowRecord) error {
	vecs := detect.Vectorize(flows)
	if len(vecs) == 0 {
		return model.ErrEmptyTrainingSet
	}

	var scaler stat.Scaler
	if err := scaler.Fit(vecs); err != nil {
		return err
	}
	scaled := scaler.TransformAll(vecs)

	sampleSize := d.params.SampleSize
	if sampleSize <= 0 || sampleSize > len(scaled) {
		sampleSize = len(scaled)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize) + 1)))

	rng := rand.New(rand.NewPCG(d.params.Seed, 1))
	trees := make([][]Node, d.params.TreeCount)
	for t := range trees {
		sample := make([][]float64, sampleSize)
		for i := range sample {
			sample[i] = scaled[rng.IntN(len(scaled))]
		}
		b := &builder{rng: rng, heightLimit: heightLimit}
		b.build(sample, 0)
		trees[t] = b.nodes
	}

	scores := make([]float64, len(scaled))
	for i, vec := range scaled {
		scores[i] = ensembleScore(trees, vec, sampleSize)
	}
	threshold := stat.Percentile(scores, (1-d.params.Contamination)*100)
	flagged := 0
	for _, s := range scores {
		if s > threshold {
			flagged++
		}
	}

	d.mu.Lock()
	d.scaler = scaler
	d.trees = trees
	d.threshold = threshold
	d.trained = true
	d.mu.Unlock()

	log.Printf("Isolation detector trained: %d samples, %d trees, threshold %.4f, training anomaly ratio %.3f",
		len(vecs), len(trees), threshold, float64(flagged)/float64(len(scores)))
	return nil
}

// Detect scores a flow batch. Isolation scoring has no minimum batch size:
// every flow gets a score, down to a batch of one.
func (d *Detector) Detect(flows []model.FlowRecord) (*model.AnomalyResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.trained {
		return nil, model.ErrModelNotTrained
	}

	sampleSize := d.params.SampleSize
	if sampleSize <= 0 {
		sampleSize = 256
	}
	scaled := d.scaler.TransformAll(detect.Vectorize(flows))
	scores := make([]float64, len(scaled))
	for i, vec := range scaled {
		scores[i] = ensembleScore(d.trees, vec, sampleSize)
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

type forestState struct {
	Scaler     stat.Scaler
	Trees      [][]Node
	Threshold  float64
	SampleSize int
}

// Save persists the fitted ensemble under the strategy tag.
func (d *Detector) Save(path string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.trained {
		return model.ErrModelNotTrained
	}
	return detect.SaveModel(path, StrategyName, &forestState{
		Scaler:     d.scaler,
		Trees:      d.trees,
		Threshold:  d.threshold,
		SampleSize: d.params.SampleSize,
	})
}

// Load restores a fitted ensemble, replacing any current state.
func (d *Detector) Load(path string) error {
	var state forestState
	if err := detect.LoadModel(path, StrategyName, &state); err != nil {
		return err
	}
	d.mu.Lock()
	d.scaler = state.Scaler
	d.trees = state.Trees
	d.threshold = state.Threshold
	if state.SampleSize > 0 {
		d.params.SampleSize = state.SampleSize
	}
	d.trained = true
	d.mu.Unlock()
	return nil
}

type builder struct {
	rng         *rand.Rand
	heightLimit int
	nodes       []Node
}

// build appends the subtree isolating rows and returns its node index.
func (b *builder) build(rows [][]float64, depth int) int {
	if depth >= b.heightLimit || len(rows) <= 1 {
		return b.appendLeaf(len(rows))
	}

	dims := len(rows[0])
	feature := b.rng.IntN(dims)
	lo, hi := rows[0][feature], rows[0][feature]
	for _, r := range rows[1:] {
		if r[feature] < lo {
			lo = r[feature]
		}
		if r[feature] > hi {
			hi = r[feature]
		}
	}
	if lo == hi {
		return b.appendLeaf(len(rows))
	}
	split := lo + b.rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return b.appendLeaf(len(rows))
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: feature, Split: split})
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[idx].Left = l
	b.nodes[idx].Right = r
	return idx
}

func (b *builder) appendLeaf(size int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Size: size})
	return idx
}

// pathLength walks one tree and returns the corrected isolation depth.
func pathLength(nodes []Node, vec []float64) float64 {
	idx, depth := 0, 0
	for !nodes[idx].Leaf {
		n := nodes[idx]
		if vec[n.Feature] < n.Split {
			idx = n.Left
		} else {
			idx = n.Right
		}
		depth++
	}
	return float64(depth) + avgPathLength(nodes[idx].Size)
}

// ensembleScore computes the standard isolation score s = 2^(-E[h]/c(n)),
// in (0,1] with higher values more anomalous.
func ensembleScore(trees [][]Node, vec []float64, sampleSize int) float64 {
	if len(trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, nodes := range trees {
		sum += pathLength(nodes, vec)
	}
	mean := sum / float64(len(trees))
	c := avgPathLength(sampleSize)
	if c == 0 {
		return 0
	}
	return math.Pow(2, -mean/c)
}

const eulerMascheroni = 0.5772156649

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n items.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}
