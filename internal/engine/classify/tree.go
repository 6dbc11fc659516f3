package classify

import (
	"math"
	"math/rand/v2"
	"sort"
)

// TreeNode is one node of a fitted decision tree, stored as a flat array so
// the ensemble serializes as plain numeric data.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Leaf      bool
	// ClassCounts holds the training-sample class distribution at a leaf,
	// indexed by label position.
	ClassCounts []float64
}

type tree struct {
	Nodes []TreeNode
}

type treeParams struct {
	maxDepth   int
	minLeaf    int
	featureSub int // features sampled per split
	classCount int
}

// growTree fits a CART-style tree on the given rows (indices into samples)
// using Gini impurity and random feature subsampling.
func growTree(samples [][]float64, labels []int, rows []int, p treeParams, rng *rand.Rand) *tree {
	t := &tree{}
	t.build(samples, labels, rows, 0, p, rng)
	return t
}

// build appends the subtree for rows and returns its node index.
func (t *tree) build(samples [][]float64, labels []int, rows []int, depth int, p treeParams, rng *rand.Rand) int {
	counts := classCounts(labels, rows, p.classCount)

	if depth >= p.maxDepth || len(rows) < 2*p.minLeaf || isPure(counts) {
		return t.appendLeaf(counts)
	}

	feature, threshold, ok := bestSplit(samples, labels, rows, p, rng)
	if !ok {
		return t.appendLeaf(counts)
	}

	var left, right []int
	for _, r := range rows {
		if samples[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) < p.minLeaf || len(right) < p.minLeaf {
		return t.appendLeaf(counts)
	}

	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{Feature: feature, Threshold: threshold})
	l := t.build(samples, labels, left, depth+1, p, rng)
	r := t.build(samples, labels, right, depth+1, p, rng)
	t.Nodes[idx].Left = l
	t.Nodes[idx].Right = r
	return idx
}

func (t *tree) appendLeaf(counts []float64) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{Leaf: true, ClassCounts: counts})
	return idx
}

// classDistribution walks the tree for one vector and returns the normalized
// class distribution at the reached leaf.
func (t *tree) classDistribution(vec []float64) []float64 {
	idx := 0
	for !t.Nodes[idx].Leaf {
		n := t.Nodes[idx]
		if vec[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	counts := t.Nodes[idx].ClassCounts
	total := 0.0
	for _, c := range counts {
		total += c
	}
	dist := make([]float64, len(counts))
	if total == 0 {
		return dist
	}
	for i, c := range counts {
		dist[i] = c / total
	}
	return dist
}

func classCounts(labels []int, rows []int, classes int) []float64 {
	counts := make([]float64, classes)
	for _, r := range rows {
		counts[labels[r]]++
	}
	return counts
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func gini(counts []float64) float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}

// bestSplit searches a random feature subset for the threshold with the
// lowest weighted Gini impurity.
func bestSplit(samples [][]float64, labels []int, rows []int, p treeParams, rng *rand.Rand) (int, float64, bool) {
	dims := len(samples[rows[0]])
	perm := rng.Perm(dims)
	candidates := perm[:min(p.featureSub, dims)]

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	vals := make([]float64, len(rows))
	for _, f := range candidates {
		for i, r := range rows {
			vals[i] = samples[r][f]
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)

		for i := 1; i < len(sorted); i++ {
			if sorted[i] == sorted[i-1] {
				continue
			}
			thr := (sorted[i] + sorted[i-1]) / 2

			leftCounts := make([]float64, p.classCount)
			rightCounts := make([]float64, p.classCount)
			nl, nr := 0.0, 0.0
			for _, r := range rows {
				if samples[r][f] <= thr {
					leftCounts[labels[r]]++
					nl++
				} else {
					rightCounts[labels[r]]++
					nr++
				}
			}
			weighted := (nl*gini(leftCounts) + nr*gini(rightCounts)) / (nl + nr)
			if weighted < bestGini {
				bestGini = weighted
				bestFeature = f
				bestThreshold = thr
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
