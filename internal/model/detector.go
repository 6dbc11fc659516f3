package model

// Detector scores flow batches for anomalous behavior. The strategy is fixed
// at construction; all strategies expose the same contract so callers remain
// strategy-agnostic.
type Detector interface {
	// Train fits the detector on a batch of presumed-normal flows.
	Train(flows []FlowRecord) error

	// Detect scores a flow batch against the fitted model. Returns
	// ErrModelNotTrained if no successful Train or Load preceded it.
	Detect(flows []FlowRecord) (*AnomalyResult, error)

	// Evaluate compares detection output against ground-truth labels
	// (true = anomalous).
	Evaluate(flows []FlowRecord, labels []bool) (*EvalReport, error)

	// Strategy returns the detector's registered strategy identifier.
	Strategy() string

	Save(path string) error
	Load(path string) error
}
