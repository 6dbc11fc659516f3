package model

// LabeledExample pairs an extracted feature vector with its known device type.
type LabeledExample struct {
	Features []float64
	Label    DeviceType
}

// Classifier maps a feature vector to a device-type classification.
// Implementations must treat fitted parameters as read-only after Train/Load
// so concurrent Classify calls are safe.
type Classifier interface {
	Train(examples []LabeledExample) (*TrainingSummary, error)
	Classify(sig *FingerprintSignature) (*ClassificationResult, error)
	Save(path string) error
	Load(path string) error
}
