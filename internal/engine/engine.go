// Package engine wires the fingerprinting pipeline together: extraction,
// classification, baseline management, anomaly detection, and confidence
// aggregation behind one facade.
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"IoTSpectra/internal/config"
	"IoTSpectra/internal/engine/classify"
	"IoTSpectra/internal/engine/confidence"
	"IoTSpectra/internal/engine/detect"
	_ "IoTSpectra/internal/engine/detect/impl/isolation" // Registers isolation strategy
	_ "IoTSpectra/internal/engine/detect/impl/sequence"  // Registers sequence strategy
	"IoTSpectra/internal/engine/feature"
	"IoTSpectra/internal/engine/profile"
	"IoTSpectra/internal/metrics"
	"IoTSpectra/internal/model"
)

// FingerprintReport is the combined outcome of one fingerprint operation.
type FingerprintReport struct {
	DeviceID       string                      `json:"device_id"`
	Signature      *model.FingerprintSignature `json:"signature"`
	Classification *model.ClassificationResult `json:"classification,omitempty"`
	Confidence     float64                     `json:"confidence"`
	Profile        *model.DeviceProfile        `json:"profile"`
	// NewBaseline is true when this call established the device's first
	// baseline.
	NewBaseline bool `json:"new_baseline"`
}

// ScanReport is the combined outcome of one scan operation.
type ScanReport struct {
	ScanID    string                 `json:"scan_id"`
	DeviceID  string                 `json:"device_id"`
	Timestamp time.Time              `json:"timestamp"`
	Anomalies *model.AnomalyResult   `json:"anomalies"`
	Deviation *model.DeviationReport `json:"deviation"`
}

// Engine owns the pipeline components. Model mutation (train, load) is
// exclusive with concurrent fingerprint/scan calls; the components add their
// own finer-grained locking on top.
type Engine struct {
	mu sync.RWMutex

	extractor  *feature.Extractor
	classifier model.Classifier
	detector   model.Detector
	profiles   model.ProfileStore
	aggregator *confidence.Aggregator
	metrics    *metrics.Metrics

	deviationThreshold float64
	classifierPath     string
	detectorPath       string
}

// New assembles an engine from config. The profile backend and detector
// strategy are fixed for the engine's lifetime.
func New(cfg *config.Config, m *metrics.Metrics) (*Engine, error) {
	ecfg := cfg.Engine

	var opts []classify.Option
	if ecfg.Classifier.NumTrees > 0 {
		opts = append(opts, classify.WithTrees(ecfg.Classifier.NumTrees))
	}
	if ecfg.Classifier.MaxDepth > 0 {
		opts = append(opts, classify.WithMaxDepth(ecfg.Classifier.MaxDepth))
	}
	if ecfg.Classifier.Seed != 0 {
		opts = append(opts, classify.WithSeed(ecfg.Classifier.Seed))
	}

	detector, err := detect.New(ecfg.Detector.Strategy, detectorParams(ecfg.Detector))
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	var store model.ProfileStore
	switch ecfg.Profile.Backend {
	case "", "memory":
		store = profile.NewStore(ecfg.Profile.NumShards)
	case "redis":
		store, err = profile.NewRedisStore(ecfg.Profile.Redis.Addr, ecfg.Profile.Redis.Password, ecfg.Profile.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis profile store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown profile backend '%s'", ecfg.Profile.Backend)
	}

	threshold := ecfg.Profile.DeviationThreshold
	if threshold <= 0 {
		threshold = 0.3
	}

	log.Printf("Engine assembled: strategy '%s', profile backend '%s', deviation threshold %.2f",
		detector.Strategy(), ecfg.Profile.Backend, threshold)

	return &Engine{
		extractor:  feature.NewExtractor(),
		classifier: classify.NewForest(opts...),
		detector:   detector,
		profiles:   store,
		aggregator: confidence.New(confidence.Weights{
			DHCP:       ecfg.Confidence.DHCPWeight,
			TLS:        ecfg.Confidence.TLSWeight,
			HTTP:       ecfg.Confidence.HTTPWeight,
			Behavioral: ecfg.Confidence.BehavioralWeight,
		}),
		metrics:            m,
		deviationThreshold: threshold,
		classifierPath:     ecfg.Classifier.ModelPath,
		detectorPath:       ecfg.Detector.ModelPath,
	}, nil
}

func detectorParams(cfg config.DetectorConfig) detect.Params {
	p := detect.DefaultParams()
	if cfg.Contamination > 0 {
		p.Contamination = cfg.Contamination
	}
	if cfg.NumTrees > 0 {
		p.TreeCount = cfg.NumTrees
	}
	if cfg.SampleSize > 0 {
		p.SampleSize = cfg.SampleSize
	}
	if cfg.WindowSize > 0 {
		p.WindowSize = cfg.WindowSize
	}
	if cfg.Seed != 0 {
		p.Seed = cfg.Seed
	}
	return p
}

// Fingerprint extracts a signature from the batch, classifies the device,
// aggregates confidence, and establishes a baseline on first sight. An
// untrained classifier degrades to an unclassified report rather than
// failing the whole operation.
func (e *Engine) Fingerprint(deviceID string, flows []model.FlowRecord, hints *feature.IdentityHints) (*FingerprintReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	start := time.Now()
	sig := e.extractor.Extract(flows, hints)
	e.observeExtraction(sig, len(flows))

	cls, err := e.classifier.Classify(sig)
	if err != nil && !errors.Is(err, model.ErrModelNotTrained) {
		return nil, fmt.Errorf("classification failed for device '%s': %w", deviceID, err)
	}

	prof, existed, err := e.profiles.Get(deviceID)
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed for device '%s': %w", deviceID, err)
	}
	newBaseline := false
	if !existed {
		prof, err = e.profiles.CreateOrReplace(deviceID, sig)
		if err != nil {
			return nil, fmt.Errorf("baseline creation failed for device '%s': %w", deviceID, err)
		}
		newBaseline = true
	}

	if e.metrics != nil {
		e.metrics.Fingerprints.Inc()
		e.metrics.OpDuration.WithLabelValues("fingerprint").Observe(time.Since(start).Seconds())
	}

	return &FingerprintReport{
		DeviceID:       deviceID,
		Signature:      sig,
		Classification: cls,
		Confidence:     e.aggregator.Aggregate(sig, cls),
		Profile:        prof,
		NewBaseline:    newBaseline,
	}, nil
}

// Scan runs anomaly detection over the batch and scores it against the
// device's stored baseline.
func (e *Engine) Scan(deviceID string, flows []model.FlowRecord) (*ScanReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	start := time.Now()
	anomalies, err := e.detector.Detect(flows)
	if err != nil {
		return nil, fmt.Errorf("anomaly detection failed for device '%s': %w", deviceID, err)
	}

	sig := e.extractor.Extract(flows, nil)
	e.observeExtraction(sig, len(flows))
	deviation, err := e.profiles.ScoreDeviation(deviceID, sig, e.deviationThreshold)
	if err != nil {
		return nil, fmt.Errorf("deviation scoring failed for device '%s': %w", deviceID, err)
	}

	if e.metrics != nil {
		e.metrics.ScansCompleted.WithLabelValues(anomalies.Strategy).Inc()
		e.metrics.AnomaliesFlagged.WithLabelValues(anomalies.Strategy).Add(float64(anomalies.AnomalyCount))
		if deviation.DeviationDetected {
			e.metrics.DeviationsDetected.WithLabelValues(deviation.Severity).Inc()
		}
		e.metrics.OpDuration.WithLabelValues("scan").Observe(time.Since(start).Seconds())
	}

	return &ScanReport{
		ScanID:    uuid.NewString(),
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Anomalies: anomalies,
		Deviation: deviation,
	}, nil
}

// Rebaseline overwrites the device's behavioral baseline from the batch.
func (e *Engine) Rebaseline(deviceID string, flows []model.FlowRecord) (*model.DeviceProfile, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sig := e.extractor.Extract(flows, nil)
	e.observeExtraction(sig, len(flows))
	return e.profiles.CreateOrReplace(deviceID, sig)
}

// Profile returns the stored baseline for a device.
func (e *Engine) Profile(deviceID string) (*model.DeviceProfile, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profiles.Get(deviceID)
}

// TrainClassifier fits the device classifier on labeled examples.
func (e *Engine) TrainClassifier(examples []model.LabeledExample) (*model.TrainingSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classifier.Train(examples)
}

// TrainDetector fits the anomaly detector on presumed-normal flows.
func (e *Engine) TrainDetector(flows []model.FlowRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detector.Train(flows)
}

// SaveModels persists both fitted models to their configured paths.
func (e *Engine) SaveModels() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.classifier.Save(e.classifierPath); err != nil {
		return fmt.Errorf("failed to save classifier: %w", err)
	}
	if err := e.detector.Save(e.detectorPath); err != nil {
		return fmt.Errorf("failed to save detector: %w", err)
	}
	return nil
}

// LoadModels restores both models from their configured paths.
func (e *Engine) LoadModels() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.classifier.Load(e.classifierPath); err != nil {
		return fmt.Errorf("failed to load classifier: %w", err)
	}
	if err := e.detector.Load(e.detectorPath); err != nil {
		return fmt.Errorf("failed to load detector: %w", err)
	}
	log.Printf("Models loaded: classifier '%s', detector '%s'", e.classifierPath, e.detectorPath)
	return nil
}

// Detector exposes the engine's detector strategy identifier.
func (e *Engine) Detector() string {
	return e.detector.Strategy()
}

func (e *Engine) observeExtraction(sig *model.FingerprintSignature, flowCount int) {
	if e.metrics == nil {
		return
	}
	e.metrics.FlowsIngested.WithLabelValues("engine").Add(float64(flowCount))
	e.metrics.ExtractionWarnings.Add(float64(len(sig.Warnings)))
}
