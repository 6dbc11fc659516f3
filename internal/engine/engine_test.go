package engine

import (
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"IoTSpectra/internal/config"
	"IoTSpectra/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Engine.Classifier.NumTrees = 20
	cfg.Engine.Classifier.Seed = 5
	cfg.Engine.Classifier.ModelPath = filepath.Join(dir, "classifier.gob")
	cfg.Engine.Detector.Strategy = "isolation"
	cfg.Engine.Detector.NumTrees = 50
	cfg.Engine.Detector.ModelPath = filepath.Join(dir, "detector.gob")
	cfg.Engine.Profile.Backend = "memory"
	cfg.Engine.Profile.DeviationThreshold = 0.3
	return cfg
}

func cameraFlows(n int, seed uint64) []model.FlowRecord {
	rng := rand.New(rand.NewPCG(seed, 0))
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	flows := make([]model.FlowRecord, n)
	for i := range flows {
		flows[i] = model.FlowRecord{
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			SrcPort:     uint16(42000 + rng.IntN(200)),
			DstPort:     554,
			Protocol:    6,
			PacketCount: uint64(100 + rng.IntN(10)),
			ByteCount:   uint64(90000 + rng.IntN(5000)),
			Duration:    1,
		}
	}
	return flows
}

func labeledExamples() []model.LabeledExample {
	examples := make([]model.LabeledExample, 0, 40)
	for i := 0; i < 20; i++ {
		j := float64(i % 5)
		examples = append(examples, model.LabeledExample{
			Features: []float64{900 + j, 50, 1, 0.1, 0.2, 1, 90000 + j, 100},
			Label:    model.DeviceCamera,
		})
		examples = append(examples, model.LabeledExample{
			Features: []float64{60 + j, 5, 30, 2, 1.2, 1, 30, 0.4},
			Label:    model.DeviceThermostat,
		})
	}
	return examples
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Detector.Strategy = "quantum"
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error for unknown detector strategy")
	}
}

func TestFingerprintUntrainedClassifierDegrades(t *testing.T) {
	e := newTestEngine(t)

	report, err := e.Fingerprint("cam-01", cameraFlows(20, 1), nil)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if report.Classification != nil {
		t.Error("expected nil classification before training")
	}
	if !report.NewBaseline || report.Profile == nil {
		t.Error("first fingerprint must establish a baseline")
	}
	if report.Confidence < 0 || report.Confidence > 1 {
		t.Errorf("confidence out of bounds: %v", report.Confidence)
	}
}

func TestFingerprintAfterTraining(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.TrainClassifier(labeledExamples()); err != nil {
		t.Fatalf("TrainClassifier: %v", err)
	}

	report, err := e.Fingerprint("cam-01", cameraFlows(30, 2), nil)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if report.Classification == nil {
		t.Fatal("expected a classification after training")
	}
	if report.Classification.DeviceType != model.DeviceCamera {
		t.Errorf("DeviceType = %v, want camera", report.Classification.DeviceType)
	}

	// Second call for the same device must not re-create the baseline.
	again, err := e.Fingerprint("cam-01", cameraFlows(30, 3), nil)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if again.NewBaseline {
		t.Error("baseline must persist across fingerprint calls")
	}
}

func TestScanReportsAnomaliesAndDeviation(t *testing.T) {
	e := newTestEngine(t)
	if err := e.TrainDetector(cameraFlows(200, 4)); err != nil {
		t.Fatalf("TrainDetector: %v", err)
	}
	if _, err := e.Fingerprint("cam-01", cameraFlows(50, 5), nil); err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	report, err := e.Scan("cam-01", cameraFlows(40, 6))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.ScanID == "" {
		t.Error("expected a scan ID")
	}
	if report.Anomalies == nil || report.Anomalies.TotalSamples != 40 {
		t.Errorf("unexpected anomaly result: %+v", report.Anomalies)
	}
	if report.Deviation == nil || report.Deviation.Reason != "" {
		t.Errorf("expected a baseline-backed deviation report, got %+v", report.Deviation)
	}
}

func TestScanWithoutBaseline(t *testing.T) {
	e := newTestEngine(t)
	if err := e.TrainDetector(cameraFlows(150, 7)); err != nil {
		t.Fatalf("TrainDetector: %v", err)
	}

	report, err := e.Scan("ghost-device", cameraFlows(20, 8))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Deviation.DeviationDetected {
		t.Error("deviation must not be detected without a baseline")
	}
	if report.Deviation.Reason == "" {
		t.Error("expected a no-baseline reason")
	}
}

func TestScanBeforeDetectorTraining(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Scan("cam-01", cameraFlows(20, 9)); err == nil {
		t.Fatal("expected error scanning with an untrained detector")
	}
}

func TestRebaselineOverwrites(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Fingerprint("cam-01", cameraFlows(20, 10), nil); err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	before, _, err := e.Profile("cam-01")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}

	quiet := []model.FlowRecord{
		{Timestamp: time.Now(), DstPort: 123, Protocol: 17, PacketCount: 1, ByteCount: 76, Duration: 0.1},
		{Timestamp: time.Now().Add(time.Minute), DstPort: 123, Protocol: 17, PacketCount: 1, ByteCount: 76, Duration: 0.1},
	}
	after, err := e.Rebaseline("cam-01", quiet)
	if err != nil {
		t.Fatalf("Rebaseline: %v", err)
	}
	if after.BehavioralPatterns["bytes_per_second"] == before.BehavioralPatterns["bytes_per_second"] {
		t.Error("re-baseline must replace the stored profile")
	}
}

func TestSaveLoadModels(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.TrainClassifier(labeledExamples()); err != nil {
		t.Fatalf("TrainClassifier: %v", err)
	}
	if err := e.TrainDetector(cameraFlows(150, 11)); err != nil {
		t.Fatalf("TrainDetector: %v", err)
	}
	if err := e.SaveModels(); err != nil {
		t.Fatalf("SaveModels: %v", err)
	}

	restored, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := restored.LoadModels(); err != nil {
		t.Fatalf("LoadModels: %v", err)
	}

	report, err := restored.Fingerprint("cam-02", cameraFlows(30, 12), nil)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if report.Classification == nil {
		t.Fatal("restored engine must classify")
	}
	if _, err := restored.Scan("cam-02", cameraFlows(30, 13)); err != nil {
		t.Fatalf("Scan after load: %v", err)
	}
}
