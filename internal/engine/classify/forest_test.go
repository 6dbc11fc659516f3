package classify

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"IoTSpectra/internal/model"
)

// trainingSet builds a linearly separable corpus: cameras stream large
// packets at high rates, thermostats send small infrequent beacons.
func trainingSet(perClass int) []model.LabeledExample {
	examples := make([]model.LabeledExample, 0, 2*perClass)
	for i := 0; i < perClass; i++ {
		jitter := float64(i % 7)
		examples = append(examples, model.LabeledExample{
			Features: []float64{900 + jitter, 120, 0.05, 0.01, 0.5, 2, 80000 + 10*jitter, 90},
			Label:    model.DeviceCamera,
		})
		examples = append(examples, model.LabeledExample{
			Features: []float64{80 + jitter, 10, 30, 5, 1.5, 1, 40 + jitter, 0.5},
			Label:    model.DeviceThermostat,
		})
	}
	return examples
}

func cameraSignature() *model.FingerprintSignature {
	return &model.FingerprintSignature{
		BehavioralPatterns: map[string]float64{
			"packet_size_mean":   905,
			"packet_size_std":    118,
			"inter_arrival_mean": 0.05,
			"inter_arrival_std":  0.01,
			"port_entropy":       0.5,
			"protocol_diversity": 2,
			"bytes_per_second":   80500,
			"packets_per_second": 88,
		},
	}
}

func TestClassifyBeforeTrain(t *testing.T) {
	f := NewForest()
	_, err := f.Classify(cameraSignature())
	if !errors.Is(err, model.ErrModelNotTrained) {
		t.Fatalf("err = %v, want ErrModelNotTrained", err)
	}
}

func TestTrainEmptySet(t *testing.T) {
	f := NewForest()
	_, err := f.Train(nil)
	if !errors.Is(err, model.ErrEmptyTrainingSet) {
		t.Fatalf("err = %v, want ErrEmptyTrainingSet", err)
	}
}

func TestTrainAndClassifySeparable(t *testing.T) {
	f := NewForest(WithTrees(30), WithSeed(7))
	summary, err := f.Train(trainingSet(40))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if summary.SampleCount != 80 || summary.FeatureCount != len(model.FeatureColumns) {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Accuracy < 0.95 {
		t.Errorf("training accuracy = %v, want >= 0.95 on separable data", summary.Accuracy)
	}

	res, err := f.Classify(cameraSignature())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.DeviceType != model.DeviceCamera {
		t.Errorf("DeviceType = %v, want camera", res.DeviceType)
	}
	if res.Confidence <= 0.5 {
		t.Errorf("Confidence = %v, want > 0.5", res.Confidence)
	}

	sum := 0.0
	for _, p := range res.Probabilities {
		if p < 0 || p > 1 {
			t.Errorf("posterior out of range: %v", p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("posterior sums to %v, want 1", sum)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	f := NewForest(WithTrees(20), WithSeed(3))
	if _, err := f.Train(trainingSet(20)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	sig := cameraSignature()
	first, err := f.Classify(sig)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	for i := 0; i < 5; i++ {
		res, err := f.Classify(sig)
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		if res.DeviceType != first.DeviceType || res.Confidence != first.Confidence {
			t.Fatalf("classification not deterministic: %+v vs %+v", res, first)
		}
	}
}

func TestContributingFactorsSumToOne(t *testing.T) {
	f := NewForest(WithTrees(10), WithSeed(1))
	if _, err := f.Train(trainingSet(10)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	sig := cameraSignature()
	sig.DHCPVendorClass = "dhcp_hikvision"
	sig.TLSJA3 = "771,4865,0-23"

	res, err := f.Classify(sig)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	sum := 0.0
	for _, w := range res.ContributingFactors {
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("contributing factors sum to %v, want 1", sum)
	}
	if _, ok := res.ContributingFactors["dhcp"]; !ok {
		t.Error("expected dhcp factor when DHCP vendor class is present")
	}
	if _, ok := res.ContributingFactors["http"]; ok {
		t.Error("http factor present without a user agent")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := NewForest(WithTrees(15), WithSeed(11))
	if _, err := f.Train(trainingSet(25)); err != nil {
		t.Fatalf("Train: %v", err)
	}

	path := filepath.Join(t.TempDir(), "classifier.gob")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := NewForest()
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sig := cameraSignature()
	want, err := f.Classify(sig)
	if err != nil {
		t.Fatalf("Classify original: %v", err)
	}
	got, err := restored.Classify(sig)
	if err != nil {
		t.Fatalf("Classify restored: %v", err)
	}
	if got.DeviceType != want.DeviceType || got.Confidence != want.Confidence {
		t.Errorf("restored model diverges: %+v vs %+v", got, want)
	}
	for dt, p := range want.Probabilities {
		if got.Probabilities[dt] != p {
			t.Errorf("posterior for %s diverges: %v vs %v", dt, got.Probabilities[dt], p)
		}
	}
}

func TestSaveUntrained(t *testing.T) {
	f := NewForest()
	err := f.Save(filepath.Join(t.TempDir(), "classifier.gob"))
	if !errors.Is(err, model.ErrModelNotTrained) {
		t.Fatalf("err = %v, want ErrModelNotTrained", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	f := NewForest()
	err := f.Load(filepath.Join(t.TempDir(), "missing.gob"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want wrapped os.ErrNotExist", err)
	}
}
