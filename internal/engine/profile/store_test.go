package profile

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"IoTSpectra/internal/model"
)

func sigWith(values map[string]float64) *model.FingerprintSignature {
	patterns := make(map[string]float64, len(model.FeatureColumns))
	for _, col := range model.FeatureColumns {
		patterns[col] = values[col]
	}
	return &model.FingerprintSignature{
		BehavioralPatterns: patterns,
		NetworkStats:       map[string]float64{"flow_count": 10},
	}
}

func TestScoreDeviationNoBaseline(t *testing.T) {
	s := NewStore(0)
	report, err := s.ScoreDeviation("cam-01", sigWith(nil), 0.25)
	if err != nil {
		t.Fatalf("ScoreDeviation: %v", err)
	}
	if report.DeviationDetected {
		t.Error("deviation must not be detected without a baseline")
	}
	if report.Reason == "" {
		t.Error("expected an explicit no-baseline reason")
	}
	if report.Severity != "none" {
		t.Errorf("severity = %q, want none", report.Severity)
	}
}

func TestScoreDeviationRelative(t *testing.T) {
	s := NewStore(16)
	base := map[string]float64{}
	cur := map[string]float64{}
	for _, col := range model.FeatureColumns {
		base[col] = 2.0
		cur[col] = 4.0
	}

	if _, err := s.CreateOrReplace("cam-01", sigWith(base)); err != nil {
		t.Fatalf("CreateOrReplace: %v", err)
	}
	report, err := s.ScoreDeviation("cam-01", sigWith(cur), 0.25)
	if err != nil {
		t.Fatalf("ScoreDeviation: %v", err)
	}

	// |4-2|/|2| = 1.0 on every column.
	if math.Abs(report.AverageDeviation-1.0) > 1e-9 {
		t.Errorf("AverageDeviation = %v, want 1.0", report.AverageDeviation)
	}
	if !report.DeviationDetected {
		t.Error("deviation above threshold must be detected")
	}
	if report.Severity != "high" {
		t.Errorf("severity = %q, want high", report.Severity)
	}
	for col, dev := range report.PerFeature {
		if math.Abs(dev-1.0) > 1e-9 {
			t.Errorf("per-feature deviation for %s = %v, want 1.0", col, dev)
		}
	}
}

func TestScoreDeviationZeroBaselineFallback(t *testing.T) {
	s := NewStore(0)
	if _, err := s.CreateOrReplace("therm-01", sigWith(nil)); err != nil {
		t.Fatalf("CreateOrReplace: %v", err)
	}

	cur := map[string]float64{"packet_size_mean": 0.8}
	report, err := s.ScoreDeviation("therm-01", sigWith(cur), 0.25)
	if err != nil {
		t.Fatalf("ScoreDeviation: %v", err)
	}
	// Zero baseline: deviation is the absolute current value.
	if math.Abs(report.PerFeature["packet_size_mean"]-0.8) > 1e-9 {
		t.Errorf("zero-baseline deviation = %v, want 0.8", report.PerFeature["packet_size_mean"])
	}
}

func TestSeverityBands(t *testing.T) {
	cases := []struct {
		avg  float64
		want string
	}{
		{0.2, "low"},
		{0.28, "low"},
		{0.4, "medium"},
		{0.9, "high"},
	}
	for _, tc := range cases {
		if got := severity(tc.avg); got != tc.want {
			t.Errorf("severity(%v) = %q, want %q", tc.avg, got, tc.want)
		}
	}
}

func TestCreateOrReplaceOverwrites(t *testing.T) {
	s := NewStore(0)
	first := map[string]float64{"bytes_per_second": 100}
	second := map[string]float64{"bytes_per_second": 900}

	if _, err := s.CreateOrReplace("rt-01", sigWith(first)); err != nil {
		t.Fatalf("CreateOrReplace: %v", err)
	}
	if _, err := s.CreateOrReplace("rt-01", sigWith(second)); err != nil {
		t.Fatalf("CreateOrReplace: %v", err)
	}

	profile, ok, err := s.Get("rt-01")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if profile.BehavioralPatterns["bytes_per_second"] != 900 {
		t.Error("re-baseline must replace, not merge")
	}
}

func TestConcurrentDistinctDevices(t *testing.T) {
	s := NewStore(8)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("dev-%02d", i)
			if _, err := s.CreateOrReplace(id, sigWith(nil)); err != nil {
				t.Errorf("CreateOrReplace %s: %v", id, err)
			}
			if _, ok, err := s.Get(id); err != nil || !ok {
				t.Errorf("Get %s: ok=%v err=%v", id, ok, err)
			}
		}(i)
	}
	wg.Wait()
}
