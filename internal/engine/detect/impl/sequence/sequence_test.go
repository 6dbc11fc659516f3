package sequence

import (
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"IoTSpectra/internal/engine/detect"
	"IoTSpectra/internal/model"
)

// steadyFlows fabricates a periodic telemetry pattern: constant ports, byte
// counts oscillating on a short cycle with small jitter.
func steadyFlows(n int, seed uint64) []model.FlowRecord {
	rng := rand.New(rand.NewPCG(seed, 0))
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	flows := make([]model.FlowRecord, n)
	for i := range flows {
		cycle := uint64(200 * (i % 4))
		flows[i] = model.FlowRecord{
			Timestamp:   base.Add(time.Duration(i) * 30 * time.Second),
			SrcPort:     51000,
			DstPort:     8883,
			Protocol:    6,
			PacketCount: 8,
			ByteCount:   1000 + cycle + uint64(rng.IntN(20)),
			Duration:    0.5,
		}
	}
	return flows
}

func TestDetectBeforeTrain(t *testing.T) {
	d := New(detect.DefaultParams())
	_, err := d.Detect(steadyFlows(20, 1))
	if !errors.Is(err, model.ErrModelNotTrained) {
		t.Fatalf("err = %v, want ErrModelNotTrained", err)
	}
}

func TestTrainNeedsWindow(t *testing.T) {
	d := New(detect.DefaultParams())
	if err := d.Train(nil); !errors.Is(err, model.ErrEmptyTrainingSet) {
		t.Fatalf("err = %v, want ErrEmptyTrainingSet", err)
	}
	if err := d.Train(steadyFlows(8, 2)); err == nil {
		t.Fatal("expected error training on fewer samples than the window")
	}
}

func TestBatchWithinWindowYieldsEmptyResult(t *testing.T) {
	d := New(detect.DefaultParams())
	if err := d.Train(steadyFlows(120, 3)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	// No window can be formed until the batch exceeds the window length.
	for _, n := range []int{5, d.window} {
		res, err := d.Detect(steadyFlows(n, 4))
		if err != nil {
			t.Fatalf("Detect(%d): %v", n, err)
		}
		if res.AnomalyCount != 0 || res.TotalSamples != n || len(res.AnomalyIndices) != 0 {
			t.Errorf("expected empty result for %d-flow batch, got %+v", n, res)
		}
	}
	// One past the window, scoring begins.
	res, err := d.Detect(steadyFlows(d.window+1, 5))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(res.Scores) != d.window+1 {
		t.Errorf("expected scores for the full batch, got %d", len(res.Scores))
	}
}

func TestWarmupWindowScoresZero(t *testing.T) {
	d := New(detect.DefaultParams())
	if err := d.Train(steadyFlows(120, 5)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	res, err := d.Detect(steadyFlows(30, 6))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	for i := 0; i < d.window; i++ {
		if res.Scores[i] != 0 {
			t.Errorf("score[%d] = %v, want 0 inside warm-up window", i, res.Scores[i])
		}
	}
}

func TestDetectsSequenceBreak(t *testing.T) {
	d := New(detect.DefaultParams())
	if err := d.Train(steadyFlows(200, 7)); err != nil {
		t.Fatalf("Train: %v", err)
	}

	batch := steadyFlows(30, 8)
	// Break the periodic pattern with a burst mid-batch.
	batch[20].ByteCount = 500000
	batch[20].PacketCount = 4000
	batch[20].DstPort = 6667

	res, err := d.Detect(batch)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	flagged := false
	for _, idx := range res.AnomalyIndices {
		if idx == 20 {
			flagged = true
		}
	}
	if !flagged {
		t.Errorf("pattern break at index 20 not flagged; indices = %v", res.AnomalyIndices)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	d := New(detect.DefaultParams())
	if err := d.Train(steadyFlows(150, 9)); err != nil {
		t.Fatalf("Train: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sequence.gob")
	if err := d.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored, err := detect.Open(path, detect.DefaultParams())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if restored.Strategy() != StrategyName {
		t.Fatalf("strategy = %q, want %q", restored.Strategy(), StrategyName)
	}

	batch := steadyFlows(40, 10)
	want, err := d.Detect(batch)
	if err != nil {
		t.Fatalf("Detect original: %v", err)
	}
	got, err := restored.Detect(batch)
	if err != nil {
		t.Fatalf("Detect restored: %v", err)
	}
	for i, s := range want.Scores {
		if got.Scores[i] != s {
			t.Fatalf("score %d diverges: %v vs %v", i, got.Scores[i], s)
		}
	}
}

func TestSaveUntrained(t *testing.T) {
	d := New(detect.DefaultParams())
	err := d.Save(filepath.Join(t.TempDir(), "sequence.gob"))
	if !errors.Is(err, model.ErrModelNotTrained) {
		t.Fatalf("err = %v, want ErrModelNotTrained", err)
	}
}
