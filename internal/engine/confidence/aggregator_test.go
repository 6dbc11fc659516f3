package confidence

import (
	"math"
	"testing"

	"IoTSpectra/internal/model"
)

func TestNoSignalsNeutralDefault(t *testing.T) {
	a := New(DefaultWeights())
	got := a.Aggregate(&model.FingerprintSignature{}, nil)
	if got != 0.5 {
		t.Errorf("Aggregate = %v, want neutral 0.5", got)
	}
}

func TestPosteriorAloneIsNotASignal(t *testing.T) {
	a := New(DefaultWeights())
	cls := &model.ClassificationResult{Confidence: 0.9}
	if got := a.Aggregate(&model.FingerprintSignature{}, cls); got != 0.5 {
		t.Errorf("Aggregate = %v, want neutral 0.5 when no signature signals are present", got)
	}
}

func TestWeightedMeanOfPresentSignals(t *testing.T) {
	a := New(DefaultWeights())
	sig := &model.FingerprintSignature{
		DHCPOptions: map[string]string{"55": "1,3,6,15"},
		TLSJA3:      "771,4865-4866,0-23",
	}
	// DHCP 0.5 at weight 0.4, TLS 0.8 at weight 0.3.
	want := (0.4*0.5 + 0.3*0.8) / 0.7
	if got := a.Aggregate(sig, nil); math.Abs(got-want) > 1e-9 {
		t.Errorf("Aggregate = %v, want %v", got, want)
	}
}

func TestDHCPOwnConfidence(t *testing.T) {
	a := New(DefaultWeights())
	sig := &model.FingerprintSignature{
		DHCPOptions: map[string]string{"fingerprint_confidence": "0.95"},
	}
	if got := a.Aggregate(sig, nil); math.Abs(got-0.95) > 1e-9 {
		t.Errorf("Aggregate = %v, want 0.95 from the supplied DHCP confidence", got)
	}
}

func TestPosteriorFoldedUnweighted(t *testing.T) {
	a := New(DefaultWeights())
	sig := &model.FingerprintSignature{HTTPUserAgent: "NestThermostat/5.9"}
	cls := &model.ClassificationResult{Confidence: 0.9}

	// HTTP-only weighted mean is 0.7, averaged with the posterior.
	want := (0.7 + 0.9) / 2
	if got := a.Aggregate(sig, cls); math.Abs(got-want) > 1e-9 {
		t.Errorf("Aggregate = %v, want %v", got, want)
	}
}

func TestAlwaysBounded(t *testing.T) {
	a := New(DefaultWeights())
	sigs := []*model.FingerprintSignature{
		{},
		{TLSJA3: "x"},
		{DHCPOptions: map[string]string{"fingerprint_confidence": "7.5"}},
		{BehavioralPatterns: map[string]float64{"bytes_per_second": 1e6}},
		{
			DHCPOptions:        map[string]string{"55": "1"},
			TLSJA3:             "x",
			HTTPUserAgent:      "y",
			BehavioralPatterns: map[string]float64{"a": -4, "b": 9},
		},
	}
	classes := []*model.ClassificationResult{nil, {Confidence: 0}, {Confidence: 1}, {Confidence: 2}}

	for _, sig := range sigs {
		for _, cls := range classes {
			got := a.Aggregate(sig, cls)
			if got < 0 || got > 1 || math.IsNaN(got) {
				t.Errorf("Aggregate out of bounds: %v (sig=%+v cls=%+v)", got, sig, cls)
			}
		}
	}
}
