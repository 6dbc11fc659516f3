// Package confidence combines per-source signature confidences into one
// bounded score with explainable per-factor weights.
package confidence

import (
	"strconv"

	"IoTSpectra/internal/engine/stat"
	"IoTSpectra/internal/model"
)

// Source confidences used when a signal is present but carries no own
// confidence value.
const (
	tlsConfidence  = 0.8
	httpConfidence = 0.7
	dhcpDefault    = 0.5
	neutralDefault = 0.5
)

// Weights holds the per-source weights of the aggregation. The classifier
// posterior is folded in unweighted after the weighted mean.
type Weights struct {
	DHCP       float64
	TLS        float64
	HTTP       float64
	Behavioral float64
}

// DefaultWeights returns the stock weighting.
func DefaultWeights() Weights {
	return Weights{DHCP: 0.4, TLS: 0.3, HTTP: 0.2, Behavioral: 0.1}
}

// Aggregator scores signatures. The zero value is not usable; construct via
// New.
type Aggregator struct {
	weights Weights
}

// New creates an aggregator with the given weights. Zeroed weights fall back
// to the defaults.
func New(w Weights) *Aggregator {
	if w.DHCP == 0 && w.TLS == 0 && w.HTTP == 0 && w.Behavioral == 0 {
		w = DefaultWeights()
	}
	return &Aggregator{weights: w}
}

// Aggregate computes the weighted mean over the signals present on the
// signature, folds in the classifier's max posterior as an unweighted extra
// factor, and returns a score in [0,1]. With no signals present it returns
// the neutral default; the posterior alone is not a signal.
func (a *Aggregator) Aggregate(sig *model.FingerprintSignature, cls *model.ClassificationResult) float64 {
	var weightedSum, weightTotal float64

	if len(sig.DHCPOptions) > 0 {
		weightedSum += a.weights.DHCP * dhcpConfidence(sig.DHCPOptions)
		weightTotal += a.weights.DHCP
	}
	if sig.TLSJA3 != "" {
		weightedSum += a.weights.TLS * tlsConfidence
		weightTotal += a.weights.TLS
	}
	if sig.HTTPUserAgent != "" {
		weightedSum += a.weights.HTTP * httpConfidence
		weightTotal += a.weights.HTTP
	}
	if len(sig.BehavioralPatterns) > 0 {
		weightedSum += a.weights.Behavioral * behavioralConfidence(sig.BehavioralPatterns)
		weightTotal += a.weights.Behavioral
	}

	if weightTotal == 0 {
		return neutralDefault
	}

	score := weightedSum / weightTotal
	if cls != nil {
		score = (score + stat.Clamp01(cls.Confidence)) / 2
	}
	return stat.Clamp01(score)
}

// dhcpConfidence uses the signature's own fingerprint confidence when the
// options carry one, otherwise a neutral default.
func dhcpConfidence(options map[string]string) float64 {
	if raw, ok := options["fingerprint_confidence"]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return stat.Clamp01(v)
		}
	}
	return dhcpDefault
}

// behavioralConfidence is the clamped mean of the behavioral feature values.
func behavioralConfidence(patterns map[string]float64) float64 {
	sum := 0.0
	for _, v := range patterns {
		sum += v
	}
	return stat.Clamp01(sum / float64(len(patterns)))
}
