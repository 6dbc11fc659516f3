// Package feature converts raw flow batches into fingerprint signatures: a
// fixed-size behavioral feature vector plus the structured identity hints
// (DHCP/TLS/HTTP) observed alongside the flows.
package feature

import (
	"sort"
	"time"

	"IoTSpectra/internal/engine/stat"
	"IoTSpectra/internal/model"
)

// IdentityHints carries the out-of-band identity observations a collector may
// supply with a flow batch. All fields are optional.
type IdentityHints struct {
	DHCPOptions     map[string]string `json:"dhcp_options,omitempty"`
	DHCPVendorClass string            `json:"dhcp_vendor_class,omitempty"`
	Hostname        string            `json:"hostname,omitempty"`
	TLSJA3          string            `json:"tls_ja3,omitempty"`
	HTTPUserAgent   string            `json:"http_user_agent,omitempty"`
}

// Extractor derives FingerprintSignatures from flow batches. It is stateless
// and safe for concurrent use.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract computes the signature for one device's flow batch. It never fails:
// an empty batch yields an all-zero feature set, malformed records are
// skipped and counted, and missing fields are imputed as zero with a warning
// surfaced in the signature metadata.
func (e *Extractor) Extract(flows []model.FlowRecord, hints *IdentityHints) *model.FingerprintSignature {
	sig := &model.FingerprintSignature{
		BehavioralPatterns: make(map[string]float64, len(model.FeatureColumns)),
		NetworkStats:       make(map[string]float64),
	}
	for _, col := range model.FeatureColumns {
		sig.BehavioralPatterns[col] = 0
	}
	if hints != nil {
		sig.DHCPOptions = hints.DHCPOptions
		sig.DHCPVendorClass = hints.DHCPVendorClass
		sig.Hostname = hints.Hostname
		sig.TLSJA3 = hints.TLSJA3
		sig.HTTPUserAgent = hints.HTTPUserAgent
	}

	valid := make([]model.FlowRecord, 0, len(flows))
	for _, f := range flows {
		if f.Timestamp.IsZero() || f.Duration < 0 {
			sig.SkippedRecords++
			continue
		}
		valid = append(valid, f)
	}
	if sig.SkippedRecords > 0 {
		sig.Warnings = append(sig.Warnings, "malformed flow records skipped")
	}
	if len(valid) == 0 {
		return sig
	}

	// Timestamps must be ordered for inter-arrival deltas; collectors may
	// deliver batches unordered.
	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})

	e.packetSizeFeatures(valid, sig)
	e.interArrivalFeatures(valid, sig)
	e.portEntropy(valid, sig)
	e.protocolDiversity(valid, sig)
	e.rateFeatures(valid, sig)

	missingSizes := false
	for _, f := range valid {
		if f.PacketCount == 0 {
			missingSizes = true
			break
		}
	}
	if missingSizes {
		sig.Warnings = append(sig.Warnings, "flows without packet counts: size features partially imputed")
	}

	return sig
}

// packetSizeFeatures computes mean/std over the per-flow average packet size.
func (e *Extractor) packetSizeFeatures(flows []model.FlowRecord, sig *model.FingerprintSignature) {
	sizes := make([]float64, 0, len(flows))
	for _, f := range flows {
		if f.PacketCount == 0 {
			continue
		}
		sizes = append(sizes, float64(f.ByteCount)/float64(f.PacketCount))
	}
	sig.BehavioralPatterns["packet_size_mean"] = stat.Finite(stat.Mean(sizes))
	sig.BehavioralPatterns["packet_size_std"] = stat.Finite(stat.PopStd(sizes))
}

// interArrivalFeatures computes mean/std over consecutive-timestamp deltas in
// seconds. Fewer than two deltas leaves both features at zero.
func (e *Extractor) interArrivalFeatures(flows []model.FlowRecord, sig *model.FingerprintSignature) {
	if len(flows) < 2 {
		return
	}
	deltas := make([]float64, 0, len(flows)-1)
	for i := 1; i < len(flows); i++ {
		deltas = append(deltas, flows[i].Timestamp.Sub(flows[i-1].Timestamp).Seconds())
	}
	sig.BehavioralPatterns["inter_arrival_mean"] = stat.Finite(stat.Mean(deltas))
	if len(deltas) >= 2 {
		sig.BehavioralPatterns["inter_arrival_std"] = stat.Finite(stat.PopStd(deltas))
	}
}

func (e *Extractor) portEntropy(flows []model.FlowRecord, sig *model.FingerprintSignature) {
	counts := make(map[uint16]int, len(flows))
	for _, f := range flows {
		counts[f.DstPort]++
	}
	sig.BehavioralPatterns["port_entropy"] = stat.Finite(stat.Entropy(counts))
	sig.NetworkStats["distinct_dst_ports"] = float64(len(counts))
}

func (e *Extractor) protocolDiversity(flows []model.FlowRecord, sig *model.FingerprintSignature) {
	protos := make(map[uint8]struct{}, 4)
	for _, f := range flows {
		protos[f.Protocol] = struct{}{}
	}
	sig.BehavioralPatterns["protocol_diversity"] = float64(len(protos))
}

// rateFeatures divides batch totals by the observed time span. A zero span
// (single timestamp) leaves both rates at zero.
func (e *Extractor) rateFeatures(flows []model.FlowRecord, sig *model.FingerprintSignature) {
	var totalBytes, totalPackets uint64
	var first, last time.Time
	for i, f := range flows {
		totalBytes += f.ByteCount
		totalPackets += f.PacketCount
		if i == 0 || f.Timestamp.Before(first) {
			first = f.Timestamp
		}
		if f.Timestamp.After(last) {
			last = f.Timestamp
		}
	}
	sig.NetworkStats["total_bytes"] = float64(totalBytes)
	sig.NetworkStats["total_packets"] = float64(totalPackets)
	sig.NetworkStats["flow_count"] = float64(len(flows))

	span := last.Sub(first).Seconds()
	if span <= 0 {
		return
	}
	sig.BehavioralPatterns["bytes_per_second"] = stat.Finite(float64(totalBytes) / span)
	sig.BehavioralPatterns["packets_per_second"] = stat.Finite(float64(totalPackets) / span)
}
