package model

import (
	"net"
	"time"
)

// FlowRecord holds the metadata of a single observed network flow.
// Records are immutable once ingested.
type FlowRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	SrcIP       net.IP    `json:"src_ip,omitempty"`
	DstIP       net.IP    `json:"dst_ip,omitempty"`
	SrcPort     uint16    `json:"src_port"`
	DstPort     uint16    `json:"dst_port"`
	Protocol    uint8     `json:"protocol"` // e.g., TCP, UDP
	PacketCount uint64    `json:"packet_count"`
	ByteCount   uint64    `json:"byte_count"`
	Duration    float64   `json:"duration"` // seconds
}

// FeatureColumns is the fixed, ordered set of behavioral features produced by
// the extractor. Every DeviceProfile and classifier input vector uses exactly
// these columns, in this order; missing inputs are imputed as zero.
var FeatureColumns = []string{
	"packet_size_mean",
	"packet_size_std",
	"inter_arrival_mean",
	"inter_arrival_std",
	"port_entropy",
	"protocol_diversity",
	"bytes_per_second",
	"packets_per_second",
}

// FingerprintSignature is the structured signature bundle derived from one
// flow batch for one device. It is owned by the extraction call that produced
// it and is never mutated afterward.
type FingerprintSignature struct {
	DHCPOptions        map[string]string  `json:"dhcp_options,omitempty"`
	DHCPVendorClass    string             `json:"dhcp_vendor_class,omitempty"`
	Hostname           string             `json:"hostname,omitempty"`
	TLSJA3             string             `json:"tls_ja3,omitempty"`
	HTTPUserAgent      string             `json:"http_user_agent,omitempty"`
	BehavioralPatterns map[string]float64 `json:"behavioral_patterns"`
	NetworkStats       map[string]float64 `json:"network_stats"`

	// Extraction metadata. Warnings report missing expected fields; the
	// affected features are imputed as zero rather than failing the batch.
	Warnings       []string `json:"warnings,omitempty"`
	SkippedRecords int      `json:"skipped_records"`
}

// FeatureVector returns the signature's behavioral features as an ordered
// vector following FeatureColumns. Absent columns are imputed as 0.
func (s *FingerprintSignature) FeatureVector() []float64 {
	vec := make([]float64, len(FeatureColumns))
	for i, col := range FeatureColumns {
		vec[i] = s.BehavioralPatterns[col]
	}
	return vec
}

// DeviceType is the closed vocabulary of device classes the classifier emits.
type DeviceType string

const (
	DeviceCamera     DeviceType = "camera"
	DeviceThermostat DeviceType = "thermostat"
	DeviceSpeaker    DeviceType = "speaker"
	DeviceLight      DeviceType = "light"
	DeviceLock       DeviceType = "lock"
	DeviceRouter     DeviceType = "router"
	DevicePrinter    DeviceType = "printer"
	DeviceUnknown    DeviceType = "unknown"
)

// Vendor is the closed vocabulary of known device vendors.
type Vendor string

const (
	VendorHikvision Vendor = "Hikvision"
	VendorNest      Vendor = "Nest"
	VendorAmazon    Vendor = "Amazon"
	VendorPhilips   Vendor = "Philips"
	VendorAugust    Vendor = "August"
	VendorTPLink    Vendor = "TP-Link"
	VendorHP        Vendor = "HP"
	VendorUnknown   Vendor = "Unknown"
)

// ClassificationResult is the output of a single classify call.
type ClassificationResult struct {
	DeviceType DeviceType `json:"device_type"`
	Vendor     Vendor     `json:"vendor"`
	// Probabilities holds the per-class posterior, keyed by device type.
	// Values are in [0,1] and sum to 1.
	Probabilities map[DeviceType]float64 `json:"probabilities"`
	// Confidence is the maximum posterior probability, in [0,1].
	Confidence float64 `json:"confidence"`
	// ContributingFactors maps signal names to their weights; weights sum to 1.
	ContributingFactors map[string]float64 `json:"contributing_factors"`
}

// DeviceProfile is the rolling behavioral baseline for one device. A profile
// is created on first successful extraction and overwritten, never merged, on
// each explicit re-baseline.
type DeviceProfile struct {
	DeviceID           string             `json:"device_id"`
	CreatedAt          time.Time          `json:"created_at"`
	SampleCount        int                `json:"sample_count"`
	BehavioralPatterns map[string]float64 `json:"behavioral_patterns"`
	Established        bool               `json:"established"`
}

// AnomalyResult is the outcome of running a detector over one flow batch.
type AnomalyResult struct {
	Strategy       string    `json:"strategy"`
	AnomalyCount   int       `json:"anomaly_count"`
	TotalSamples   int       `json:"total_samples"`
	AnomalyRatio   float64   `json:"anomaly_ratio"` // AnomalyCount / TotalSamples, 0 when empty
	Scores         []float64 `json:"scores,omitempty"`
	AnomalyIndices []int     `json:"anomaly_indices,omitempty"`
}

// DeviationReport is the outcome of scoring a flow batch against a stored
// device baseline.
type DeviationReport struct {
	DeviceID          string             `json:"device_id"`
	DeviationDetected bool               `json:"deviation_detected"`
	AverageDeviation  float64            `json:"average_deviation"`
	PerFeature        map[string]float64 `json:"per_feature,omitempty"`
	Threshold         float64            `json:"threshold"`
	Severity          string             `json:"severity"`
	Reason            string             `json:"reason,omitempty"`
}

// EvalReport holds standard binary detection quality metrics.
type EvalReport struct {
	Accuracy           float64 `json:"accuracy"`
	Precision          float64 `json:"precision"`
	Recall             float64 `json:"recall"`
	F1                 float64 `json:"f1"`
	PredictedAnomalies int     `json:"predicted_anomalies"`
	ActualAnomalies    int     `json:"actual_anomalies"`
}

// TrainingSummary describes a completed classifier training run.
type TrainingSummary struct {
	Accuracy     float64      `json:"accuracy"`
	SampleCount  int          `json:"sample_count"`
	FeatureCount int          `json:"feature_count"`
	Labels       []DeviceType `json:"labels"`
}
