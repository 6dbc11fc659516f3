package sink

import (
	"log"

	"IoTSpectra/internal/model"
)

// LogWriter is the fallback model.Writer used when no external sink is
// configured. It logs result summaries and discards them.
type LogWriter struct{}

// NewLogWriter creates a log-only writer.
func NewLogWriter() *LogWriter {
	return &LogWriter{}
}

// WriteFingerprint logs a one-line fingerprint summary.
func (w *LogWriter) WriteFingerprint(deviceID string, sig *model.FingerprintSignature, cls *model.ClassificationResult, confidence float64) error {
	if cls == nil {
		log.Printf("Fingerprint [%s]: unclassified, confidence %.2f, %d warnings", deviceID, confidence, len(sig.Warnings))
		return nil
	}
	log.Printf("Fingerprint [%s]: %s/%s, confidence %.2f", deviceID, cls.DeviceType, cls.Vendor, confidence)
	return nil
}

// WriteAnomaly logs a one-line anomaly summary.
func (w *LogWriter) WriteAnomaly(deviceID string, res *model.AnomalyResult) error {
	log.Printf("Scan [%s]: %d/%d anomalous (%s)", deviceID, res.AnomalyCount, res.TotalSamples, res.Strategy)
	return nil
}

// Close is a no-op.
func (w *LogWriter) Close() error { return nil }
