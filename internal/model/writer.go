package model

// Writer defines a generic interface for persisting engine results to an
// external store. The implementation is expected to know how to handle the
// payload types it receives.
type Writer interface {
	WriteFingerprint(deviceID string, sig *FingerprintSignature, cls *ClassificationResult, confidence float64) error
	WriteAnomaly(deviceID string, res *AnomalyResult) error
	Close() error
}

// Notifier defines a generic interface for sending notifications.
type Notifier interface {
	Send(subject, body string) error
}
