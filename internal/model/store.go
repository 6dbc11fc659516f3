package model

// ProfileStore keeps one behavioral baseline per device. Updates for the same
// device are serialized; distinct devices are independent.
type ProfileStore interface {
	// CreateOrReplace overwrites any existing baseline for the device.
	CreateOrReplace(deviceID string, sig *FingerprintSignature) (*DeviceProfile, error)

	// Get returns the stored profile, or ok=false when none exists.
	Get(deviceID string) (*DeviceProfile, bool, error)

	// ScoreDeviation compares a fresh signature against the stored baseline.
	// An absent baseline yields DeviationDetected=false with an explicit
	// "no baseline" reason, never an error.
	ScoreDeviation(deviceID string, sig *FingerprintSignature, threshold float64) (*DeviationReport, error)
}
