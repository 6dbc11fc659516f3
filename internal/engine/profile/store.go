// Package profile keeps per-device behavioral baselines and scores fresh
// signatures against them. The default store is an in-memory sharded map;
// a Redis-backed store is available for multi-instance deployments.
package profile

import (
	"hash/fnv"
	"log"
	"math"
	"sync"
	"time"

	"IoTSpectra/internal/model"
)

const defaultShardCount = 64

type shard struct {
	mu       sync.RWMutex
	profiles map[string]*model.DeviceProfile
}

// Store is the in-memory ProfileStore: device IDs hash onto shards so
// concurrent updates for distinct devices rarely contend.
type Store struct {
	shards     []*shard
	shardCount uint32
}

// NewStore creates an empty in-memory profile store.
func NewStore(numShards uint32) *Store {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	s := &Store{
		shards:     make([]*shard, numShards),
		shardCount: numShards,
	}
	for i := range s.shards {
		s.shards[i] = &shard{profiles: make(map[string]*model.DeviceProfile)}
	}
	return s
}

func (s *Store) getShard(deviceID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(deviceID))
	return s.shards[h.Sum32()%s.shardCount]
}

// CreateOrReplace overwrites the device baseline with the signature's
// behavioral patterns. Baselines are replaced whole, never merged.
func (s *Store) CreateOrReplace(deviceID string, sig *model.FingerprintSignature) (*model.DeviceProfile, error) {
	profile := newProfile(deviceID, sig)

	sh := s.getShard(deviceID)
	sh.mu.Lock()
	sh.profiles[deviceID] = profile
	sh.mu.Unlock()

	log.Printf("Baseline stored for device '%s' (%d features)", deviceID, len(profile.BehavioralPatterns))
	return profile, nil
}

// Get returns the stored baseline, ok=false when none exists.
func (s *Store) Get(deviceID string) (*model.DeviceProfile, bool, error) {
	sh := s.getShard(deviceID)
	sh.mu.RLock()
	profile, ok := sh.profiles[deviceID]
	sh.mu.RUnlock()
	return profile, ok, nil
}

// ScoreDeviation compares a fresh signature against the stored baseline.
func (s *Store) ScoreDeviation(deviceID string, sig *model.FingerprintSignature, threshold float64) (*model.DeviationReport, error) {
	profile, ok, err := s.Get(deviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return noBaselineReport(deviceID, threshold), nil
	}
	return scoreAgainst(profile, sig, threshold), nil
}

func newProfile(deviceID string, sig *model.FingerprintSignature) *model.DeviceProfile {
	patterns := make(map[string]float64, len(model.FeatureColumns))
	for _, col := range model.FeatureColumns {
		patterns[col] = sig.BehavioralPatterns[col]
	}
	return &model.DeviceProfile{
		DeviceID:           deviceID,
		CreatedAt:          time.Now().UTC(),
		SampleCount:        int(sig.NetworkStats["flow_count"]),
		BehavioralPatterns: patterns,
		Established:        true,
	}
}

func noBaselineReport(deviceID string, threshold float64) *model.DeviationReport {
	return &model.DeviationReport{
		DeviceID:  deviceID,
		Threshold: threshold,
		Severity:  "none",
		Reason:    "no baseline established for device",
	}
}

// scoreAgainst computes per-feature relative deviation: |cur-base|/|base|,
// falling back to |cur| for zero baselines. Deviation is detected when the
// mean over all columns exceeds the threshold.
func scoreAgainst(profile *model.DeviceProfile, sig *model.FingerprintSignature, threshold float64) *model.DeviationReport {
	perFeature := make(map[string]float64, len(model.FeatureColumns))
	sum := 0.0
	for _, col := range model.FeatureColumns {
		base := profile.BehavioralPatterns[col]
		cur := sig.BehavioralPatterns[col]

		var dev float64
		if math.Abs(base) > 0 {
			dev = math.Abs(cur-base) / math.Abs(base)
		} else {
			dev = math.Abs(cur)
		}
		perFeature[col] = dev
		sum += dev
	}
	avg := sum / float64(len(model.FeatureColumns))

	report := &model.DeviationReport{
		DeviceID:          profile.DeviceID,
		DeviationDetected: avg > threshold,
		AverageDeviation:  avg,
		PerFeature:        perFeature,
		Threshold:         threshold,
		Severity:          severity(avg),
	}
	return report
}

func severity(avg float64) string {
	switch {
	case avg > 0.5:
		return "high"
	case avg > 0.3:
		return "medium"
	default:
		return "low"
	}
}
