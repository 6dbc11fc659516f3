package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"IoTSpectra/internal/model"
)

// RedisStore is a ProfileStore backed by Redis, for deployments where several
// engine instances must share one set of baselines. Profiles are stored as
// JSON under a fixed key prefix.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ctx:    ctx,
		prefix: "profile:",
	}, nil
}

func (r *RedisStore) key(deviceID string) string {
	return r.prefix + deviceID
}

// CreateOrReplace overwrites the device baseline in Redis.
func (r *RedisStore) CreateOrReplace(deviceID string, sig *model.FingerprintSignature) (*model.DeviceProfile, error) {
	profile := newProfile(deviceID, sig)

	data, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile for device '%s': %w", deviceID, err)
	}
	if err := r.client.Set(r.ctx, r.key(deviceID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to store profile for device '%s': %w", deviceID, err)
	}
	return profile, nil
}

// Get returns the stored baseline, ok=false when none exists.
func (r *RedisStore) Get(deviceID string) (*model.DeviceProfile, bool, error) {
	data, err := r.client.Get(r.ctx, r.key(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch profile for device '%s': %w", deviceID, err)
	}

	var profile model.DeviceProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal profile for device '%s': %w", deviceID, err)
	}
	return &profile, true, nil
}

// ScoreDeviation compares a fresh signature against the stored baseline.
func (r *RedisStore) ScoreDeviation(deviceID string, sig *model.FingerprintSignature, threshold float64) (*model.DeviationReport, error) {
	profile, ok, err := r.Get(deviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return noBaselineReport(deviceID, threshold), nil
	}
	return scoreAgainst(profile, sig, threshold), nil
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
