// Package sink persists engine results to external stores.
package sink

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"IoTSpectra/internal/config"
	"IoTSpectra/internal/model"
)

const createFingerprintTable = `
CREATE TABLE IF NOT EXISTS device_fingerprints (
    Timestamp       DateTime,
    DeviceID        String,
    DeviceType      String,
    Vendor          String,
    Confidence      Float64,
    TLSJA3          Nullable(String),
    HTTPUserAgent   Nullable(String),
    PacketSizeMean  Float64,
    BytesPerSecond  Float64,
    Warnings        UInt32,
    SkippedRecords  UInt32
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (DeviceID, Timestamp);
`

const createAnomalyTable = `
CREATE TABLE IF NOT EXISTS device_anomalies (
    Timestamp    DateTime,
    DeviceID     String,
    Strategy     String,
    AnomalyCount UInt32,
    TotalSamples UInt32,
    AnomalyRatio Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (DeviceID, Timestamp);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects to ClickHouse and ensures the result tables
// exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	ctx := context.Background()
	for _, stmt := range []string{createFingerprintTable, createAnomalyTable} {
		if err := conn.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// WriteFingerprint inserts one fingerprint row. An untrained classifier
// yields an "unknown"/"Unknown" row rather than being skipped.
func (w *ClickHouseWriter) WriteFingerprint(deviceID string, sig *model.FingerprintSignature, cls *model.ClassificationResult, confidence float64) error {
	deviceType, vendor := string(model.DeviceUnknown), string(model.VendorUnknown)
	if cls != nil {
		deviceType = string(cls.DeviceType)
		vendor = string(cls.Vendor)
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO device_fingerprints")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	err = batch.Append(
		time.Now().UTC(),
		deviceID,
		deviceType,
		vendor,
		confidence,
		nullableString(sig.TLSJA3),
		nullableString(sig.HTTPUserAgent),
		sig.BehavioralPatterns["packet_size_mean"],
		sig.BehavioralPatterns["bytes_per_second"],
		uint32(len(sig.Warnings)),
		uint32(sig.SkippedRecords),
	)
	if err != nil {
		return fmt.Errorf("failed to append fingerprint row: %w", err)
	}
	return batch.Send()
}

// WriteAnomaly inserts one anomaly scan row.
func (w *ClickHouseWriter) WriteAnomaly(deviceID string, res *model.AnomalyResult) error {
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO device_anomalies")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	err = batch.Append(
		time.Now().UTC(),
		deviceID,
		res.Strategy,
		uint32(res.AnomalyCount),
		uint32(res.TotalSamples),
		res.AnomalyRatio,
	)
	if err != nil {
		return fmt.Errorf("failed to append anomaly row: %w", err)
	}
	return batch.Send()
}

// Close closes the ClickHouse connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
