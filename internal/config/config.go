package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClassifierConfig holds the settings for the device classifier.
type ClassifierConfig struct {
	NumTrees  int    `yaml:"num_trees"`
	MaxDepth  int    `yaml:"max_depth"`
	Seed      uint64 `yaml:"seed"`
	ModelPath string `yaml:"model_path"`
}

// DetectorConfig holds the settings for the anomaly detector.
type DetectorConfig struct {
	Strategy      string  `yaml:"strategy"`
	Contamination float64 `yaml:"contamination"`
	NumTrees      int     `yaml:"num_trees"`
	SampleSize    int     `yaml:"sample_size"`
	WindowSize    int     `yaml:"window_size"`
	Seed          uint64  `yaml:"seed"`
	ModelPath     string  `yaml:"model_path"`
}

// ProfileConfig holds the settings for the behavioral profile store.
type ProfileConfig struct {
	Backend            string  `yaml:"backend"` // "memory" or "redis"
	NumShards          uint32  `yaml:"num_shards"`
	DeviationThreshold float64 `yaml:"deviation_threshold"`
	Redis              struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// ConfidenceConfig holds the per-source aggregation weights.
type ConfidenceConfig struct {
	DHCPWeight       float64 `yaml:"dhcp_weight"`
	TLSWeight        float64 `yaml:"tls_weight"`
	HTTPWeight       float64 `yaml:"http_weight"`
	BehavioralWeight float64 `yaml:"behavioral_weight"`
}

// EngineConfig groups the core pipeline settings.
type EngineConfig struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Detector   DetectorConfig   `yaml:"detector"`
	Profile    ProfileConfig    `yaml:"profile"`
	Confidence ConfidenceConfig `yaml:"confidence"`
}

// ProbeConfig holds the settings for the NATS flow transport.
type ProbeConfig struct {
	URL       string `yaml:"url"`
	Subject   string `yaml:"subject"`
	BatchSize int    `yaml:"batch_size"`
}

// ClickHouseConfig holds the connection settings for the result sink.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// APIConfig holds the settings for the HTTP API server.
type APIConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	MetricsPath string `yaml:"metrics_path"`
}

// SMTPConfig holds the settings for email notifications.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// AlerterConfig holds the settings for deviation/anomaly alerting.
type AlerterConfig struct {
	Enabled bool `yaml:"enabled"`
	// MinSeverity is the lowest deviation severity that triggers an alert.
	MinSeverity string     `yaml:"min_severity"`
	SMTP        SMTPConfig `yaml:"smtp"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Probe      ProbeConfig      `yaml:"probe"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	API        APIConfig        `yaml:"api"`
	Alerter    AlerterConfig    `yaml:"alerter"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return &cfg, nil
}
