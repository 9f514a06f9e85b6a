// Package config loads a connector's YAML configuration, substituting
// ${VAR} / ${VAR:-default} environment references before parsing.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level connector configuration: one sink, its
// serializer settings, and the cluster control plane it registers with.
type Config struct {
	Connector     ConnectorConfig     `json:"connector" yaml:"connector"`
	Serializer    SerializerConfig    `json:"serializer" yaml:"serializer"`
	Sink          SinkConfig          `json:"sink" yaml:"sink"`
	Cluster       ClusterConfig       `json:"cluster" yaml:"cluster"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// ConnectorConfig holds spec.md §6's connector-level settings.
type ConnectorConfig struct {
	ID                string        `json:"id" yaml:"id"`
	QSize             int           `json:"qsize" yaml:"qsize"`
	MetricsIntervalNS int64         `json:"metrics_interval_ns" yaml:"metrics_interval_ns"`
	DrainTimeout      time.Duration `json:"drain_timeout" yaml:"drain_timeout"`
}

// SerializerConfig configures the per-connector Event Serializer.
type SerializerConfig struct {
	Codec          string         `json:"codec" yaml:"codec"`
	CodecConfig    map[string]any `json:"codec_config" yaml:"codec_config"`
	Postprocessors []string       `json:"postprocessors" yaml:"postprocessors"`
}

// SinkConfig names the concrete pkg/sink/* implementation to wire and
// its settings, kept as a loose string map since each sink defines its
// own keys (mirrors the teacher's per-sink config.Settings pattern).
type SinkConfig struct {
	Type     string            `json:"type" yaml:"type"`
	Settings map[string]string `json:"settings" yaml:"settings"`
}

// ClusterConfig configures this node's participation in the Raft-backed
// control plane.
type ClusterConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	NodeID    string   `json:"node_id" yaml:"node_id"`
	BindAddr  string   `json:"bind_addr" yaml:"bind_addr"`
	DataDir   string   `json:"data_dir" yaml:"data_dir"`
	Bootstrap bool     `json:"bootstrap" yaml:"bootstrap"`
	Join      []string `json:"join" yaml:"join"`
}

// ObservabilityConfig configures logging sampling and OTLP tracing export.
type ObservabilityConfig struct {
	LogSampleN int        `json:"log_sample_n" yaml:"log_sample_n"`
	OTLP       OTLPConfig `json:"otlp" yaml:"otlp"`
}

type OTLPConfig struct {
	Endpoint    string            `json:"endpoint" yaml:"endpoint"`
	Protocol    string            `json:"protocol" yaml:"protocol"` // "grpc" or "http", defaults to "http"
	Insecure    bool              `json:"insecure" yaml:"insecure"`
	ServiceName string            `json:"service_name" yaml:"service_name"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
}

// LoadConfig reads path, substitutes environment references, and
// decodes it as YAML (falling back to JSON).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	content := SubstituteEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		if err := json.Unmarshal([]byte(content), &cfg); err != nil {
			return nil, fmt.Errorf("config: decode file (tried YAML and JSON): %w", err)
		}
	}

	if cfg.Connector.QSize == 0 {
		cfg.Connector.QSize = 256
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

var envRegex = regexp.MustCompile(`\${(\w+)(?::-([^}]*))?}`)

// SubstituteEnvVars replaces ${VAR} and ${VAR:-default} references with
// the environment value, or the default when VAR is unset.
func SubstituteEnvVars(input string) string {
	return envRegex.ReplaceAllStringFunc(input, func(m string) string {
		matches := envRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		envVar := matches[1]
		if val, ok := os.LookupEnv(envVar); ok {
			return val
		}
		if len(matches) > 2 && strings.Contains(m, ":-") {
			return matches[2]
		}
		return m
	})
}
