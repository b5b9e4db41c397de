package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	RiskGraph RiskGraphConfig `yaml:"riskgraph"`
}

// RiskGraphConfig is the project configuration.
type RiskGraphConfig struct {
	Input      InputConfig      `yaml:"input"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Export     ExportConfig     `yaml:"export"`
	Output     OutputConfig     `yaml:"output"`
	Rules      RulesConfig      `yaml:"rules"`
	Findings   FindingsConfig   `yaml:"findings"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	OwnerIndex OwnerIndexConfig `yaml:"owner_index"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InputConfig selects where documents come from.
type InputConfig struct {
	Mode  string           `yaml:"mode"` // file|redis
	File  FileOutputConfig `yaml:"file"`
	Redis RedisConfig      `yaml:"redis"`
}

// PipelineConfig controls the read/process/write loops.
type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// IngestConfig controls tree ingestion.
type IngestConfig struct {
	// Strict aborts the load on the first malformed instance.
	Strict bool `yaml:"strict"`
}

// ExportConfig controls the output envelope.
type ExportConfig struct {
	Version  string `yaml:"version"`
	WithEval *bool  `yaml:"with_eval"`
	Indent   string `yaml:"indent"`
	Language int    `yaml:"language"`
}

// Eval reports whether evaluation data is exported. Unset means true.
func (e ExportConfig) Eval() bool {
	return e.WithEval == nil || *e.WithEval
}

// RedisConfig controls a Redis connection and key.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	Mode         string        `yaml:"mode"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
	TTL          time.Duration `yaml:"ttl"`
}

// OutputConfig controls where the output document goes.
type OutputConfig struct {
	Mode  string           `yaml:"mode"` // file|redis|none
	File  FileOutputConfig `yaml:"file"`
	Redis RedisConfig      `yaml:"redis"`
}

// RulesConfig controls Sigma risk rules.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// FindingsConfig controls the rule finding sink.
type FindingsConfig struct {
	Enabled    bool                   `yaml:"enabled"`
	Mode       string                 `yaml:"mode"` // file|clickhouse
	File       FileOutputConfig       `yaml:"file"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// AlertsConfig controls threshold alerts.
type AlertsConfig struct {
	Enabled  bool             `yaml:"enabled"`
	MinLevel string           `yaml:"min_level"`
	UseMax   bool             `yaml:"use_max"`
	Mode     string           `yaml:"mode"` // file|http
	File     FileOutputConfig `yaml:"file"`
	HTTP     HTTPOutputConfig `yaml:"http"`
}

// OwnerIndexConfig controls the Redis owner index.
type OwnerIndexConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MetricsConfig controls the Prometheus textfile dump.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for a local file.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}
