package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"riskgraph/config"
	"riskgraph/internal/graph/assemble"
	"riskgraph/internal/logger"
)

const defaultConfigName = "riskgraph.yml"

var rootCmd = &cobra.Command{
	Use:   "riskgraph",
	Short: "Normalize, propagate and re-export MONARC risk analyses",
	Long: `riskgraph loads a MONARC analysis export, deduplicates the entities copied
under every instance, recomputes inherited impacts and risk caches, and
writes the document back in the same nested shape.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(processCmd, queryCmd, editCmd, newAssetCmd)
}

func findConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return defaultConfigName
}

// loadConfig reads the config if one exists; a missing default file
// yields the built-in defaults.
func loadConfig(configArg string) (*config.Config, string, error) {
	path := findConfigFile(configArg)
	cfg := &config.Config{}
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, path, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else if configArg != "" {
		return nil, path, fmt.Errorf("config file %s not found", configArg)
	} else {
		path = ""
	}
	applyDefaults(cfg)
	return cfg, path, nil
}

func applyDefaults(cfg *config.Config) {
	rg := &cfg.RiskGraph

	if rg.Input.Mode == "" {
		rg.Input.Mode = "file"
	}
	if rg.Input.File.Path == "" {
		rg.Input.File.Path = "input/anr.json"
	}
	if rg.Input.Redis.Addr == "" {
		rg.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if rg.Input.Redis.Key == "" {
		rg.Input.Redis.Key = "riskgraph:documents"
	}
	if rg.Input.Redis.BlockTimeout == 0 {
		rg.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if rg.Pipeline.Workers <= 0 {
		rg.Pipeline.Workers = 1
	}
	if rg.Pipeline.BatchSize <= 0 {
		rg.Pipeline.BatchSize = 1000
	}
	if rg.Pipeline.FlushInterval <= 0 {
		rg.Pipeline.FlushInterval = 2 * time.Second
	}

	if rg.Export.Version == "" {
		rg.Export.Version = assemble.DefaultVersion
	}
	if rg.Export.WithEval == nil {
		withEval := true
		rg.Export.WithEval = &withEval
	}
	if rg.Export.Language == 0 {
		rg.Export.Language = 2
	}

	if rg.Output.Mode == "" {
		rg.Output.Mode = "file"
	}
	if rg.Output.File.Path == "" {
		rg.Output.File.Path = "output/anr.json"
	}
	if rg.Output.Redis.Addr == "" {
		rg.Output.Redis.Addr = "127.0.0.1:6379"
	}
	if rg.Output.Redis.Key == "" {
		rg.Output.Redis.Key = "riskgraph:anr"
	}

	if rg.Findings.Mode == "" {
		rg.Findings.Mode = "file"
	}
	if rg.Findings.File.Path == "" {
		rg.Findings.File.Path = "output/findings.jsonl"
	}
	if rg.Findings.ClickHouse.Database == "" {
		rg.Findings.ClickHouse.Database = "riskgraph"
	}
	if rg.Findings.ClickHouse.Table == "" {
		rg.Findings.ClickHouse.Table = "risk_findings"
	}

	if rg.Alerts.MinLevel == "" {
		rg.Alerts.MinLevel = "high"
	}
	if rg.Alerts.Mode == "" {
		rg.Alerts.Mode = "file"
	}
	if rg.Alerts.File.Path == "" {
		rg.Alerts.File.Path = "output/alerts.jsonl"
	}

	if rg.OwnerIndex.Addr == "" {
		rg.OwnerIndex.Addr = "127.0.0.1:6379"
	}
	if rg.OwnerIndex.KeyPrefix == "" {
		rg.OwnerIndex.KeyPrefix = "riskgraph"
	}

	if rg.Logging.Level == "" {
		rg.Logging.Level = "info"
	}
}

func initLogger(cfg *config.Config) error {
	l := cfg.RiskGraph.Logging
	if err := logger.Init(logger.Options{
		Enabled: l.Enabled,
		Level:   l.Level,
		File:    l.File,
		Console: l.Console,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
