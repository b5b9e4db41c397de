package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"riskgraph/config"
	"riskgraph/internal/alerts"
	"riskgraph/internal/graph/assemble"
	"riskgraph/internal/graph/ingest"
	inputfile "riskgraph/internal/input/file"
	inputredis "riskgraph/internal/input/redis"
	"riskgraph/internal/logger"
	"riskgraph/internal/metrics"
	"riskgraph/internal/output/alerthttp"
	"riskgraph/internal/output/docfile"
	"riskgraph/internal/output/docredis"
	"riskgraph/internal/output/findingclickhouse"
	"riskgraph/internal/output/jsonl"
	"riskgraph/internal/ownerindex"
	"riskgraph/internal/pipeline"
	"riskgraph/internal/rules"
	"riskgraph/pkg/models"
)

var processFlags struct {
	input  string
	output string
	strict bool
}

var processCmd = &cobra.Command{
	Use:   "process [config]",
	Short: "Process analysis documents from the configured source",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configArg := ""
		if len(args) > 0 {
			configArg = args[0]
		}
		cfg, path, err := loadConfig(configArg)
		if err != nil {
			return err
		}
		if processFlags.input != "" {
			cfg.RiskGraph.Input.Mode = "file"
			cfg.RiskGraph.Input.File.Path = processFlags.input
		}
		if processFlags.output != "" {
			cfg.RiskGraph.Output.Mode = "file"
			cfg.RiskGraph.Output.File.Path = processFlags.output
		}
		if processFlags.strict {
			cfg.RiskGraph.Ingest.Strict = true
		}
		if err := initLogger(cfg); err != nil {
			return err
		}
		defer logger.Close()

		logger.Infof("riskgraph starting")
		if path != "" {
			logger.Infof("Config loaded from: %s", path)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runProcess(ctx, cfg)
	},
}

func init() {
	processCmd.Flags().StringVarP(&processFlags.input, "input", "i", "", "read one document from this file (- for stdin)")
	processCmd.Flags().StringVarP(&processFlags.output, "output", "o", "", "write the document to this file")
	processCmd.Flags().BoolVar(&processFlags.strict, "strict", false, "abort on the first malformed instance")
}

func runProcess(ctx context.Context, cfg *config.Config) error {
	rg := cfg.RiskGraph
	m := metrics.New()

	source, err := newSource(rg.Input)
	if err != nil {
		return err
	}

	engine, err := newEngine(rg.Rules)
	if err != nil {
		source.Close()
		return err
	}

	var scorer *alerts.Scorer
	if rg.Alerts.Enabled {
		scorer = alerts.NewScorer(alerts.Config{MinLevel: rg.Alerts.MinLevel, UseMax: rg.Alerts.UseMax})
	}

	sinks, err := newSinks(rg)
	if err != nil {
		source.Close()
		return err
	}

	processor := pipeline.NewProcessor(pipeline.Config{
		Ingest: ingest.Options{Strict: rg.Ingest.Strict},
		Assemble: assemble.Options{
			Version:  rg.Export.Version,
			WithEval: rg.Export.Eval(),
		},
		Indent:   rg.Export.Indent,
		Language: rg.Export.Language,
	}, engine, scorer, m)

	pipe := pipeline.NewDocumentPipeline(source, processor, sinks, pipeline.Options{
		Workers:       rg.Pipeline.Workers,
		BatchSize:     rg.Pipeline.BatchSize,
		FlushInterval: rg.Pipeline.FlushInterval,
	})
	pipe.OnResult(func(res *pipeline.Result) {
		logger.Infof("Document processed: instances=%d dropped=%d conflicts=%d orphans=%d findings=%d alerts=%d",
			res.Document.Report.Nodes,
			len(res.Document.Report.Dropped),
			len(res.Document.Registry.Conflicts()),
			len(res.Propagation.Orphans),
			len(res.Findings),
			len(res.Alerts),
		)
	})

	runErr := pipe.Run(ctx)
	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	if err := m.WriteTextfile(rg.Metrics.Textfile); err != nil {
		logger.Errorf("%v", err)
	}

	stats := pipe.Stats()
	logger.Infof("riskgraph stopped")
	if runErr != nil {
		if runErr == context.Canceled {
			return nil
		}
		return runErr
	}
	return checkOneShot(rg.Input, stats)
}

// checkOneShot fails a run over a single-document source that read or
// processed nothing successfully. Queue sources keep running past errors.
func checkOneShot(in config.InputConfig, stats pipeline.Stats) error {
	oneShot := in.Mode == "file" || (in.Mode == "redis" && in.Redis.Mode == inputredis.ModeKey)
	if !oneShot {
		return nil
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d document(s) failed to process", stats.Failed)
	}
	if stats.Received == 0 {
		return fmt.Errorf("no document read from %s input (%d read error(s))", in.Mode, stats.ReadErrors)
	}
	return nil
}

func newSource(in config.InputConfig) (pipeline.Source, error) {
	switch in.Mode {
	case "file":
		src, err := inputfile.NewSource(in.File.Path)
		if err != nil {
			return nil, err
		}
		logger.Infof("Input mode: file (%s)", in.File.Path)
		return src, nil
	case "redis":
		c, err := inputredis.NewConsumer(inputredis.Config{
			Addr:         in.Redis.Addr,
			Password:     in.Redis.Password,
			DB:           in.Redis.DB,
			Key:          in.Redis.Key,
			Mode:         in.Redis.Mode,
			BlockTimeout: in.Redis.BlockTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis consumer: %w", err)
		}
		logger.Infof("Input mode: redis (%s)", in.Redis.Key)
		return c, nil
	}
	return nil, fmt.Errorf("unknown input mode: %s", in.Mode)
}

func newEngine(rc config.RulesConfig) (rules.Engine, error) {
	if !rc.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(rc.Path) == "" {
		logger.Warnf("Rules enabled but rules.path is empty; risk rules disabled")
		return nil, nil
	}
	engine, stats, err := rules.NewSigmaEngine(rc.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load Sigma rules from %s: %w", rc.Path, err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedDatasource,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; risk rules are effectively disabled")
	}
	return engine, nil
}

func newSinks(rg config.RiskGraphConfig) (sinks pipeline.Sinks, err error) {
	defer func() {
		if err != nil {
			closeSinks(sinks)
		}
	}()

	switch rg.Output.Mode {
	case "file":
		w, err := docfile.NewWriter(rg.Output.File.Path)
		if err != nil {
			return sinks, fmt.Errorf("failed to create document file writer: %w", err)
		}
		sinks.Documents = w
		logger.Infof("Output mode: file (%s)", rg.Output.File.Path)
	case "redis":
		w, err := docredis.NewWriter(docredis.Config{
			Addr:     rg.Output.Redis.Addr,
			Password: rg.Output.Redis.Password,
			DB:       rg.Output.Redis.DB,
			Key:      rg.Output.Redis.Key,
			Mode:     rg.Output.Redis.Mode,
			TTL:      rg.Output.Redis.TTL,
		})
		if err != nil {
			return sinks, fmt.Errorf("failed to create document Redis writer: %w", err)
		}
		sinks.Documents = w
		logger.Infof("Output mode: redis (%s)", rg.Output.Redis.Key)
	case "none":
	default:
		return sinks, fmt.Errorf("unknown output mode: %s", rg.Output.Mode)
	}

	if rg.Rules.Enabled && rg.Findings.Enabled {
		switch rg.Findings.Mode {
		case "file":
			w, err := jsonl.NewWriter[*models.RiskFinding](rg.Findings.File.Path, "finding")
			if err != nil {
				return sinks, fmt.Errorf("failed to create finding file writer: %w", err)
			}
			sinks.Findings = w
			logger.Infof("Finding output mode: file (%s)", rg.Findings.File.Path)
		case "clickhouse":
			ch := rg.Findings.ClickHouse
			w, err := findingclickhouse.NewWriter(findingclickhouse.Config{
				URL:      ch.URL,
				Database: ch.Database,
				Table:    ch.Table,
				Username: ch.Username,
				Password: ch.Password,
				Timeout:  ch.Timeout,
				Headers:  ch.Headers,
			})
			if err != nil {
				return sinks, fmt.Errorf("failed to create finding ClickHouse writer: %w", err)
			}
			sinks.Findings = w
			logger.Infof("Finding output mode: clickhouse (%s/%s.%s)", ch.URL, ch.Database, ch.Table)
		default:
			return sinks, fmt.Errorf("unknown finding output mode: %s", rg.Findings.Mode)
		}
	}

	if rg.Alerts.Enabled {
		switch rg.Alerts.Mode {
		case "file":
			w, err := jsonl.NewWriter[*models.RiskAlert](rg.Alerts.File.Path, "alert")
			if err != nil {
				return sinks, fmt.Errorf("failed to create alert file writer: %w", err)
			}
			sinks.Alerts = w
			logger.Infof("Alert output mode: file (%s)", rg.Alerts.File.Path)
		case "http":
			w, err := alerthttp.NewWriter(alerthttp.Config{
				URL:     rg.Alerts.HTTP.URL,
				Timeout: rg.Alerts.HTTP.Timeout,
				Headers: rg.Alerts.HTTP.Headers,
			})
			if err != nil {
				return sinks, fmt.Errorf("failed to create alert HTTP writer: %w", err)
			}
			sinks.Alerts = w
			logger.Infof("Alert output mode: http (%s)", rg.Alerts.HTTP.URL)
		default:
			return sinks, fmt.Errorf("unknown alert output mode: %s", rg.Alerts.Mode)
		}
	}

	if rg.OwnerIndex.Enabled {
		store, err := newOwnerIndex(rg.OwnerIndex)
		if err != nil {
			return sinks, err
		}
		sinks.OwnerIndex = store
		logger.Infof("Owner index: redis (%s, prefix %s)", rg.OwnerIndex.Addr, rg.OwnerIndex.KeyPrefix)
	}
	return sinks, nil
}

func newOwnerIndex(oc config.OwnerIndexConfig) (*ownerindex.RedisStore, error) {
	store, err := ownerindex.NewRedisStore(ownerindex.RedisConfig{
		Addr:      oc.Addr,
		Password:  oc.Password,
		DB:        oc.DB,
		KeyPrefix: oc.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create owner index: %w", err)
	}
	return store, nil
}

func closeSinks(s pipeline.Sinks) {
	if s.Documents != nil {
		s.Documents.Close()
	}
	if s.Findings != nil {
		s.Findings.Close()
	}
	if s.Alerts != nil {
		s.Alerts.Close()
	}
	if s.OwnerIndex != nil {
		s.OwnerIndex.Close()
	}
}
