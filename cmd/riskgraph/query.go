package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"riskgraph/internal/codec"
	"riskgraph/internal/graph/ingest"
	"riskgraph/internal/graph/propagate"
	"riskgraph/internal/ownerindex"
	"riskgraph/internal/query"
	"riskgraph/pkg/models"
)

var queryFlags struct {
	by     string
	lang   int
	config string
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search a document or the owner index",
}

type searchFunc func(q *query.Querier, by, term string, lang int) (interface{}, error)

type search struct {
	use       string
	short     string
	defaultBy string
	run       searchFunc
}

var searches = []search{
	{"nodes", "Find instances by name or label", "name", func(q *query.Querier, by, term string, lang int) (interface{}, error) {
		switch by {
		case "name":
			return attributes(q.NodesByName(term, lang)), nil
		case "label":
			return attributes(q.NodesByLabel(term, lang)), nil
		}
		return nil, badBy(by)
	}},
	{"threats", "Find threats", "code", func(q *query.Querier, by, term string, lang int) (interface{}, error) {
		switch by {
		case "uuid":
			return one(q.ThreatByUUID(term))
		case "code":
			return q.ThreatsByCode(term), nil
		case "label":
			return q.ThreatsByLabel(term, lang), nil
		case "description":
			return q.ThreatsByDescription(term, lang), nil
		case "vulnerability":
			return q.ThreatsForVulnerability(term), nil
		}
		return nil, badBy(by)
	}},
	{"vulnerabilities", "Find vulnerabilities", "code", func(q *query.Querier, by, term string, lang int) (interface{}, error) {
		switch by {
		case "uuid":
			return one(q.VulnerabilityByUUID(term))
		case "code":
			return q.VulnerabilitiesByCode(term), nil
		case "label":
			return q.VulnerabilitiesByLabel(term, lang), nil
		case "description":
			return q.VulnerabilitiesByDescription(term, lang), nil
		}
		return nil, badBy(by)
	}},
	{"risks", "Find risks", "id", func(q *query.Querier, by, term string, _ int) (interface{}, error) {
		switch by {
		case "id":
			id, err := strconv.Atoi(term)
			if err != nil {
				return nil, fmt.Errorf("risk id %q is not an integer", term)
			}
			return one(q.RiskByID(id))
		case "node":
			id, err := strconv.Atoi(term)
			if err != nil {
				return nil, fmt.Errorf("node id %q is not an integer", term)
			}
			return q.RisksByNode(id), nil
		case "amv":
			return q.RisksByLink(term), nil
		case "threat":
			return q.RisksByThreat(term), nil
		case "vulnerability":
			return q.RisksByVulnerability(term), nil
		}
		return nil, badBy(by)
	}},
	{"links", "Find threat/vulnerability/asset links", "uuid", func(q *query.Querier, by, term string, _ int) (interface{}, error) {
		switch by {
		case "uuid":
			return one(q.LinkByUUID(term))
		case "threat":
			return q.LinksByThreat(term), nil
		case "vulnerability":
			return q.LinksByVulnerability(term), nil
		case "asset":
			return q.LinksByAsset(term), nil
		}
		return nil, badBy(by)
	}},
	{"measures", "Find measures", "code", func(q *query.Querier, by, term string, lang int) (interface{}, error) {
		switch by {
		case "uuid":
			return one(q.MeasureByUUID(term))
		case "code":
			return q.MeasuresByCode(term), nil
		case "referential":
			return q.MeasuresByReferentialLabel(term, lang), nil
		}
		return nil, badBy(by)
	}},
	{"recommendations", "List pending recommendations of a set", "set", func(q *query.Querier, by, term string, lang int) (interface{}, error) {
		if by != "set" {
			return nil, badBy(by)
		}
		return q.PendingBySetLabel(term, lang), nil
	}},
	{"catalog", "Find assets, referentials or recommendation sets by label", "asset", func(q *query.Querier, by, term string, lang int) (interface{}, error) {
		switch by {
		case "asset":
			return q.AssetsByLabel(term, lang), nil
		case "referential":
			return q.ReferentialsByLabel(term, lang), nil
		case "recset":
			return q.RecommendationSetsByLabel(term, lang), nil
		}
		return nil, badBy(by)
	}},
}

func init() {
	for _, s := range searches {
		s := s
		cmd := &cobra.Command{
			Use:   s.use + " <document> <term>",
			Short: s.short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				doc, err := loadDocument(args[0])
				if err != nil {
					return err
				}
				by := queryFlags.by
				if !cmd.Flags().Changed("by") {
					by = s.defaultBy
				}
				out, err := s.run(query.New(doc.Registry), by, args[1], queryFlags.lang)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			},
		}
		cmd.Flags().StringVar(&queryFlags.by, "by", s.defaultBy, "field to search")
		cmd.Flags().IntVar(&queryFlags.lang, "lang", query.AnyLanguage, "language index 1-4, 0 for any")
		queryCmd.AddCommand(cmd)
	}

	ownersCmd := &cobra.Command{
		Use:   "owners <kind> <id>",
		Short: "List instances owning an entity, from the Redis owner index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openOwnerIndex()
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			owners, err := store.FetchOwners(ctx, models.Kind(args[0]), args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), owners)
		},
	}
	nodeRefsCmd := &cobra.Command{
		Use:   "node-refs <node-id>",
		Short: "List entities attached to an instance, from the Redis owner index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("node id %q is not an integer", args[0])
			}
			store, err := openOwnerIndex()
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			refs, err := store.FetchNode(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), refs)
		},
	}
	for _, c := range []*cobra.Command{ownersCmd, nodeRefsCmd} {
		c.Flags().StringVar(&queryFlags.config, "config", "", "config file with the owner_index block")
		queryCmd.AddCommand(c)
	}
}

func openOwnerIndex() (*ownerindex.RedisStore, error) {
	cfg, _, err := loadConfig(queryFlags.config)
	if err != nil {
		return nil, err
	}
	return newOwnerIndex(cfg.RiskGraph.OwnerIndex)
}

func loadDocument(path string) (*ingest.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := ingest.LoadBytes(data, ingest.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	propagate.Run(doc.Registry)
	return doc, nil
}

func attributes(nodes []*models.Node) []models.NodeAttributes {
	out := make([]models.NodeAttributes, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Attributes())
	}
	return out
}

func one(v interface{}, ok bool) (interface{}, error) {
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return v, nil
}

func badBy(by string) error {
	return fmt.Errorf("unsupported --by %q", by)
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := codec.EncodeIndent(v, "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
