package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"riskgraph/internal/graph/assemble"
	"riskgraph/internal/output/docfile"
	"riskgraph/internal/pipeline"
	"riskgraph/internal/query"
	"riskgraph/pkg/models"
)

var editFlags struct {
	attach      []string
	resolve     []string
	comment     string
	rates       []string
	dropPending []string
	output      string
	withEval    bool
}

var editCmd = &cobra.Command{
	Use:   "edit <document>",
	Short: "Apply changes to a document and write it back",
	Long: `edit loads a document, applies the requested changes, recomputes the
risk caches and writes the result.

  --attach threat:<uuid>:<node>    attach an existing entity to another instance
  --resolve <risk>:<rec>[,<rec>]   resolve recommendations against a risk
  --rates <risk>:<threat>:<vul>    change the threat and vulnerability rates
  --drop-pending <code>            remove pending recommendations by code`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		p := pipeline.NewProcessor(pipeline.Config{
			Assemble: assemble.Options{WithEval: editFlags.withEval},
			Indent:   "  ",
		}, nil, nil, nil)

		doc, err := p.Load(ctx, data)
		if err != nil {
			return err
		}
		if err := applyEdits(query.NewMutator(doc.Registry)); err != nil {
			return err
		}
		res, err := p.Finish(ctx, doc)
		if err != nil {
			return err
		}

		if editFlags.output == "" || editFlags.output == "-" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(res.Output))
			return err
		}
		w, err := docfile.NewWriter(editFlags.output)
		if err != nil {
			return err
		}
		defer w.Close()
		return w.WriteDocument(ctx, res.Output)
	},
}

func init() {
	f := editCmd.Flags()
	f.StringArrayVar(&editFlags.attach, "attach", nil, "kind:id:node")
	f.StringArrayVar(&editFlags.resolve, "resolve", nil, "risk:rec[,rec]")
	f.StringVar(&editFlags.comment, "comment", "", "commentAfter for resolved recommendations")
	f.StringArrayVar(&editFlags.rates, "rates", nil, "risk:threatRate:vulnerabilityRate")
	f.StringArrayVar(&editFlags.dropPending, "drop-pending", nil, "pending recommendation code to remove")
	f.StringVarP(&editFlags.output, "output", "o", "", "output file (default stdout)")
	f.BoolVar(&editFlags.withEval, "with-eval", true, "mark the export as carrying evaluations")
}

func applyEdits(m *query.Mutator) error {
	for _, spec := range editFlags.attach {
		parts := strings.Split(spec, ":")
		if len(parts) != 3 {
			return fmt.Errorf("invalid --attach %q, want kind:id:node", spec)
		}
		node, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Errorf("invalid node in --attach %q", spec)
		}
		if err := m.AttachToNode(models.Kind(parts[0]), parts[1], node); err != nil {
			return err
		}
	}

	for _, spec := range editFlags.resolve {
		riskPart, recs, ok := strings.Cut(spec, ":")
		if !ok || recs == "" {
			return fmt.Errorf("invalid --resolve %q, want risk:rec[,rec]", spec)
		}
		risk, err := strconv.Atoi(riskPart)
		if err != nil {
			return fmt.Errorf("invalid risk in --resolve %q", spec)
		}
		if err := m.ResolveRecommendations(risk, strings.Split(recs, ","), editFlags.comment); err != nil {
			return err
		}
	}

	for _, spec := range editFlags.rates {
		parts := strings.Split(spec, ":")
		if len(parts) != 3 {
			return fmt.Errorf("invalid --rates %q, want risk:threat:vulnerability", spec)
		}
		nums := make([]int, 3)
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("invalid number %q in --rates %q", p, spec)
			}
			nums[i] = n
		}
		if err := m.SetRiskRates(nums[0], nums[1], nums[2]); err != nil {
			return err
		}
	}

	if len(editFlags.dropPending) > 0 {
		codes := make(map[string]struct{}, len(editFlags.dropPending))
		for _, c := range editFlags.dropPending {
			codes[c] = struct{}{}
		}
		m.RemovePending(func(r *models.Recommendation) bool {
			_, ok := codes[r.Code]
			return ok
		})
	}
	return nil
}
