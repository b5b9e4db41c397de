package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"riskgraph/internal/codec"
	"riskgraph/internal/graph/assemble"
	"riskgraph/internal/output/docfile"
	"riskgraph/internal/query"
	"riskgraph/pkg/models"
)

var newAssetFlags struct {
	code   string
	label  string
	lang   int
	typ    int
	mode   int
	scope  int
	output string
}

var newAssetCmd = &cobra.Command{
	Use:   "new-asset",
	Short: "Create a standalone library object with a new asset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var labels models.Labels
		switch newAssetFlags.lang {
		case 1:
			labels.Label1 = newAssetFlags.label
		case 2:
			labels.Label2 = newAssetFlags.label
		case 3:
			labels.Label3 = newAssetFlags.label
		case 4:
			labels.Label4 = newAssetFlags.label
		default:
			return fmt.Errorf("--lang must be between 1 and 4")
		}

		obj, asset, err := query.NewObject(query.NewAssetSpec{
			Code:   newAssetFlags.code,
			Labels: labels,
			Type:   newAssetFlags.typ,
			Mode:   newAssetFlags.mode,
			Scope:  newAssetFlags.scope,
		})
		if err != nil {
			return err
		}

		doc := assemble.NewAssembler(assemble.Options{}).Standalone(obj, asset)
		data, err := codec.EncodeIndent(doc, "  ")
		if err != nil {
			return fmt.Errorf("failed to encode object: %w", err)
		}

		if newAssetFlags.output == "" || newAssetFlags.output == "-" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		w, err := docfile.NewWriter(newAssetFlags.output)
		if err != nil {
			return err
		}
		defer w.Close()
		return w.WriteDocument(cmd.Context(), data)
	},
}

func init() {
	f := newAssetCmd.Flags()
	f.StringVar(&newAssetFlags.code, "code", "", "asset code (required)")
	f.StringVar(&newAssetFlags.label, "label", "", "asset and object label")
	f.IntVar(&newAssetFlags.lang, "lang", 2, "language index 1-4 of --label")
	f.IntVar(&newAssetFlags.typ, "type", 1, "asset type (1 primary, 2 secondary)")
	f.IntVar(&newAssetFlags.mode, "mode", 0, "object mode (0 generic, 1 specific)")
	f.IntVar(&newAssetFlags.scope, "scope", 1, "object scope (1 local, 2 global)")
	f.StringVarP(&newAssetFlags.output, "output", "o", "", "output file (default stdout)")
	_ = newAssetCmd.MarkFlagRequired("code")
}
