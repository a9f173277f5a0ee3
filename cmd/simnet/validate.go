package main

import (
	"encoding/json"
	"os"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/store"
	"github.com/OFFIS-RIT/coordnet/pkg/store/fs"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "validate <graph.json.gz>",
		Short: "Report non canonical node ids of a stored graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := fs.ReadGraphFile(args[0])
			if err != nil {
				return err
			}

			corrected, report := graph.CorrectNodeIDs(g)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}

			if output == "" {
				return nil
			}
			data, err := store.EncodeGraph(corrected)
			if err != nil {
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the corrected graph to this file")
	return cmd
}
