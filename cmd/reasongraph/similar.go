package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/aixgo-dev/reasongraph/internal/reasoning"
)

func newSimilarCmd(root *rootOptions) *cobra.Command {
	var (
		k       int
		rebuild bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "similar <text>",
		Short: "List stored questions and steps nearest to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.query.Similar(cmd.Context(), strings.Join(args, " "), k, rebuild)
			if err != nil {
				return err
			}
			p := &printer{w: cmd.OutOrStdout(), jsonOut: jsonOut}
			return p.print(reasoning.SimilarEvent{Items: items})
		},
	}

	cmd.Flags().IntVarP(&k, "top", "k", reasoning.DefaultSimilarTopK, "number of results")
	cmd.Flags().BoolVar(&rebuild, "rebuild", true, "rebuild the index from the store first")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	return cmd
}
