package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aixgo-dev/reasongraph/internal/reasoning"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one reasoning session and print its events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			p := &printer{w: cmd.OutOrStdout(), jsonOut: jsonOut}
			return ask(ctx, a.query, strings.Join(args, " "), p)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print events as JSON lines")
	return cmd
}

func ask(ctx context.Context, q *reasoning.QueryService, question string, p *printer) error {
	for ev, err := range q.Query(ctx, question) {
		if err != nil {
			return err
		}
		if err := p.print(ev); err != nil {
			return err
		}
	}
	return nil
}
