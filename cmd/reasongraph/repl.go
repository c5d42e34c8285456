package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aixgo-dev/reasongraph/internal/reasoning"
)

const replHelp = `Type a question to start a reasoning session.
Commands:
  :similar <text>   list stored texts nearest to text
  :help             show this help
  :quit             exit`

func newReplCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Ask questions interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			return repl(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".reasongraph_history")
}

func repl(ctx context.Context, a *app, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := historyPath()
	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if history == "" {
			return
		}
		f, err := os.Create(history)
		if err != nil {
			a.logger.Debug("could not write history", zap.Error(err))
			return
		}
		defer f.Close()
		_, _ = line.WriteHistory(f)
	}()

	p := &printer{w: out}
	fmt.Fprintln(out, replHelp)

	for {
		input, err := line.Prompt("reasongraph> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		quit, err := command(ctx, a, p, input)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// command runs one line of REPL input. The returned error is an output
// failure; query and session errors are printed and the REPL continues.
func command(ctx context.Context, a *app, p *printer, input string) (quit bool, err error) {
	switch {
	case input == ":quit" || input == ":q":
		return true, nil
	case input == ":help":
		_, err = fmt.Fprintln(p.w, replHelp)
		return false, err
	case strings.HasPrefix(input, ":similar "):
		items, err := a.query.Similar(ctx, strings.TrimPrefix(input, ":similar "), a.cfg.Index.SimilarTopK, true)
		if err != nil {
			_, werr := fmt.Fprintln(p.w, "error:", err)
			return false, werr
		}
		return false, p.print(reasoning.SimilarEvent{Items: items})
	default:
		sessionCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		if err := ask(sessionCtx, a.query, input, p); err != nil {
			_, werr := fmt.Fprintln(p.w, "error:", err)
			return false, werr
		}
		return false, nil
	}
}
