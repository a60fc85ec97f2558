// datashell is an interactive shell for querying local data files with SQL.
//
// Configuration (flags or env vars):
//
//	--log-level, DATASHELL_LOG_LEVEL         debug|info|warn|error (default warn)
//	--log-format, DATASHELL_LOG_FORMAT       text|json (default text)
//	--history-file, DATASHELL_HISTORY_FILE   default ~/.datashell_history
//	--queue-size, DATASHELL_QUEUE_SIZE       default 64
//	--max-rows, DATASHELL_RENDER_MAX_ROWS    default 1000
//	--submit-timeout, DATASHELL_SUBMIT_TIMEOUT  default 0 (wait forever)
//
// Usage:
//
//	datashell --connect trips.csv -c 'head trips'
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/bawdo/datashell/internal/config"
	"github.com/bawdo/datashell/internal/dispatch"
	"github.com/bawdo/datashell/internal/engine"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var commands, sources []string
	cmd := &cobra.Command{
		Use:           "datashell",
		Short:         "Query CSV, NDJSON and parquet files with SQL",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cfg, sources, commands)
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringArrayVarP(&commands, "command", "c", nil, "run a shell command and exit (repeatable)")
	cmd.Flags().StringArrayVar(&sources, "connect", nil, "register a data source at startup (repeatable)")
	return cmd
}

func run(cfg config.Config, sources, commands []string) error {
	logger := config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	actor, err := dispatch.Start(func() (engine.Backend, error) {
		return engine.NewSQLiteBackend(engine.WithMaxRows(cfg.MaxRows))
	}, dispatch.WithQueueSize(cfg.QueueSize), dispatch.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := actor.Close(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	sess := NewSession(actor.Handle())
	sess.timeout = cfg.SubmitTimeout

	for _, src := range sources {
		if err := sess.connect([]string{src}); err != nil && !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "  Warning: connect %s failed: %v\n", src, err)
		}
	}

	if len(commands) > 0 {
		return runCommands(sess, commands)
	}
	return repl(sess, cfg)
}

// runCommands executes commands in order and stops at the first failure.
func runCommands(sess *Session, commands []string) error {
	for _, line := range commands {
		if isExit(line) {
			return nil
		}
		if err := sess.Execute(line); err != nil {
			return fmt.Errorf("%s: %w", strings.TrimSpace(line), err)
		}
	}
	return nil
}

func repl(sess *Session, cfg config.Config) error {
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          "datashell> ",
		HistoryFile:     cfg.HistoryFile,
		HistoryLimit:    cfg.HistoryLimit,
		AutoComplete:    &replCompleter{sess: sess},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Println("datashell - type 'help' for commands, 'exit' to quit")
	fmt.Println()

	for {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isExit(line) {
			break
		}
		if err := sess.Execute(line); err != nil && !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		}
	}
	fmt.Println()
	return nil
}

func isExit(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	return lower == "exit" || lower == "quit"
}
