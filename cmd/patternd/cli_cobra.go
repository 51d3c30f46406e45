package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dotsetgreg/patternd/pkg/logger"
	"github.com/dotsetgreg/patternd/pkg/memory"
)

const maxLineBytes = 1 << 20

var errStorageDisabled = errors.New("storage is disabled in config")

type cliOptions struct {
	configPath string
}

func executeCLI() error {
	root := buildRootCommand()
	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func buildRootCommand() *cobra.Command {
	var showVersion bool
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "patternd",
		Short: "Pattern learning and memory consolidation engine",
		Long: strings.TrimSpace(`patternd learns recurring patterns from interaction events.

Feed it JSON-lines observations to consolidate them into long-term patterns,
then query per-entity travel insights, recommendations and transfer exports.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVar(&opts.configPath, "config", getConfigPath(), "Path to config.json")

	root.AddCommand(newReplayCommand(opts))
	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newReplCommand(opts))
	root.AddCommand(newInsightsCommand(opts))
	root.AddCommand(newPatternsCommand(opts))
	root.AddCommand(newStatusCommand(opts))
	root.AddCommand(newVersionCommand())

	return root
}

func newReplayCommand(opts *cliOptions) *cobra.Command {
	var (
		every  int
		output string
		export string
	)

	cmd := &cobra.Command{
		Use:   "replay [file...]",
		Short: "Replay JSON-lines observations through the engine",
		Long: strings.TrimSpace(`Replay reads one observation per line from the given files, or stdin when
no file or "-" is given, consolidates, and prints the requested view.`),
		Example: strings.Join([]string{
			"  patternd replay events.jsonl",
			"  patternd replay --every 100 --output report events.jsonl",
			"  cat events.jsonl | patternd replay --export user-42",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			engine, err := openEngine(cfg, nil)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				args = []string{"-"}
			}
			for _, name := range args {
				if err := replayInput(cmd, engine, name, every); err != nil {
					_ = engine.Close()
					return err
				}
			}
			engine.ConsolidateNow()

			var view any
			switch {
			case strings.TrimSpace(export) != "":
				view = engine.ExportForTransfer(strings.TrimSpace(export))
			default:
				view, err = replayView(engine, output)
				if err != nil {
					_ = engine.Close()
					return err
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), view); err != nil {
				_ = engine.Close()
				return err
			}
			return engine.Close()
		},
	}

	cmd.Flags().IntVarP(&every, "every", "e", 0, "Consolidate after every N lines (0 consolidates once at the end)")
	cmd.Flags().StringVarP(&output, "output", "o", "stats", "View to print: stats, report, insights, patterns, knowledge, episodes")
	cmd.Flags().StringVar(&export, "export", "", "Print the transfer record for this entity instead")

	return cmd
}

func replayInput(cmd *cobra.Command, engine *memory.Engine, name string, every int) error {
	var r io.Reader = cmd.InOrStdin()
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer f.Close()
		r = f
	}

	n, err := feedLines(r, engine, every)
	logger.InfoCF("cli", "Replay input consumed", map[string]interface{}{
		"input": name,
		"lines": n,
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

// feedLines ingests every non-empty line of r and returns how many were
// ingested.
func feedLines(r io.Reader, engine *memory.Engine, every int) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	n := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		engine.ObserveJSON([]byte(line))
		n++
		if every > 0 && n%every == 0 {
			engine.ConsolidateNow()
		}
	}
	return n, scanner.Err()
}

func replayView(engine *memory.Engine, output string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stats":
		return engine.Stats(), nil
	case "report":
		return engine.Report(), nil
	case "insights":
		return engine.AllInsights(), nil
	case "patterns":
		return engine.Patterns(), nil
	case "knowledge":
		return engine.Knowledge(""), nil
	case "episodes":
		return engine.Episodes(0), nil
	default:
		return nil, fmt.Errorf("unknown output %q", output)
	}
}

func newRunCommand(opts *cliOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine on a stdin observation stream",
		Long: strings.TrimSpace(`Run starts the background consolidation loop and ingests JSON-lines
observations from stdin until EOF or interrupt. Prometheus metrics are served
on --metrics-addr when set.`),
		Example: strings.Join([]string{
			"  producer | patternd run",
			"  producer | patternd run --metrics-addr :9464",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			reg := prometheus.NewRegistry()
			engine, err := openEngine(cfg, reg)
			if err != nil {
				return err
			}
			engine.Start()

			var srv *http.Server
			if strings.TrimSpace(metricsAddr) != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.ErrorCF("cli", "Metrics server failed", map[string]interface{}{
							"addr":  metricsAddr,
							"error": err.Error(),
						})
					}
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			done := make(chan error, 1)
			go func() {
				_, err := feedLines(cmd.InOrStdin(), engine, 0)
				done <- err
			}()

			var readErr error
			select {
			case readErr = <-done:
			case <-ctx.Done():
				logger.InfoC("cli", "Shutting down")
			}

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = srv.Shutdown(shutdownCtx)
				cancel()
			}
			if err := engine.Close(); err != nil {
				return err
			}
			return readErr
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve /metrics on")

	return cmd
}

func newReplCommand(opts *cliOptions) *cobra.Command {
	var entity string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive session that feeds typed messages to the engine",
		Long: strings.TrimSpace(`Each line is ingested as a user message from --entity. Lines starting
with "{" are parsed as wire observations. Type :help for commands.`),
		Example: "  patternd repl --entity user-42",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			engine, err := openEngine(cfg, nil)
			if err != nil {
				return err
			}
			engine.Start()

			fmt.Fprintf(cmd.OutOrStdout(), "%s interactive mode (Ctrl+C to exit)\n\n", appName)
			interactiveMode(cmd.OutOrStdout(), engine, strings.TrimSpace(entity))
			return engine.Close()
		},
	}

	cmd.Flags().StringVarP(&entity, "entity", "u", "cli", "Entity id for typed messages")

	return cmd
}

func newInsightsCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "insights <entity_id>",
		Short:   "Show the latest stored insight snapshot for an entity",
		Args:    cobra.ExactArgs(1),
		Example: "  patternd insights user-42",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			in, ok, err := store.LatestEntityInsight(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no insight snapshot for %q", args[0])
			}
			out := struct {
				Insight     memory.Insight      `json:"insight"`
				Preferences *memory.Preferences `json:"preferences,omitempty"`
			}{Insight: in}
			prefs, ok, err := store.EntityPreferences(ctx, args[0])
			if err != nil {
				return err
			}
			if ok {
				out.Preferences = &prefs
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newPatternsCommand(opts *cliOptions) *cobra.Command {
	var (
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "patterns",
		Short:   "List persisted long-term patterns",
		Example: "  patternd patterns --kind user_message --limit 20",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			patterns, err := store.LoadPatterns(ctx, cfg.Storage.LoadMinStrength, limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			shown := 0
			for _, p := range patterns {
				if kind != "" && string(p.Kind) != kind {
					continue
				}
				fmt.Fprintf(w, "%s  %-18s strength=%.3f occurrences=%d last_seen=%s\n",
					p.ID, p.Kind, p.Strength, p.Occurrences, p.LastSeenAt.UTC().Format(time.RFC3339))
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(w, "No patterns stored.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Only show patterns of this observation kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of patterns to load")

	return cmd
}

func newStatusCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"s"},
		Short:   "Show config and storage status",
		Example: "  patternd status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			w := cmd.OutOrStdout()

			fmt.Fprintf(w, "%s Status\n", appName)
			fmt.Fprintf(w, "Version: %s\n", formatVersion())
			fmt.Fprintln(w)

			if _, err := os.Stat(opts.configPath); err == nil {
				fmt.Fprintln(w, "Config:", opts.configPath, "✓")
			} else {
				fmt.Fprintln(w, "Config:", opts.configPath, "defaults")
			}
			if !cfg.Storage.Enabled {
				fmt.Fprintln(w, "Storage: disabled")
			} else if _, err := os.Stat(cfg.StoragePath()); err == nil {
				fmt.Fprintln(w, "Storage:", cfg.StoragePath(), "✓")
			} else {
				fmt.Fprintln(w, "Storage:", cfg.StoragePath(), "not initialized")
			}

			e := cfg.Engine
			fmt.Fprintf(w, "Similarity threshold: %.2f\n", e.SimilarityThreshold)
			fmt.Fprintf(w, "Min occurrences: %d\n", e.MinOccurrences)
			fmt.Fprintf(w, "Decay rate: %.2f/day\n", e.DecayRate)
			fmt.Fprintf(w, "Consolidate every: %s\n", cfg.ConsolidateInterval())
			if s := strings.TrimSpace(cfg.Storage.SnapshotSchedule); s != "" {
				fmt.Fprintf(w, "Snapshot schedule: %s\n", s)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Example: "  patternd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd.OutOrStdout())
			return nil
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Fprintf(w, "  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Fprintf(w, "  Go: %s\n", goVer)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
