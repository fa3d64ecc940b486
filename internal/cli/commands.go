package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xab-mack/solbench/internal/analyzers"
	"github.com/xab-mack/solbench/internal/config"
	"github.com/xab-mack/solbench/internal/engine"
	"github.com/xab-mack/solbench/internal/locator"
	"github.com/xab-mack/solbench/internal/model"
	"github.com/xab-mack/solbench/internal/rawstore"
	"github.com/xab-mack/solbench/internal/report"
	"github.com/xab-mack/solbench/internal/sandbox"
	"github.com/xab-mack/solbench/internal/tui"
)

func AddCommands(root *cobra.Command) {
	root.AddCommand(newRunCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAnalyzersCmd())
}

func newRunCmd() *cobra.Command {
	var (
		contractsDir string
		outputDir    string
		mode         string
		analyzerList []string
		timeoutSec   int
		processes    int
		memLimit     string
		cpuQuota     int
		format       string
		keepRaw      bool
		useTUI       bool
		verbose      bool
	)
	cmd := &cobra.Command{
		Use:   "run [contracts-dir]",
		Short: "Run the configured analyzers over a corpus of contract artifacts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				contractsDir = args[0]
			}
			if contractsDir == "" {
				contractsDir = "."
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			cfg, cfgPath, err := config.Load(contractsDir)
			if err != nil {
				return err
			}
			if cfgPath != "" {
				log.Debug("loaded config file", "path", cfgPath)
			}
			cfg.ContractsDir = contractsDir
			flags := cmd.Flags()
			if flags.Changed("output") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("mode") {
				cfg.Mode = mode
			}
			if flags.Changed("analyzers") {
				cfg.Analyzers = analyzerList
			}
			if flags.Changed("timeout") {
				cfg.TimeoutSec = timeoutSec
			}
			if flags.Changed("processes") {
				cfg.Processes = processes
			}
			if flags.Changed("mem-limit") {
				cfg.MemLimit = memLimit
			}
			if flags.Changed("cpu-quota") {
				cfg.CPUQuota = cpuQuota
			}
			if flags.Changed("format") {
				cfg.Format = format
			}
			if flags.Changed("keep-raw") {
				cfg.KeepRaw = keepRaw
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runAnalysis(ctx, cfg, log, useTUI, cmd)
		},
	}
	cmd.Flags().StringVarP(&contractsDir, "contracts", "c", "", "Directory containing contract artifacts")
	cmd.Flags().StringVarP(&outputDir, "output", "o", config.Default().OutputDir, "Directory to write run reports to")
	cmd.Flags().StringVarP(&mode, "mode", "m", config.Default().Mode, "Artifact mode: source|runtime")
	cmd.Flags().StringSliceVarP(&analyzerList, "analyzers", "a", config.Default().Analyzers, "Analyzers to run")
	cmd.Flags().IntVarP(&timeoutSec, "timeout", "t", config.Default().TimeoutSec, "Per-job wall-clock timeout in seconds")
	cmd.Flags().IntVarP(&processes, "processes", "p", config.Default().Processes, "Number of concurrent executor slots")
	cmd.Flags().StringVar(&memLimit, "mem-limit", config.Default().MemLimit, "Per-job memory ceiling (e.g. 512m, 4g)")
	cmd.Flags().IntVar(&cpuQuota, "cpu-quota", 0, "Per-job CPU quota as a percentage (best-effort)")
	cmd.Flags().StringVarP(&format, "format", "f", config.Default().Format, "Report format: json|sarif")
	cmd.Flags().BoolVar(&keepRaw, "keep-raw", false, "Retain per-job raw analyzer output")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Render a live job-status board")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	return cmd
}

// runAnalysis wires locator, scheduler, executor and aggregator for one run.
// Per-job failures are report data; only locator, configuration and
// serialization errors make this return non-nil.
func runAnalysis(ctx context.Context, cfg config.Config, log *slog.Logger, useTUI bool, cmd *cobra.Command) error {
	m, _ := model.ParseMode(cfg.Mode)
	arts, warns, err := locator.Enumerate(cfg.ContractsDir, m)
	if err != nil {
		return err
	}
	for _, w := range warns {
		log.Warn("locator", "warning", w)
	}

	limits, err := cfg.Limits()
	if err != nil {
		return err
	}
	reg := analyzers.Default()
	jobs, err := engine.BuildJobs(arts, cfg.Analyzers, reg, limits)
	if err != nil {
		return err
	}
	log.Info("run planned",
		"artifacts", len(arts),
		"analyzers", len(cfg.Analyzers),
		"jobs", len(jobs),
		"processes", cfg.Processes,
	)

	runID := uuid.New().String()
	outDir := filepath.Join(cfg.OutputDir,
		fmt.Sprintf("run_%s_%s", time.Now().Format("20060102_150405"), runID[:8]))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var store *rawstore.Store
	if cfg.KeepRaw {
		store, err = rawstore.New(outDir)
		if err != nil {
			return err
		}
	}

	sched := engine.NewScheduler(cfg.Processes, reg, sandbox.New(log), log)

	var events chan engine.Event
	if useTUI {
		events = make(chan engine.Event, 4*len(jobs))
		sched.OnEvent(func(e engine.Event) {
			// Non-blocking send; drop if the board lags.
			select {
			case events <- e:
			default:
			}
		})
	}

	agg := report.NewAggregator(m, cfg.ContractsDir, warns)
	results := sched.Run(ctx, jobs)

	collect := func() {
		for res := range results {
			rawPath := ""
			if store != nil && len(res.Outcome.Raw) > 0 {
				p, err := store.Put(res.Outcome.Job.Artifact, res.Outcome.Job.Analyzer, res.Outcome.Raw)
				if err != nil {
					log.Warn("raw capture not retained", "error", err)
				} else {
					rawPath = p
				}
			}
			agg.Add(res.Outcome, res.Findings, rawPath)
		}
		if events != nil {
			close(events)
		}
	}

	if useTUI {
		done := make(chan struct{})
		go func() {
			collect()
			close(done)
		}()
		if err := tui.Run(len(jobs), events); err != nil {
			log.Warn("tui exited", "error", err)
		}
		<-done
	} else {
		collect()
	}

	if ctx.Err() != nil {
		log.Warn("run cancelled; report covers finished jobs only")
	}

	rep := agg.Report(runID)
	var data []byte
	name := "report.json"
	if cfg.Format == "sarif" {
		data, err = rep.EncodeSARIF()
		name = "report.sarif"
	} else {
		data, err = rep.EncodeJSON()
	}
	if err != nil {
		return fmt.Errorf("serialize report: %w", err)
	}
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	log.Info("run finished",
		"jobs", rep.Summary.Jobs,
		"findings", rep.Summary.Findings,
		"report", path,
	)
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
