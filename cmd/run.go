package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hiro-hcu/srv6-orchestrator/internal/config"
	"github.com/hiro-hcu/srv6-orchestrator/internal/orchestrator"
	"github.com/hiro-hcu/srv6-orchestrator/internal/sampler"
	"github.com/hiro-hcu/srv6-orchestrator/internal/topology"
)

var (
	runConfigPath string
	runOnce       bool
	runMode       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestration loop",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := config.Load(runConfigPath)
		if err != nil {
			logrus.WithError(err).Fatal("failed to load config")
		}

		mode, err := parseMode(runMode)
		if err != nil {
			logrus.WithError(err).Fatal("invalid --mode")
		}

		topo := topology.Reference()
		store := sampler.NewRRDStore(cfg.SampleTimeout())
		orch := orchestrator.New(topo, store, cfg, orchestrator.DialShell, mode)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logrus.WithFields(logrus.Fields{
			"mode":          mode,
			"poll_interval": cfg.PollInterval(),
			"once":          runOnce,
		}).Info("starting orchestration loop")

		if err := orch.Run(ctx, runOnce); err != nil && err != context.Canceled {
			logrus.WithError(err).Fatal("orchestration loop exited with error")
		}
		logrus.Info("orchestration loop stopped")
	},
}

func parseMode(s string) (orchestrator.Mode, error) {
	switch orchestrator.Mode(s) {
	case orchestrator.Bidirectional, orchestrator.ForwardOnly, orchestrator.AnalyzeOnce:
		return orchestrator.Mode(s), nil
	default:
		return "", &modeError{value: s}
	}
}

type modeError struct{ value string }

func (e *modeError) Error() string {
	return "unknown mode " + e.value + " (want bidirectional, forward_only, or analyze_once)"
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "config.yaml", "Path to the orchestrator config file")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single cycle and exit, instead of looping")
	runCmd.Flags().StringVar(&runMode, "mode", string(orchestrator.Bidirectional), "Loop mode: bidirectional, forward_only, analyze_once")
}
