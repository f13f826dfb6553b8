package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hiro-hcu/srv6-orchestrator/internal/applier"
	"github.com/hiro-hcu/srv6-orchestrator/internal/config"
	"github.com/hiro-hcu/srv6-orchestrator/internal/orcherr"
	"github.com/hiro-hcu/srv6-orchestrator/internal/provision"
)

var (
	provisionConfigPath string
	provisionEdge       string
	provisionSetup      bool
	provisionVerify     bool
	provisionCleanup    bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Install or verify an edge router's routing tables, fwmark rules, and Flow-Label classifier",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := config.Load(provisionConfigPath)
		if err != nil {
			logrus.WithError(err).Fatal("failed to load config")
		}

		edge, err := edgeFor(cfg, provisionEdge)
		if err != nil {
			logrus.WithError(err).Fatal("invalid --edge")
		}

		conn, err := applier.Dial(applier.Credentials{
			Host:    edge.Address,
			Port:    edge.ShellPort,
			User:    edge.ShellUser,
			Pass:    edge.ShellPass,
			Timeout: edge.Timeout(),
		})
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to edge router")
		}
		defer conn.Close()

		p := provision.New(conn, provision.Config{
			Tables:          cfg.Tables,
			FlowLabelValues: cfg.FlowLabelValues,
			DefaultMark:     cfg.DefaultMark,
			MangleTable:     edge.MangleTable,
			Chain:           edge.Chain,
		})

		switch {
		case provisionCleanup:
			if err := p.Cleanup(); err != nil {
				logrus.WithError(err).Fatal("cleanup failed")
			}
			logrus.Info("cleanup complete")
		case provisionVerify:
			ok, err := p.Verify()
			if err != nil {
				logrus.WithError(err).Fatal("verify failed")
			}
			if !ok {
				logrus.Fatal("verification failed: one or more tables/rules missing")
			}
			logrus.Info("verification passed")
		default:
			if err := p.Setup(); err != nil {
				logrus.WithError(err).Fatal("setup failed")
			}
			logrus.Info("setup complete")
		}
	},
}

func errUnknownEdge(name string) error {
	return fmt.Errorf("unknown edge %q (want ingress or egress)", name)
}

func edgeFor(cfg config.Config, name string) (config.Edge, error) {
	switch name {
	case "ingress":
		return cfg.Ingress, nil
	case "egress":
		return cfg.Egress, nil
	default:
		return config.Edge{}, &orcherr.ConfigError{Field: "edge", Err: errUnknownEdge(name)}
	}
}

func init() {
	provisionCmd.Flags().StringVar(&provisionConfigPath, "config", "config.yaml", "Path to the orchestrator config file")
	provisionCmd.Flags().StringVar(&provisionEdge, "edge", "ingress", "Which edge router to provision: ingress or egress")
	provisionCmd.Flags().BoolVar(&provisionSetup, "setup", false, "Install the edge router's tables, fwmark rules, and classifier (the default when neither --verify nor --cleanup is given)")
	provisionCmd.Flags().BoolVar(&provisionVerify, "verify", false, "Verify the edge router's provisioning state instead of installing it")
	provisionCmd.Flags().BoolVar(&provisionCleanup, "cleanup", false, "Remove the fwmark rules installed by setup")
}
