package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsguard/opsguard/internal/version"
)

var (
	// configPath to the configuration YAML file; empty uses defaults and env.
	configPath string
	// logLevel overrides log.level from the configuration.
	logLevel string
)

func main() {
	root := newRootCommand()
	version.AttachCobraVersionCommand(root)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the alerting core with its HTTP and gRPC surfaces.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	root := &cobra.Command{
		Use:          "opsguard",
		Short:        "Operations alerting, escalation and emergency-protocol orchestration.",
		Args:         cobra.NoArgs,
		RunE:         runServe,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.AddCommand(serveCmd)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return serve(ctx, configPath, logLevel)
}

