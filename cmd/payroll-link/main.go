package main

import (
	"fmt"
	"os"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "payroll-link",
		Short:         "Payroll provider connection pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	logger := func() glog.Logger {
		return newCLILogger(os.Stderr, logLevel)
	}
	rootCmd.AddCommand(serveCmd(logger))
	rootCmd.AddCommand(modeCmd())
	rootCmd.AddCommand(simulateCmd(logger))

	return rootCmd
}
