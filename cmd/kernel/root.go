// Command kernel runs the execution-plane seed scenarios against an
// in-memory wiring of the kernel's components, for local demonstration and
// smoke-testing. Grounded on the pack's cobra root-command convention
// (tim-coutinho-agentops/cli/cmd/ao): a package-level rootCmd, subcommands
// registered via init(), RunE handlers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goa-design/kernel/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kernel",
	Short: "Run execution-plane seed scenarios against an in-memory kernel",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a kernel config YAML file (optional)")
}

func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config: falling back to defaults:", err)
		return config.Default()
	}
	return cfg
}

func newLogger() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return l
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
