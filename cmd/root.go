package cmd

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const usage = `cgbench runs a command inside a dedicated cgroup and records how its
			   resource counters (memory usage by default) change while it runs.
			   Every row of the log is written at a point of change.`

var debug bool

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	// stdout belongs to the benchmarked command.
	log.SetOutput(os.Stderr)

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(
		NewRunCommand(),
		NewInfoCommand(),
		initCommand,
	)
}

var rootCmd = &cobra.Command{
	Use:   "cgbench",
	Short: "cgroup resource usage recorder.",
	Long:  usage,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
