package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/crazyfrankie/cgbench/launcher"
)

var initCommand = &cobra.Command{
	Use:    launcher.InitCommand,
	Short:  "Init benchmark process",
	Long:   "Init benchmark process waits to be attached to its cgroup and runs the user's command. Do not call it outside",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		// RunInit only returns when the command could not be started.
		err := launcher.RunInit()
		log.Errorf("Failure: %v", err)
		os.Exit(launcher.ExitCode(err))
	},
}
