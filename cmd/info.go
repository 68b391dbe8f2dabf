package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crazyfrankie/cgbench/bench"
	"github.com/crazyfrankie/cgbench/sys"
)

func NewInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info RECORD",
		Short: "Show the record of a run, e.g. mem.csv.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("info requires 1 argument")
			}
			return showRunInfo(args[0])
		},
	}

	return cmd
}

func showRunInfo(path string) error {
	info, err := bench.Load(sys.HostFS{}, path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 12, 1, 3, ' ', 0)
	fmt.Fprintf(w, "COMMAND\t%s\n", info.Command)
	fmt.Fprintf(w, "PID\t%d\n", info.PID)
	fmt.Fprintf(w, "STATUS\t%s\n", info.Status)
	fmt.Fprintf(w, "EXIT CODE\t%d\n", info.ExitCode)
	if info.Signal != "" {
		fmt.Fprintf(w, "SIGNAL\t%s\n", info.Signal)
	}
	fmt.Fprintf(w, "CGROUP\t%s (%s)\n", info.Group, strings.Join(info.Subsystems, ","))
	fmt.Fprintf(w, "PRIMARY\t%s\n", info.Primary)
	if len(info.Secondary) > 0 {
		fmt.Fprintf(w, "SECONDARY\t%s\n", strings.Join(info.Secondary, ", "))
	}
	fmt.Fprintf(w, "LOG\t%s (%d rows)\n", info.Output, info.Rows)
	fmt.Fprintf(w, "STARTED\t%s\n", info.StartTime)
	fmt.Fprintf(w, "FINISHED\t%s (%s)\n", info.EndTime, info.Duration)
	fmt.Fprintf(w, "MAX RSS\t%d KB\n", info.MaxRSSKB)
	fmt.Fprintf(w, "CPU\tuser %s, sys %s\n", info.UserTime, info.SysTime)
	return w.Flush()
}
