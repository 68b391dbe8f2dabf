package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/crazyfrankie/cgbench/bench"
	"github.com/crazyfrankie/cgbench/config"
	"github.com/crazyfrankie/cgbench/launcher"
	"github.com/crazyfrankie/cgbench/sys"
)

type runOptions struct {
	configPath string
	root       string
	group      string
	subsystems []string
	options    []string
	primary    string
	secondary  []string
	output     string
	interval   time.Duration
	shell      string
	env        []string
	uid        int
	gid        int
}

func NewRunCommand() *cobra.Command {
	option := &runOptions{}

	cmd := &cobra.Command{
		Use:          "run [OPTIONS] COMMAND [ARG...]",
		Short:        "Run a command in a cgroup and log its counters ie: cgbench run -o mem.csv make -j8",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("missing command")
			}
			cfg, err := option.config(cmd.Flags())
			if err != nil {
				return err
			}
			return Run(cmd, cfg, args)
		},
		DisableFlagsInUseLine: true,
	}

	option.addFlags(cmd.Flags())

	return cmd
}

func (o *runOptions) addFlags(flags *pflag.FlagSet) {
	def := config.Default()
	flags.SetInterspersed(false)
	flags.StringVarP(&o.configPath, "config", "c", "", "YAML config file, flags override its values")
	flags.StringVar(&o.root, "root", def.Root, "cgroup v1 mount root")
	flags.StringVarP(&o.group, "group", "g", def.Group, "cgroup name")
	flags.StringSliceVar(&o.subsystems, "subsystem", def.Subsystems, "subsystems the cgroup spans")
	flags.StringArrayVar(&o.options, "set", nil, "control file to write before start (e.g., --set memory/memory.use_hierarchy=1)")
	flags.StringVarP(&o.primary, "primary", "p", def.Primary.String(), "counter whose changes are logged")
	flags.StringArrayVarP(&o.secondary, "secondary", "s", nil, "counter logged alongside the primary one")
	flags.StringVarP(&o.output, "output", "o", def.Output, "log file")
	flags.DurationVarP(&o.interval, "interval", "i", def.Interval, "pause between two polls, 0 polls continuously")
	flags.StringVar(&o.shell, "shell", def.Shell, "shell the command is passed to with -c")
	flags.StringArrayVarP(&o.env, "env", "e", nil, "command environment, replaces the default list (e.g., -e KEY1=value1 -e KEY2=value2)")
	flags.IntVar(&o.uid, "uid", def.UID, fmt.Sprintf("uid the command runs as, %d keeps the current one", launcher.NoDrop))
	flags.IntVar(&o.gid, "gid", def.GID, fmt.Sprintf("gid the command runs as, %d keeps the current one", launcher.NoDrop))
}

// config builds the run config from the optional file, then the flags that
// were set explicitly.
func (o *runOptions) config(flags *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}

	changed := flags.Changed
	if changed("root") {
		cfg.Root = o.root
	}
	if changed("group") {
		cfg.Group = o.group
	}
	if changed("subsystem") {
		cfg.Subsystems = o.subsystems
	}
	if changed("set") {
		cfg.Options = cfg.Options[:0]
		for _, s := range o.options {
			opt, err := config.ParseOption(s)
			if err != nil {
				return nil, err
			}
			cfg.Options = append(cfg.Options, opt)
		}
	}
	if changed("primary") {
		c, err := config.ParseCounter(o.primary)
		if err != nil {
			return nil, err
		}
		cfg.Primary = c
	}
	if changed("secondary") {
		cfg.Secondary = nil
		for _, s := range o.secondary {
			c, err := config.ParseCounter(s)
			if err != nil {
				return nil, err
			}
			cfg.Secondary = append(cfg.Secondary, c)
		}
	}
	if changed("output") {
		cfg.Output = o.output
	}
	if changed("interval") {
		cfg.Interval = o.interval
	}
	if changed("shell") {
		cfg.Shell = o.shell
	}
	if changed("env") {
		cfg.Env = o.env
	}
	if changed("uid") {
		cfg.UID = o.uid
	}
	if changed("gid") {
		cfg.GID = o.gid
	}

	return cfg, cfg.Validate()
}

func Run(cmd *cobra.Command, cfg *config.Config, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
	defer stop()

	deps := bench.HostDeps(os.Stdin, os.Stdout, os.Stderr)
	info, err := bench.Run(ctx, deps, cfg, args)
	if info == nil {
		return err
	}
	if err != nil {
		log.Errorf("run of %q stopped early: %v", info.Command, err)
	}

	recordPath := cfg.Output + bench.RecordSuffix
	if rerr := bench.Record(sys.HostFS{}, recordPath, info); rerr != nil {
		log.Errorf("record run info error %v", rerr)
	}

	switch {
	case info.Status == bench.INTERRUPTED:
		log.Warnf("run of %q interrupted after %d rows", info.Command, info.Rows)
	case info.ExitCode != 0:
		log.Warnf("%q exited with status %d", info.Command, info.ExitCode)
	default:
		log.Infof("%q finished, %d rows written to %s", info.Command, info.Rows, info.Output)
	}
	return err
}
