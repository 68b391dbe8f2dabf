package bench

import (
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"

	"github.com/crazyfrankie/cgbench/config"
	"github.com/crazyfrankie/cgbench/sys"
)

var (
	RUNNING     = "running"
	EXIT        = "exit"
	INTERRUPTED = "interrupted"

	// RecordSuffix is appended to the log path to name the run record.
	RecordSuffix = ".json"
)

// RunInfo describes one run.
type RunInfo struct {
	PID        int      `json:"pid"`
	Command    string   `json:"command"`
	Group      string   `json:"group"`
	Subsystems []string `json:"subsystems"`
	Primary    string   `json:"primary"`
	Secondary  []string `json:"secondary,omitempty"`
	Output     string   `json:"output"`
	Rows       int      `json:"rows"`
	StartTime  string   `json:"startTime"`
	EndTime    string   `json:"endTime,omitempty"`
	Duration   string   `json:"duration,omitempty"`
	Status     string   `json:"status"`
	ExitCode   int      `json:"exitCode"`
	Signal     string   `json:"signal,omitempty"`
	MaxRSSKB   int64    `json:"maxRssKb"`
	UserTime   string   `json:"userTime"`
	SysTime    string   `json:"sysTime"`

	start time.Time
}

func newRunInfo(cfg *config.Config, command string, pid int, now time.Time) *RunInfo {
	info := &RunInfo{
		PID:        pid,
		Command:    command,
		Group:      cfg.Group,
		Subsystems: cfg.Subsystems,
		Primary:    cfg.Primary.String(),
		Output:     cfg.Output,
		StartTime:  now.Format(time.DateTime),
		Status:     RUNNING,
		start:      now,
	}
	for _, s := range cfg.Secondary {
		info.Secondary = append(info.Secondary, s.String())
	}
	return info
}

func (i *RunInfo) finish(out outcome, rows int, now time.Time) {
	i.Rows = rows
	i.EndTime = now.Format(time.DateTime)
	i.Duration = now.Sub(i.start).String()
	i.Status = EXIT
	if out.interrupted {
		i.Status = INTERRUPTED
	}
	i.ExitCode = out.status.Code
	if out.status.Signaled {
		i.Signal = out.status.Signal.String()
	}
	i.MaxRSSKB = out.status.MaxRSS
	i.UserTime = out.status.UserTime.String()
	i.SysTime = out.status.SysTime.String()
}

// Record writes info as JSON to path.
func Record(fsys sys.FS, path string, info *RunInfo) (err error) {
	data, err := sonic.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode run info: %w", err)
	}
	f, err := fsys.Open(path, "w")
	if err != nil {
		return fmt.Errorf("create run record: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write run record %s: %w", path, err)
	}
	return nil
}

// Load reads a run record written by Record.
func Load(fsys sys.FS, path string) (*RunInfo, error) {
	f, err := fsys.Open(path, "r")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read run record %s: %w", path, err)
	}
	var info RunInfo
	if err := sonic.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode run record %s: %w", path, err)
	}
	return &info, nil
}
