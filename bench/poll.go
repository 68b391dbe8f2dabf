package bench

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/crazyfrankie/cgbench/sampler"
	"github.com/crazyfrankie/cgbench/sys"
)

type outcome struct {
	// exited is set once the child has been reaped.
	exited      bool
	interrupted bool
	status      sys.Status
}

// poll samples until the child exits or ctx is cancelled. The iteration that
// observes the exit still takes its sample. An interruption stops the loop
// before sampling, so no row is started. A wait error other than an
// interruption is logged and polling goes on.
func poll(ctx context.Context, child sys.Child, logger *sampler.Logger, interval time.Duration) (outcome, error) {
	var timer *time.Timer
	if interval > 0 {
		timer = time.NewTimer(interval)
		defer timer.Stop()
	}

	for {
		if ctx.Err() != nil {
			return outcome{interrupted: true}, nil
		}

		var out outcome
		exited, st, err := child.Wait(false)
		switch {
		case sys.Is(err, unix.EINTR):
			return outcome{interrupted: true}, nil
		case sys.Is(err, unix.ECHILD):
			// Nothing left to wait for; the status is lost.
			log.Warnf("wait %d: %v", child.Pid(), err)
			out = outcome{exited: true}
		case err != nil:
			log.Errorf("wait %d: %v", child.Pid(), err)
		case exited:
			out = outcome{exited: true, status: st}
		}

		if _, err := logger.Log(); err != nil {
			return out, err
		}
		if out.exited {
			return out, nil
		}

		if timer != nil {
			timer.Reset(interval)
			select {
			case <-ctx.Done():
				return outcome{interrupted: true}, nil
			case <-timer.C:
			}
		}
	}
}
