package jobs

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// StartBridge starts delivering asynchronous child status changes and
// interrupts until ctx is done.
//
// SIGTSTP and SIGTTIN are caught and dropped rather than ignored: the runtime
// only restores caught signals to their defaults in new processes, and jobs
// must stop on them.
func (c *Controller) StartBridge(ctx context.Context) {
	children := make(chan os.Signal, 1)
	signal.Notify(children, unix.SIGCHLD)
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	stops := make(chan os.Signal, 1)
	signal.Notify(stops, unix.SIGTSTP, unix.SIGTTIN)

	go func() {
		defer signal.Stop(children)
		defer signal.Stop(interrupts)
		defer signal.Stop(stops)

		for {
			select {
			case <-ctx.Done():
				return
			case <-children:
				c.hold.Do(c.drain)
			case <-interrupts:
				select {
				case c.interrupts <- struct{}{}:
				default:
				}
			case <-stops:
			}
		}
	}()
}

// drain reaps every child with a pending status change. Several exits can
// collapse into one SIGCHLD, so it only stops once nothing is left.
func (c *Controller) drain() {
	for {
		pid, status, err := c.wait(unix.WNOHANG | unix.WUNTRACED)
		if err == unix.EINTR {
			continue
		}
		if err != nil || pid <= 0 {
			return
		}
		c.reconcile(pid, status)
	}
}
