package jobs

import "golang.org/x/sys/unix"

// waitFor blocks until job leaves the foreground or all its processes are
// gone, reaping children as they change state. Callers hold the hold.
func (c *Controller) waitFor(job *Job) {
	if !c.hold.Blocked() {
		c.anomaly("waiting for job %d while delivery was not held", job.id)
	}

	for job.status == Foreground && job.alive > 0 {
		pid, status, err := c.wait(unix.WUNTRACED)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			c.fatal("waitpid failed: %v", err)
			return
		}
		c.reconcile(pid, status)
	}
}
