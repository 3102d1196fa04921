package jobs

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// reconcile applies one wait status for pid to the job owning it. Callers
// hold the hold.
func (c *Controller) reconcile(pid int, status unix.WaitStatus) {
	if !c.hold.Blocked() {
		c.anomaly("status for pid %d handled while delivery was not held", pid)
	}

	terminated := status.Exited() || status.Signaled()
	job := c.pids.Resolve(pid, terminated)
	if job == nil {
		c.anomaly("pid %d: no job record", pid)
		return
	}

	switch {
	case status.Exited():
		job.alive--
		switch job.status {
		case Foreground:
			if status.ExitStatus() == 0 {
				if err := c.term.Sample(); err != nil {
					c.resourceError("sampling terminal state", err)
				}
			}
		case Background:
		default:
			c.anomaly("pid %d of job %d exited while %s", pid, job.id, job.status)
		}
		c.finished(job, map[string]interface{}{"exit_code": status.ExitStatus()})

	case status.Signaled():
		job.alive--
		// A signal usually reaches every process of the group, describe it
		// once per job.
		if sig := status.Signal(); sig != unix.SIGINT && !job.signalReported {
			job.signalReported = true
			fmt.Fprintln(c.stderr, describeSignal(sig, status.CoreDump()))
		}
		c.finished(job, map[string]interface{}{"signal": unix.SignalName(status.Signal())})

	case status.Stopped():
		c.stopped(job, status.StopSignal())

	default:
		c.anomaly("pid %d: unexpected wait status %#x", pid, uint32(status))
	}
}

func (c *Controller) finished(job *Job, extra map[string]interface{}) {
	if job.alive == 0 {
		c.record("job_finished", job, extra)
	}
}

// stopped moves a job into a stopped state. Every process in a pipeline
// reports its own stop; only the first one announces.
func (c *Controller) stopped(job *Job, sig unix.Signal) {
	if job.status == Foreground {
		state, err := c.term.Save()
		if err != nil {
			c.resourceError("saving terminal state", err)
		} else {
			job.savedTTY = state
			job.ttySaved = true
		}
	}

	if job.status.IsStopped() {
		return
	}

	switch sig {
	case unix.SIGTSTP:
		job.status = Stopped
		c.report.Line(c.stdout, job, false)
	case unix.SIGTTIN, unix.SIGTTOU:
		job.status = NeedsTerminal
	default:
		job.status = Stopped
		fmt.Fprintf(c.stderr, "Stopped by signal: %s\n", unix.SignalName(sig))
	}
	c.record("job_stopped", job, map[string]interface{}{"signal": unix.SignalName(sig)})
}

// describeSignal renders a terminating signal the way shells report it,
// "Killed" or "Segmentation fault (core dumped)".
func describeSignal(sig unix.Signal, core bool) string {
	desc := sig.String()
	if desc != "" {
		desc = strings.ToUpper(desc[:1]) + desc[1:]
	}
	if core {
		desc += " (core dumped)"
	}
	return desc
}
