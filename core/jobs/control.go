package jobs

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrNoSuchJob is returned when a job id doesn't name a live job.
var ErrNoSuchJob = errors.New("no such job")

// Lookup finds a registered job by id, including finished jobs that haven't
// been swept yet.
func (c *Controller) Lookup(id int) (job *Job, ok bool) {
	c.hold.Do(func() {
		job, ok = c.registry.Lookup(id)
	})
	return job, ok
}

// LookupLive finds a job that still has running or stopped processes.
func (c *Controller) LookupLive(id int) (*Job, error) {
	var job *Job
	c.hold.Do(func() {
		if j, ok := c.registry.Lookup(id); ok && j.alive > 0 {
			job = j
		}
	})
	if job == nil {
		return nil, fmt.Errorf("job %d: %w", id, ErrNoSuchJob)
	}
	return job, nil
}

// Foreground gives job the terminal, continues it if it was stopped and
// waits until it stops or finishes.
func (c *Controller) Foreground(job *Job) {
	c.hold.Block()
	if err := c.term.GiveTo(job.savedTTY, job.pgid); err != nil {
		c.resourceError("giving the terminal to job", err)
	}
	if job.status.IsStopped() {
		if err := c.signalJob(job, unix.SIGCONT); err != nil {
			c.resourceError("kill", err)
		}
	}
	job.status = Foreground
	fmt.Fprintln(c.stdout, job.CommandLine())
	c.record("job_resumed", job, nil)

	c.waitFor(job)
	c.hold.Unblock()
	c.Reclaim()
}

// Background continues a stopped job without giving it the terminal.
func (c *Controller) Background(job *Job) {
	c.hold.Do(func() {
		if job.status.IsStopped() {
			if err := c.signalJob(job, unix.SIGCONT); err != nil {
				c.resourceError("kill", err)
			}
		}
		job.status = Background
		c.record("job_resumed", job, nil)
		c.report.Announce(c.stdout, job)
	})
}

// Stop suspends a running job.
func (c *Controller) Stop(job *Job) {
	c.hold.Do(func() {
		if job.status.IsStopped() {
			return
		}
		if err := c.signalJob(job, unix.SIGTSTP); err != nil {
			c.resourceError("kill", err)
		}
	})
}

// Kill sends sig to every process of job. Stopped jobs are also continued so
// they can act on it.
func (c *Controller) Kill(job *Job, sig unix.Signal) {
	c.hold.Do(func() {
		if err := c.signalJob(job, sig); err != nil {
			c.resourceError("kill", err)
			return
		}
		if job.status.IsStopped() && sig != unix.SIGKILL && sig != unix.SIGCONT {
			if err := c.signalJob(job, unix.SIGCONT); err != nil {
				c.resourceError("kill", err)
			}
		}
	})
}

// signalJob sends sig to job's process group, or to each of its processes
// when the job shares the shell's group.
func (c *Controller) signalJob(job *Job, sig unix.Signal) error {
	if !job.sharesGroup {
		return c.signal(job.pgid, sig)
	}
	for _, pid := range c.pids.PIDs(job) {
		if err := c.kill(pid, sig); err != nil {
			return fmt.Errorf("pid %d: %w", pid, err)
		}
	}
	return nil
}
