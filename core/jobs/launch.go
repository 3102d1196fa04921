package jobs

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/josephlewis42/jsh/core/shell"
	"golang.org/x/sys/unix"
)

// LaunchAll launches each pipeline of a command line in order.
func (c *Controller) LaunchAll(line *shell.CommandLine) {
	if line.Empty() {
		return
	}
	for _, p := range line.Pipelines {
		c.Launch(p)
	}
}

// Launch runs a pipeline. Built-ins run in the shell process; anything else
// becomes a job with one process per command, all in one process group.
// Foreground jobs are waited for before Launch returns.
func (c *Controller) Launch(p *shell.Pipeline) {
	if p == nil || len(p.Commands) == 0 {
		return
	}
	if c.builtins != nil && c.builtins.TryBuiltin(p.Commands[0].Argv) {
		return
	}

	var job *Job
	var err error
	c.hold.Do(func() {
		job, err = c.registry.Create(p)
		if err == nil {
			job.sharesGroup = !p.Background && !c.term.Interactive()
			c.record("job_created", job, nil)
		}
	})
	if err != nil {
		c.fatal("creating job: %v", err)
		return
	}

	input := c.stdin
	if p.Input != "" {
		if f, err := os.Open(p.Input); err != nil {
			c.resourceError(fmt.Sprintf("could not open %s, reading from stdin", p.Input), err)
		} else {
			input = f
		}
	}

	for i, cmd := range p.Commands {
		var output, next *os.File
		if i < len(p.Commands)-1 {
			// os.Pipe opens both ends close-on-exec, only the dup2'd copy in
			// each child survives exec.
			r, w, err := os.Pipe()
			if err != nil {
				c.resourceError("pipe", err)
				output, next = c.stdout, c.stdin
			} else {
				output, next = w, r
			}
		} else {
			output = c.openOutput(p)
		}

		c.spawn(job, cmd, input, output)
		c.release(input)
		c.release(output)
		input = next
	}

	if p.Background {
		c.hold.Do(func() {
			if job.pgid != 0 {
				c.report.Announce(c.stdout, job)
			}
		})
		return
	}

	c.hold.Do(func() {
		c.waitFor(job)
	})
	c.Reclaim()
}

func (c *Controller) openOutput(p *shell.Pipeline) *os.File {
	if p.Output == "" {
		return c.stdout
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if p.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(p.Output, flags, 0644)
	if err != nil {
		c.resourceError(fmt.Sprintf("could not open %s, writing to stdout", p.Output), err)
		return c.stdout
	}
	return f
}

// release closes a descriptor the shell opened for a job. The shell's own
// streams stay open.
func (c *Controller) release(f *os.File) {
	if f == nil || f == c.stdin || f == c.stdout || f == c.stderr {
		return
	}
	if err := f.Close(); err != nil {
		c.resourceError("close", err)
	}
}

// spawn starts one command of job's pipeline and registers its pid. Failures
// to find or execute the program are reported on the command's error stream
// and register nothing.
func (c *Controller) spawn(job *Job, cmd *shell.Command, stdin, stdout *os.File) {
	stderr := c.stderr
	if cmd.MergeStderr {
		stderr = stdout
	}

	path, err := exec.LookPath(cmd.Name())
	if err != nil {
		reportExecError(stderr, cmd.Name(), err)
		return
	}

	c.hold.Block()
	defer c.hold.Unblock()

	attr := &os.ProcAttr{
		Files: []*os.File{stdin, stdout, stderr},
		Sys:   &syscall.SysProcAttr{},
	}
	if !job.sharesGroup {
		attr.Sys.Setpgid = true
		attr.Sys.Pgid = job.pgid
	}
	if job.pgid == 0 && job.status == Foreground && c.term.Interactive() {
		attr.Sys.Foreground = true
		attr.Sys.Ctty = c.term.Fd()
	}

	proc, err := c.start(path, cmd.Argv, attr)
	if err != nil && attr.Sys.Setpgid && job.pgid != 0 && (errors.Is(err, unix.EPERM) || errors.Is(err, unix.ESRCH)) {
		// The group leader is already gone, run in a group of its own.
		c.resourceError(fmt.Sprintf("setpgid %d", job.pgid), err)
		attr.Sys.Pgid = 0
		proc, err = c.start(path, cmd.Argv, attr)
	}
	if err != nil {
		for _, errno := range childOnly {
			if errors.Is(err, errno) {
				fmt.Fprintf(stderr, "%s: %v\n", cmd.Name(), errno)
				return
			}
		}
		c.fatal("creating a child process failed: %v", err)
		return
	}

	pid := proc.Pid
	if err := proc.Release(); err != nil {
		c.resourceError("release", err)
	}
	c.pids.Bind(pid, job)
	job.alive++
	if job.pgid == 0 {
		job.pgid = pid
	}
}

func reportExecError(w *os.File, name string, err error) {
	var errno syscall.Errno
	var execErr *exec.Error
	switch {
	case errors.Is(err, exec.ErrNotFound):
		fmt.Fprintf(w, "%s: command not found\n", name)
	case errors.As(err, &errno):
		fmt.Fprintf(w, "%s: %v\n", name, errno)
	case errors.As(err, &execErr):
		fmt.Fprintf(w, "%s: %v\n", name, execErr.Err)
	default:
		fmt.Fprintf(w, "%s: %v\n", name, err)
	}
}
