package jobs

import (
	"github.com/josephlewis42/jsh/core/shell"
	"golang.org/x/sys/unix"
)

// Status is where a job stands with respect to the terminal.
type Status int

const (
	// Foreground jobs own the terminal; only one job is ever in this state.
	Foreground Status = iota
	// Background jobs run without the terminal.
	Background
	// Stopped jobs were suspended by a job-control signal.
	Stopped
	// NeedsTerminal jobs ran in the background and stopped when they touched
	// the terminal; they wait for an explicit fg.
	NeedsTerminal
)

func (s Status) String() string {
	switch s {
	case Foreground:
		return "Foreground"
	case Background:
		return "Running"
	case Stopped:
		return "Stopped"
	case NeedsTerminal:
		return "Stopped (tty)"
	default:
		return "Unknown"
	}
}

// IsStopped is true for both stopped states.
func (s Status) IsStopped() bool {
	return s == Stopped || s == NeedsTerminal
}

// Job is one launched pipeline and the processes running it.
//
// Fields are only read or written while the controller's Hold is held.
type Job struct {
	id       int
	pgid     int
	status   Status
	alive    int
	savedTTY *unix.Termios
	ttySaved bool
	pipeline *shell.Pipeline

	// sharesGroup is set for foreground jobs of a shell without a terminal.
	// Their processes stay in the shell's process group and pgid is only the
	// first process's pid.
	sharesGroup bool
	// signalReported is set once a terminating signal has been described.
	signalReported bool
}

func newJob(p *shell.Pipeline) *Job {
	job := &Job{pipeline: p, status: Foreground}
	if p.Background {
		job.status = Background
	}
	return job
}

// ID is the job number shown to the user.
func (j *Job) ID() int { return j.id }

// PGID is the job's process group, 0 until the first process starts.
func (j *Job) PGID() int { return j.pgid }

// Status returns the job's state.
func (j *Job) Status() Status { return j.status }

// Alive is the number of processes not yet known to have terminated.
func (j *Job) Alive() int { return j.alive }

// HasTTYState is true once the job was stopped while owning the terminal.
func (j *Job) HasTTYState() bool { return j.ttySaved }

// Pipeline returns the commands the job runs, nil after it was swept.
func (j *Job) Pipeline() *shell.Pipeline { return j.pipeline }

// CommandLine renders the job's commands.
func (j *Job) CommandLine() string {
	if j.pipeline == nil {
		return ""
	}
	return j.pipeline.String()
}
