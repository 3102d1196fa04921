// Package jobs is the shell's job control core. It turns parsed pipelines
// into process groups, reaps them as their state changes and decides which
// process group owns the terminal.
//
// All job state lives behind a Controller. Child status changes are applied
// either by the Signal Bridge, a goroutine woken by SIGCHLD, or by the
// Foreground Waiter while the shell blocks on a job. Both paths run with the
// controller's Hold taken, and so does every other mutation.
package jobs

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"syscall"

	"github.com/juju/ratelimit"
	"golang.org/x/sys/unix"
)

// DefaultAnomalyRate is how many anomaly diagnostics per second are printed
// when Options.AnomalyRate is unset.
const DefaultAnomalyRate = 10

// Options configures a Controller. Zero values pick the process's standard
// streams, no terminal and no built-ins.
type Options struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	Terminal Terminal
	Builtins Dispatcher

	// Logger receives diagnostics, defaults to Stderr with no prefix.
	Logger *log.Logger
	// Events receives lifecycle events.
	Events EventRecorder
	// AnomalyRate limits anomaly diagnostics per second.
	AnomalyRate float64
	// Color enables colored status words.
	Color bool
}

// Controller is the single handle to the job registry, the pid table and the
// terminal.
type Controller struct {
	hold     Hold
	registry *Registry
	pids     *PIDTable

	term     Terminal
	builtins Dispatcher
	report   *Reporter

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	log        *log.Logger
	events     EventRecorder
	limiter    *ratelimit.Bucket
	anomalies  atomic.Int64
	interrupts chan struct{}

	// System call hooks, replaced in tests.
	wait   func(options int) (int, unix.WaitStatus, error)
	signal func(pgid int, sig unix.Signal) error
	kill   func(pid int, sig unix.Signal) error
	start  func(path string, argv []string, attr *os.ProcAttr) (*os.Process, error)
	fatal  func(format string, args ...interface{})
}

// New creates a controller.
func New(opts Options) *Controller {
	c := &Controller{
		registry:   NewRegistry(),
		pids:       NewPIDTable(),
		term:       opts.Terminal,
		builtins:   opts.Builtins,
		report:     NewReporter(opts.Color),
		stdin:      opts.Stdin,
		stdout:     opts.Stdout,
		stderr:     opts.Stderr,
		log:        opts.Logger,
		events:     opts.Events,
		interrupts: make(chan struct{}, 1),
		wait:       wait4,
		signal:     killpg,
		kill:       unix.Kill,
		start:      os.StartProcess,
	}

	if c.stdin == nil {
		c.stdin = os.Stdin
	}
	if c.stdout == nil {
		c.stdout = os.Stdout
	}
	if c.stderr == nil {
		c.stderr = os.Stderr
	}
	if c.term == nil {
		c.term = nopTerminal{}
	}
	if c.log == nil {
		c.log = log.New(c.stderr, "", 0)
	}
	if c.events == nil {
		c.events = nopRecorder{}
	}

	rate := opts.AnomalyRate
	if rate <= 0 {
		rate = DefaultAnomalyRate
	}
	burst := int64(rate)
	if burst < 1 {
		burst = 1
	}
	c.limiter = ratelimit.NewBucketWithRate(rate, burst)
	c.fatal = c.log.Fatalf
	return c
}

func wait4(options int) (int, unix.WaitStatus, error) {
	var status unix.WaitStatus
	pid, err := unix.Wait4(-1, &status, options, nil)
	return pid, status, err
}

func killpg(pgid int, sig unix.Signal) error {
	return unix.Kill(-pgid, sig)
}

// Anomalies counts bookkeeping defects seen so far, including ones whose
// diagnostic was throttled.
func (c *Controller) Anomalies() int64 {
	return c.anomalies.Load()
}

// anomaly reports a bookkeeping defect. The shell keeps running.
func (c *Controller) anomaly(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.anomalies.Add(1)
	c.events.Record("anomaly", map[string]interface{}{"message": msg})
	if c.limiter.TakeAvailable(1) == 0 {
		return
	}
	c.log.Print(msg)
}

// resourceError reports a failed operation the caller recovers from.
func (c *Controller) resourceError(op string, err error) {
	c.log.Printf("%s: %v", op, err)
}

// record emits a lifecycle event for job. Callers hold the hold.
func (c *Controller) record(event string, job *Job, extra map[string]interface{}) {
	fields := map[string]interface{}{
		"job":     job.id,
		"pgid":    job.pgid,
		"status":  job.status.String(),
		"command": job.CommandLine(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	c.events.Record(event, fields)
}

// PrintJobs lists live jobs, with process groups if long is set.
func (c *Controller) PrintJobs(w io.Writer, long bool) {
	c.hold.Do(func() {
		c.report.List(w, c.registry, long)
	})
}

// Sweep deletes finished jobs and reclaims tombstoned pid entries.
func (c *Controller) Sweep() (jobs, pids int) {
	c.hold.Do(func() {
		removed := c.registry.Sweep()
		for _, job := range removed {
			if job.alive < 0 {
				c.anomaly("job %d: extra child status received (%d)", job.id, -job.alive)
			}
		}
		jobs = len(removed)
		pids = c.pids.Sweep()
	})
	return jobs, pids
}

// Interrupts delivers a value each time the shell receives SIGINT while the
// bridge is running.
func (c *Controller) Interrupts() <-chan struct{} {
	return c.interrupts
}

// Reclaim gives the terminal back to the shell.
func (c *Controller) Reclaim() {
	if err := c.term.Reclaim(); err != nil {
		c.resourceError("reclaiming the terminal", err)
	}
}

// childOnly lists exec failures that only affect the process being started.
var childOnly = []syscall.Errno{
	unix.ENOENT,
	unix.EACCES,
	unix.ENOEXEC,
	unix.ENOTDIR,
	unix.ELOOP,
	unix.ENAMETOOLONG,
	unix.EISDIR,
	unix.ETXTBSY,
}
