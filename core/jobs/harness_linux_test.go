//go:build linux

package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/josephlewis42/jsh/core/shell"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func exited(code int) unix.WaitStatus { return unix.WaitStatus(code << 8) }

func signaled(sig unix.Signal) unix.WaitStatus { return unix.WaitStatus(sig) }

func stoppedBy(sig unix.Signal) unix.WaitStatus { return unix.WaitStatus(int(sig)<<8 | 0x7f) }

type fakeTerminal struct {
	mu          sync.Mutex
	interactive bool
	state       *unix.Termios
	samples     int
	saves       int
	reclaims    int
	givenTo     []int
	restored    []*unix.Termios
}

func (f *fakeTerminal) GiveTo(state *unix.Termios, pgid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.givenTo = append(f.givenTo, pgid)
	f.restored = append(f.restored, state)
	return nil
}

func (f *fakeTerminal) Reclaim() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reclaims++
	return nil
}

func (f *fakeTerminal) Save() (*unix.Termios, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return f.state, nil
}

func (f *fakeTerminal) Sample() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples++
	return nil
}

func (f *fakeTerminal) Interactive() bool { return f.interactive }
func (f *fakeTerminal) Fd() int           { return -1 }

type waitResult struct {
	pid    int
	status unix.WaitStatus
	err    error
}

// sentSignal is a signal sent to a process group, or to a single process
// when pid is set.
type sentSignal struct {
	pgid int
	sig  unix.Signal
	pid  int
}

type recordedEvent struct {
	name   string
	fields map[string]interface{}
}

// harness is a Controller whose system calls are scripted.
type harness struct {
	*Controller
	t      *testing.T
	term   *fakeTerminal
	out    *os.File
	errOut *os.File

	mu      sync.Mutex
	script  []waitResult
	signals []sentSignal
	events  []recordedEvent
	fatals  []string

	// onWait runs before each scripted wait returns.
	onWait func()
}

func (h *harness) Record(event string, fields map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{event, fields})
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	out, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	errOut, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)
	t.Cleanup(func() {
		out.Close()
		errOut.Close()
	})

	h := &harness{
		t:      t,
		term:   &fakeTerminal{state: &unix.Termios{Lflag: unix.ECHO}},
		out:    out,
		errOut: errOut,
	}
	h.Controller = New(Options{
		Stdout:      out,
		Stderr:      errOut,
		Terminal:    h.term,
		Events:      h,
		AnomalyRate: 1000,
	})
	h.Controller.wait = h.wait
	h.Controller.signal = func(pgid int, sig unix.Signal) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.signals = append(h.signals, sentSignal{pgid: pgid, sig: sig})
		return nil
	}
	h.Controller.kill = func(pid int, sig unix.Signal) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.signals = append(h.signals, sentSignal{sig: sig, pid: pid})
		return nil
	}
	h.Controller.fatal = func(format string, args ...interface{}) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.fatals = append(h.fatals, fmt.Sprintf(format, args...))
	}
	return h
}

// push queues wait results, returned in order. An empty script reports
// ECHILD, like a shell with no children.
func (h *harness) push(results ...waitResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.script = append(h.script, results...)
}

func (h *harness) wait(options int) (int, unix.WaitStatus, error) {
	if h.onWait != nil {
		h.onWait()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.script) == 0 {
		if options&unix.WNOHANG != 0 {
			return 0, 0, nil
		}
		return -1, 0, unix.ECHILD
	}
	next := h.script[0]
	h.script = h.script[1:]
	return next.pid, next.status, next.err
}

// addJob registers a job as if its processes had been launched.
func (h *harness) addJob(background bool, argv []string, pids ...int) *Job {
	h.t.Helper()
	p := &shell.Pipeline{Background: background}
	for range pids {
		p.Commands = append(p.Commands, &shell.Command{Argv: argv})
	}

	var job *Job
	h.hold.Do(func() {
		var err error
		job, err = h.registry.Create(p)
		require.NoError(h.t, err)
		for _, pid := range pids {
			h.pids.Bind(pid, job)
			job.alive++
			if job.pgid == 0 {
				job.pgid = pid
			}
		}
	})
	return job
}

// deliver runs a drain as the signal bridge would.
func (h *harness) deliver(results ...waitResult) {
	h.push(results...)
	h.hold.Do(h.drain)
}

func (h *harness) stdout() string {
	h.t.Helper()
	b, err := os.ReadFile(h.out.Name())
	require.NoError(h.t, err)
	return string(b)
}

func (h *harness) stderr() string {
	h.t.Helper()
	b, err := os.ReadFile(h.errOut.Name())
	require.NoError(h.t, err)
	return string(b)
}

func (h *harness) eventNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var names []string
	for _, e := range h.events {
		names = append(names, e.name)
	}
	return names
}
