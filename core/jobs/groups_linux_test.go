//go:build linux

package jobs

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/josephlewis42/jsh/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// startRecorder replaces process creation. Each start is handed the next pid
// from 101 and its attributes are kept.
func (h *harness) startRecorder() *[]*syscall.SysProcAttr {
	var attrs []*syscall.SysProcAttr
	next := 100
	h.Controller.start = func(path string, argv []string, attr *os.ProcAttr) (*os.Process, error) {
		copied := *attr.Sys
		attrs = append(attrs, &copied)
		next++
		return os.FindProcess(next)
	}
	return &attrs
}

func TestLaunch_processGroups(t *testing.T) {
	cases := map[string]struct {
		interactive bool
		line        string
		ownGroup    bool
		foreground  bool
	}{
		"terminal, foreground":    {true, "true | true", true, true},
		"terminal, background":    {true, "true | true &", true, false},
		"no terminal, foreground": {false, "true | true", false, false},
		"no terminal, background": {false, "true | true &", true, false},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			h := newHarness(t)
			h.term.interactive = tc.interactive
			attrs := h.startRecorder()
			h.push(
				waitResult{pid: 101, status: exited(0)},
				waitResult{pid: 102, status: exited(0)},
			)

			h.LaunchAll(mustParse(t, tc.line))

			require.Len(t, *attrs, 2)
			first, second := (*attrs)[0], (*attrs)[1]
			assert.Equal(t, tc.ownGroup, first.Setpgid)
			assert.Equal(t, tc.ownGroup, second.Setpgid)
			if tc.ownGroup {
				assert.Equal(t, 0, first.Pgid)
				assert.Equal(t, 101, second.Pgid, "later stages join the first")
			}
			assert.Equal(t, tc.foreground, first.Foreground)
			assert.False(t, second.Foreground)

			job, ok := h.Lookup(1)
			require.True(t, ok)
			assert.Equal(t, 101, job.PGID())
			assert.Empty(t, h.fatals)
		})
	}
}

func TestController_signalSharedGroup(t *testing.T) {
	h := newHarness(t)
	h.startRecorder()
	h.push(waitResult{pid: 101, status: stoppedBy(unix.SIGTSTP)})

	h.LaunchAll(mustParse(t, "true | true"))
	job, ok := h.Lookup(1)
	require.True(t, ok)
	require.Equal(t, Stopped, job.Status())

	h.Kill(job, unix.SIGTERM)

	assert.Equal(t, []sentSignal{
		{sig: unix.SIGTERM, pid: 101},
		{sig: unix.SIGTERM, pid: 102},
		{sig: unix.SIGCONT, pid: 101},
		{sig: unix.SIGCONT, pid: 102},
	}, h.signals, "the shell's own group is never signalled")
}

const sessionEnv = "JSH_JOBS_SESSION"

func TestLaunch_readsTerminalWithoutJobControl(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()
	go io.Copy(io.Discard, ptmx)

	_, err = ptmx.Write([]byte("hello\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	const name = "TestLaunchSession_readsTerminal"
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=^"+name+"$", "-test.v")
	cmd.Env = append(os.Environ(), sessionEnv+"=1")
	cmd.Stdin = tty
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true, Ctty: 0}

	err = cmd.Run()
	require.NoError(t, ctx.Err(), "session hung:\n%s", out.String())
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "hello\n")
	assert.Contains(t, out.String(), "--- PASS: "+name)
}

// TestLaunchSession_readsTerminal runs a foreground job that reads the
// terminal from a shell that has no job control, as jsh -c does.
func TestLaunchSession_readsTerminal(t *testing.T) {
	if os.Getenv(sessionEnv) == "" {
		t.Skip("runs inside TestLaunch_readsTerminalWithoutJobControl")
	}

	c := New(Options{})
	parsed, err := shell.Parse("head -n1")
	require.NoError(t, err)

	c.LaunchAll(parsed)

	job, ok := c.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, 0, job.Alive(), "head finished instead of stopping for the terminal")
	assert.Equal(t, Foreground, job.Status())
}
