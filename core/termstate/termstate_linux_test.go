//go:build linux

package termstate

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const sessionEnv = "JSH_TERMSTATE_SESSION"

// runInSession re-runs the named test in a new session whose controlling
// terminal is a fresh pty, and returns its combined output.
func runInSession(t *testing.T, name string) string {
	t.Helper()
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()
	go io.Copy(io.Discard, ptmx)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

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
	require.Contains(t, out.String(), "--- PASS: "+name)
	return out.String()
}

func TestTerminal_reclaimAfterJob(t *testing.T) {
	runInSession(t, "TestTerminalSession_reclaim")
}

// TestTerminalSession_reclaim hands the terminal to another process group and
// takes it back with the shell's settings, as the shell does after every
// foreground job.
func TestTerminalSession_reclaim(t *testing.T) {
	if os.Getenv(sessionEnv) == "" {
		t.Skip("runs inside TestTerminal_reclaimAfterJob")
	}

	term := New(os.Stdin)
	require.True(t, term.Interactive())
	require.NoError(t, term.Init())

	job := exec.Command("sleep", "30")
	job.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, job.Start())
	defer func() {
		job.Process.Kill()
		job.Wait()
	}()

	require.NoError(t, term.GiveTo(nil, job.Process.Pid))
	owner, err := unix.IoctlGetInt(term.Fd(), unix.TIOCGPGRP)
	require.NoError(t, err)
	assert.Equal(t, job.Process.Pid, owner)

	require.NoError(t, term.Reclaim())
	owner, err = unix.IoctlGetInt(term.Fd(), unix.TIOCGPGRP)
	require.NoError(t, err)
	assert.Equal(t, unix.Getpgrp(), owner)

	// Restoring a job's saved settings also happens from the background.
	saved, err := term.Save()
	require.NoError(t, err)
	require.NoError(t, term.GiveTo(saved, job.Process.Pid))
	require.NoError(t, term.Reclaim())
}
