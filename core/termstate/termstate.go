// Package termstate manages the shell's controlling terminal: which process
// group owns it and which line discipline settings are active.
package termstate

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Terminal is the shell's view of its controlling terminal. A Terminal that
// isn't backed by a TTY is valid and turns every operation into a no-op.
type Terminal struct {
	fd          int
	interactive bool

	shellPgid  int
	shellState *unix.Termios

	// ttou keeps SIGTTOU caught, rather than ignored, outside of ownership
	// transfers so children start with the default disposition.
	ttou chan os.Signal
}

// New wraps the terminal on f, typically os.Stdin.
func New(f *os.File) *Terminal {
	fd := int(f.Fd())
	_, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	return &Terminal{
		fd:          fd,
		interactive: err == nil,
		shellPgid:   unix.Getpgrp(),
	}
}

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), ioctlReadTermios)
	return err == nil
}

// Interactive is true if the shell is attached to a terminal.
func (t *Terminal) Interactive() bool {
	return t.interactive
}

// Fd returns the terminal's file descriptor.
func (t *Terminal) Fd() int {
	return t.fd
}

// Init puts the shell in its own process group, waits until that group owns
// the terminal and records the terminal settings to restore after each job.
func (t *Terminal) Init() error {
	if !t.interactive {
		return nil
	}

	t.ttou = make(chan os.Signal, 1)
	signal.Notify(t.ttou, unix.SIGTTOU)
	go func() {
		for range t.ttou {
		}
	}()

	// Don't take the terminal from whoever is in the foreground, wait to be
	// put there by the parent shell instead.
	for {
		owner, err := unix.IoctlGetInt(t.fd, unix.TIOCGPGRP)
		if err != nil {
			return fmt.Errorf("tcgetpgrp: %w", err)
		}
		if owner == unix.Getpgrp() {
			break
		}
		if err := unix.Kill(-unix.Getpgrp(), unix.SIGTTIN); err != nil {
			return fmt.Errorf("kill: %w", err)
		}
	}

	if pid := unix.Getpid(); pid != unix.Getpgrp() {
		if err := unix.Setpgid(0, 0); err != nil {
			return fmt.Errorf("setpgid: %w", err)
		}
	}
	t.shellPgid = unix.Getpgrp()

	if err := t.withoutTTOU(func() error { return t.setOwner(t.shellPgid) }); err != nil {
		return err
	}
	return t.Sample()
}

// GiveTo makes pgid the terminal's foreground process group. If state is set,
// those terminal settings are applied first.
func (t *Terminal) GiveTo(state *unix.Termios, pgid int) error {
	if !t.interactive {
		return nil
	}
	return t.withoutTTOU(func() error {
		if state != nil {
			if err := unix.IoctlSetTermios(t.fd, ioctlWriteTermios, state); err != nil {
				return fmt.Errorf("tcsetattr: %w", err)
			}
		}
		return t.setOwner(pgid)
	})
}

// Reclaim returns the terminal to the shell with the shell's settings.
func (t *Terminal) Reclaim() error {
	return t.GiveTo(t.shellState, t.shellPgid)
}

// Save captures the current terminal settings.
func (t *Terminal) Save() (*unix.Termios, error) {
	if !t.interactive {
		return nil, nil
	}
	state, err := unix.IoctlGetTermios(t.fd, ioctlReadTermios)
	if err != nil {
		return nil, fmt.Errorf("tcgetattr: %w", err)
	}
	return state, nil
}

// Sample adopts the current terminal settings as the shell's own, so changes
// made by a job that exited cleanly (stty, for example) persist.
func (t *Terminal) Sample() error {
	state, err := t.Save()
	if err != nil {
		return err
	}
	if state != nil {
		t.shellState = state
	}
	return nil
}

// withoutTTOU runs fn with SIGTTOU ignored. Once a job has the terminal the
// shell is a background process group: tcsetattr and tcsetpgrp then raise
// SIGTTOU, and a caught SIGTTOU makes the ioctl restart forever (or fail with
// EIO when the shell's group is orphaned).
func (t *Terminal) withoutTTOU(fn func() error) error {
	signal.Ignore(unix.SIGTTOU)
	defer func() {
		if t.ttou != nil {
			signal.Notify(t.ttou, unix.SIGTTOU)
		}
	}()
	return fn()
}

// setOwner calls tcsetpgrp. Callers run it through withoutTTOU.
func (t *Terminal) setOwner(pgid int) error {
	if err := unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid); err != nil {
		return fmt.Errorf("tcsetpgrp: %w", err)
	}
	return nil
}
