package jobs

import "golang.org/x/sys/unix"

// Terminal is the controlling terminal as the job core uses it.
// *termstate.Terminal implements it.
type Terminal interface {
	// GiveTo makes pgid the foreground process group, applying state first if
	// it's non-nil.
	GiveTo(state *unix.Termios, pgid int) error
	// Reclaim gives the terminal back to the shell with the shell's settings.
	Reclaim() error
	// Save captures the current terminal settings, nil if not a terminal.
	Save() (*unix.Termios, error)
	// Sample adopts the current settings as the shell's.
	Sample() error
	// Interactive is true when attached to a terminal.
	Interactive() bool
	// Fd is the terminal's file descriptor.
	Fd() int
}

// Dispatcher runs built-in commands in the shell process.
type Dispatcher interface {
	// TryBuiltin runs argv if it names a built-in and reports whether it did.
	TryBuiltin(argv []string) bool
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(argv []string) bool

// TryBuiltin calls f.
func (f DispatcherFunc) TryBuiltin(argv []string) bool {
	return f(argv)
}

// EventRecorder receives job lifecycle events.
type EventRecorder interface {
	Record(event string, fields map[string]interface{})
}

type nopRecorder struct{}

func (nopRecorder) Record(string, map[string]interface{}) {}

// nopTerminal stands in when the controller has no terminal.
type nopTerminal struct{}

func (nopTerminal) GiveTo(*unix.Termios, int) error { return nil }
func (nopTerminal) Reclaim() error                  { return nil }
func (nopTerminal) Save() (*unix.Termios, error)    { return nil, nil }
func (nopTerminal) Sample() error                   { return nil }
func (nopTerminal) Interactive() bool               { return false }
func (nopTerminal) Fd() int                         { return 0 }
