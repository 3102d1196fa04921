package core

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/josephlewis42/jsh/core/jobs"
	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)
var _ jobs.Dispatcher = (*Shell)(nil)

// BuiltinNames lists the registered builtins in sorted order.
func BuiltinNames() []string {
	var names []string
	for k := range AllBuiltins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// TryBuiltin runs argv if it names a builtin. Once exit has run, everything
// else on the line is swallowed.
func (s *Shell) TryBuiltin(argv []string) bool {
	if s.exiting {
		return true
	}
	if len(argv) == 0 {
		return false
	}
	builtin, ok := AllBuiltins[argv[0]]
	if !ok {
		return false
	}
	builtin.Main(s, argv)
	return true
}

// lookupJob resolves the job named by args[1], which may be written N or %N.
func (s *Shell) lookupJob(args []string) *jobs.Job {
	if len(args) < 2 {
		fmt.Fprintf(s.stderr, "%s: job id missing\n", args[0])
		return nil
	}
	id, err := strconv.Atoi(strings.TrimPrefix(args[1], "%"))
	if err != nil {
		fmt.Fprintf(s.stderr, "%[1]s: usage %[1]s <job>\n", args[0])
		return nil
	}
	job, err := s.jobs.LookupLive(id)
	if err != nil {
		fmt.Fprintf(s.stderr, "%s %s: No such job\n", args[0], args[1])
		return nil
	}
	return job
}

// Jobs lists live jobs.
func Jobs(s *Shell, args []string) int {
	opts := getopt.New()
	long := opts.Bool('l', "also list process group IDs")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		if err != nil {
			fmt.Fprintln(s.stderr, err)
		}
		fmt.Fprintln(s.stderr, "usage: jobs [-l]")
		opts.PrintOptions(s.stderr)
		return 1
	}

	s.jobs.PrintJobs(s.stdout, *long)
	return 0
}

// Fg continues a job in the foreground.
func Fg(s *Shell, args []string) int {
	job := s.lookupJob(args)
	if job == nil {
		return 1
	}
	s.jobs.Foreground(job)
	return 0
}

// Bg continues a stopped job in the background.
func Bg(s *Shell, args []string) int {
	job := s.lookupJob(args)
	if job == nil {
		return 1
	}
	s.jobs.Background(job)
	return 0
}

// Stop suspends a job.
func Stop(s *Shell, args []string) int {
	job := s.lookupJob(args)
	if job == nil {
		return 1
	}
	s.jobs.Stop(job)
	return 0
}

// Kill signals a job, SIGTERM unless -s is given.
func Kill(s *Shell, args []string) int {
	opts := getopt.New()
	sigName := opts.StringLong("signal", 's', "TERM", "signal to send, by name or number")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		if err != nil {
			fmt.Fprintln(s.stderr, err)
		}
		fmt.Fprintln(s.stderr, "usage: kill [-s SIGNAL] <job>")
		opts.PrintOptions(s.stderr)
		return 1
	}

	sig, err := parseSignal(*sigName)
	if err != nil {
		fmt.Fprintf(s.stderr, "%s: %v\n", args[0], err)
		return 1
	}

	job := s.lookupJob(append([]string{args[0]}, opts.Args()...))
	if job == nil {
		return 1
	}
	s.jobs.Kill(job, sig)
	return 0
}

func parseSignal(name string) (unix.Signal, error) {
	if n, err := strconv.Atoi(name); err == nil {
		if n <= 0 || unix.SignalName(unix.Signal(n)) == "" {
			return 0, fmt.Errorf("%s: invalid signal specification", name)
		}
		return unix.Signal(n), nil
	}
	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, "SIG") {
		upper = "SIG" + upper
	}
	sig := unix.SignalNum(upper)
	if sig == 0 {
		return 0, fmt.Errorf("%s: invalid signal specification", name)
	}
	return sig, nil
}

// Exit quits the shell
func Exit(s *Shell, args []string) int {
	s.exiting = true
	return 0
}

// HistoryCmd prints or clears the history.
func HistoryCmd(s *Shell, args []string) int {
	opts := getopt.New()
	clear := opts.Bool('c', "clear the history by deleting all entries")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.stderr
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "Display or manipulate the history list")
		fmt.Fprintln(w, "Display the history list with line numbers.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		return 1
	}

	if *clear {
		s.history.Clear()
		if s.line != nil {
			s.line.ClearHistory()
		}
		return 0
	}

	length := -1
	if rest := opts.Args(); len(rest) > 0 {
		n, err := strconv.Atoi(rest[0])
		if err != nil || n < 0 {
			fmt.Fprintf(s.stderr, "%[1]s: usage %[1]s [len]\n", args[0])
			return 1
		}
		length = n
	}
	s.history.Print(s.stdout, length)
	return 0
}

// Custom toggles the host and directory prompt.
func Custom(s *Shell, args []string) int {
	s.custom = !s.custom
	return 0
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	switch len(args) {
	case 1:
		args = append(args, os.Getenv(EnvHome))
		fallthrough
	case 2:
		if err := os.Chdir(args[1]); err != nil {
			fmt.Fprintf(s.stderr, "%s: %v\n", args[0], err)
			return 1
		}
		if wd, err := os.Getwd(); err == nil {
			os.Setenv(EnvPWD, wd)
		}
	default:
		fmt.Fprintf(s.stderr, "%s: too many arguments\n", args[0])
		return 1
	}
	return 0
}

func Help(s *Shell, args []string) int {
	w := s.stdout
	fmt.Fprintln(w, "jsh, a job control shell")
	fmt.Fprintln(w, "These shell commands are defined internally.")
	fmt.Fprintln(w, "Jobs may be given as N or %N.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builtins:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Join(BuiltinNames(), "\n"))

	return 0
}

func init() {
	AllBuiltins["jobs"] = ShellBuiltinFunc(Jobs)
	AllBuiltins["fg"] = ShellBuiltinFunc(Fg)
	AllBuiltins["bg"] = ShellBuiltinFunc(Bg)
	AllBuiltins["stop"] = ShellBuiltinFunc(Stop)
	AllBuiltins["kill"] = ShellBuiltinFunc(Kill)
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["history"] = ShellBuiltinFunc(HistoryCmd)
	AllBuiltins["custom"] = ShellBuiltinFunc(Custom)
	AllBuiltins["cd"] = ShellBuiltinFunc(Cd)
	AllBuiltins["help"] = ShellBuiltinFunc(Help)
}
