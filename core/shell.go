// Package core is the interactive shell: it reads command lines, expands
// history and aliases, runs built-ins and hands everything else to the job
// controller.
package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/josephlewis42/jsh/core/config"
	"github.com/josephlewis42/jsh/core/jobs"
	"github.com/josephlewis42/jsh/core/shell"
	"github.com/josephlewis42/jsh/core/termstate"
	"github.com/peterh/liner"
)

// LineReader reads command lines. *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	ClearHistory()
	Close() error
}

// Options configures a Shell.
type Options struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Logger receives diagnostics, defaults to Stderr.
	Logger *log.Logger
	// Events receives job lifecycle events.
	Events jobs.EventRecorder
	// Interactive enables job control and line editing. It's forced off when
	// Stdin isn't a terminal.
	Interactive bool
}

type Shell struct {
	cfg         *config.Configuration
	interactive bool

	term    *termstate.Terminal
	jobs    *jobs.Controller
	line    LineReader
	parser  *shell.Parser
	aliases shell.Aliases
	history *History

	stdout io.Writer
	stderr io.Writer
	log    *log.Logger

	custom  bool
	exiting bool

	hostname func() (string, error)
	getwd    func() (string, error)
	geteuid  func() int
}

// NewShell creates a shell and takes control of its terminal.
func NewShell(cfg *config.Configuration, opts Options) (*Shell, error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = log.New(opts.Stderr, "", 0)
	}

	aliases, err := shell.ParseAliases(cfg.Aliases)
	if err != nil {
		return nil, err
	}

	term := termstate.New(opts.Stdin)
	interactive := opts.Interactive && term.Interactive()
	if interactive {
		if err := term.Init(); err != nil {
			return nil, fmt.Errorf("initializing terminal: %w", err)
		}
	}

	s := &Shell{
		cfg:         cfg,
		interactive: interactive,
		term:        term,
		parser:      &shell.Parser{},
		aliases:     aliases,
		history:     NewHistory(cfg.HistoryLimit),
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		log:         opts.Logger,
		custom:      cfg.CustomPrompt,
		hostname:    os.Hostname,
		getwd:       os.Getwd,
		geteuid:     os.Geteuid,
	}

	var terminal jobs.Terminal
	if interactive {
		terminal = term
	}
	s.jobs = jobs.New(jobs.Options{
		Stdin:       opts.Stdin,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
		Terminal:    terminal,
		Builtins:    s,
		Logger:      opts.Logger,
		Events:      opts.Events,
		AnomalyRate: cfg.AnomalyRate,
		Color:       cfg.UseColor(termstate.IsTerminal(opts.Stdout)),
	})

	if interactive {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		s.line = state
		s.loadHistory()
	} else {
		s.line = &plainReader{r: bufio.NewReader(opts.Stdin)}
	}
	return s, nil
}

// Jobs returns the shell's job controller.
func (s *Shell) Jobs() *jobs.Controller {
	return s.jobs
}

// Run reads and evaluates lines until end of input or exit.
func (s *Shell) Run(ctx context.Context) error {
	if s.line == nil {
		return errors.New("shell is closed")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.jobs.StartBridge(ctx)
	defer s.Close()

	newline := false
	for !s.exiting {
		s.jobs.Reclaim()

		select {
		case <-s.jobs.Interrupts():
			newline = true
		default:
		}
		if newline && s.interactive {
			fmt.Fprintln(s.stdout)
		}
		newline = false

		input, err := s.line.Prompt(s.Prompt())
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, liner.ErrPromptAborted):
			newline = true
			continue
		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}

		s.Eval(input)
	}
	return nil
}

// RunCommand evaluates a single command line without prompting.
func (s *Shell) RunCommand(ctx context.Context, input string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.jobs.StartBridge(ctx)

	s.Eval(input)
}

// Eval runs one line of input.
func (s *Shell) Eval(input string) {
	input = s.history.Expand(input)
	if strings.TrimSpace(input) == "" {
		return
	}
	s.history.Add(input)
	if s.line != nil {
		s.line.AppendHistory(input)
	}

	cmdline, err := s.parser.Parse(input)
	if err != nil {
		fmt.Fprintf(s.stderr, "jsh: %v\n", err)
		return
	}
	if cmdline.Empty() {
		return
	}
	s.aliases.Expand(cmdline)

	s.jobs.Sweep()
	s.jobs.LaunchAll(cmdline)
}

// Exiting is true once the exit built-in ran.
func (s *Shell) Exiting() bool {
	return s.exiting
}

// Close saves history and releases the line reader.
func (s *Shell) Close() error {
	if s.line == nil {
		return nil
	}
	if s.interactive {
		s.saveHistory()
	}
	err := s.line.Close()
	s.line = nil
	return err
}

// plainReader reads lines from a non-terminal without editing.
type plainReader struct {
	r *bufio.Reader
}

func (p *plainReader) Prompt(string) (string, error) {
	line, err := p.r.ReadString('\n')
	if err == io.EOF && line != "" {
		return line, nil
	}
	return strings.TrimSuffix(line, "\n"), err
}

func (p *plainReader) AppendHistory(string) {}
func (p *plainReader) ClearHistory()        {}
func (p *plainReader) Close() error         { return nil }

func (s *Shell) loadHistory() {
	fd, err := s.cfg.ReadHistory()
	if err != nil {
		return
	}
	defer fd.Close()

	contents, err := io.ReadAll(fd)
	if err != nil {
		s.log.Printf("reading history: %v", err)
		return
	}
	for _, entry := range strings.Split(string(contents), "\n") {
		if entry == "" {
			continue
		}
		s.history.Add(entry)
		s.line.AppendHistory(entry)
	}
}

func (s *Shell) saveHistory() {
	if s.cfg.HistoryFile == "" {
		return
	}
	fd, err := s.cfg.WriteHistory()
	if err != nil {
		s.log.Printf("saving history: %v", err)
		return
	}
	defer fd.Close()

	for _, entry := range s.history.Entries() {
		if _, err := fmt.Fprintln(fd, entry); err != nil {
			s.log.Printf("saving history: %v", err)
			return
		}
	}
}
