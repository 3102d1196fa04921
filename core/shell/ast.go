package shell

import (
	"strings"
)

// Command is a single program invocation within a pipeline.
type Command struct {
	// Argv holds the program name followed by its arguments.
	Argv []string

	// MergeStderr sends the command's standard error to wherever its standard
	// output goes (|&, 2>&1, &>).
	MergeStderr bool
}

// Name returns the program name.
func (c *Command) Name() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// Pipeline is a sequence of commands connected by pipes.
type Pipeline struct {
	Commands []*Command

	// Input is a path to read the first command's standard input from.
	Input string
	// Output is a path to write the last command's standard output to.
	Output string
	// Append opens Output for appending rather than truncating it.
	Append bool

	// Background is set for pipelines terminated by &.
	Background bool
}

// String renders the pipeline's commands the way a user would type them,
// without redirections.
func (p *Pipeline) String() string {
	var sb strings.Builder
	for i, cmd := range p.Commands {
		if i > 0 {
			if p.Commands[i-1].MergeStderr {
				sb.WriteString(" |& ")
			} else {
				sb.WriteString(" | ")
			}
		}
		sb.WriteString(strings.Join(cmd.Argv, " "))
	}
	return sb.String()
}

// CommandLine is everything parsed from one line of input.
type CommandLine struct {
	Pipelines []*Pipeline
}

// Empty is true when the line held no commands.
func (c *CommandLine) Empty() bool {
	return c == nil || len(c.Pipelines) == 0
}
