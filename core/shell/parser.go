// Package shell turns a line of user input into pipelines ready to launch.
//
// Parsing loosely follows the POSIX shell stages described at
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html:
// the input is broken into tokens, parsed into simple commands joined by
// pipes, words are expanded, and redirection operators are removed from the
// argument list. Compound commands, functions and control flow are not
// supported; they produce ErrUnsupported.
package shell

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrSyntax is returned when the input is not a valid command line.
	ErrSyntax = errors.New("syntax error")
	// ErrUnsupported is returned for valid shell syntax this shell can't run.
	ErrUnsupported = errors.New("unsupported")
)

// Parser converts command lines into pipelines.
type Parser struct {
	// Getenv resolves parameter expansions, os.Getenv is used if nil.
	Getenv func(key string) string
}

// Parse parses a line with the default parser.
func Parse(line string) (*CommandLine, error) {
	return (&Parser{}).Parse(line)
}

// Parse parses one line of input. Each statement separated by ; or & becomes
// its own pipeline, in order.
func (p *Parser) Parse(line string) (*CommandLine, error) {
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	out := &CommandLine{}
	for _, stmt := range file.Stmts {
		pipeline, err := p.pipeline(stmt)
		if err != nil {
			return nil, err
		}
		out.Pipelines = append(out.Pipelines, pipeline)
	}
	return out, nil
}

func (p *Parser) getenv(key string) string {
	if p.Getenv != nil {
		return p.Getenv(key)
	}
	return os.Getenv(key)
}

func unsupported(node syntax.Node, what string) error {
	return fmt.Errorf("%w: %s near column %d", ErrUnsupported, what, node.Pos().Col())
}

// pipelineBuilder tracks where redirections appeared so they can be checked
// once every stage is known.
type pipelineBuilder struct {
	*Pipeline
	inputAt  int
	outputAt int
}

func (p *Parser) pipeline(stmt *syntax.Stmt) (*Pipeline, error) {
	switch {
	case stmt.Negated:
		return nil, unsupported(stmt, "negated pipeline")
	case stmt.Coprocess:
		return nil, unsupported(stmt, "coprocess")
	}

	b := &pipelineBuilder{
		Pipeline: &Pipeline{Background: stmt.Background},
		inputAt:  -1,
		outputAt: -1,
	}
	if err := p.stages(b, stmt); err != nil {
		return nil, err
	}

	last := len(b.Commands) - 1
	switch {
	case b.inputAt > 0:
		return nil, fmt.Errorf("%w: input redirection is only allowed on the first command", ErrSyntax)
	case b.outputAt >= 0 && b.outputAt != last:
		return nil, fmt.Errorf("%w: output redirection is only allowed on the last command", ErrSyntax)
	}
	return b.Pipeline, nil
}

func (p *Parser) stages(b *pipelineBuilder, stmt *syntax.Stmt) error {
	switch cmd := stmt.Cmd.(type) {
	case *syntax.BinaryCmd:
		if len(stmt.Redirs) > 0 {
			return unsupported(stmt.Redirs[0], "redirecting a whole pipeline")
		}
		switch cmd.Op {
		case syntax.Pipe, syntax.PipeAll:
			if err := p.stages(b, cmd.X); err != nil {
				return err
			}
			if cmd.Op == syntax.PipeAll {
				b.Commands[len(b.Commands)-1].MergeStderr = true
			}
			return p.stages(b, cmd.Y)
		default:
			return unsupported(cmd, fmt.Sprintf("operator %s", cmd.Op))
		}

	case *syntax.CallExpr:
		if len(cmd.Assigns) > 0 {
			return unsupported(cmd.Assigns[0], "variable assignment")
		}
		command := &Command{}
		for _, word := range cmd.Args {
			arg, err := p.evalWord(word)
			if err != nil {
				return err
			}
			command.Argv = append(command.Argv, arg)
		}
		b.Commands = append(b.Commands, command)

		for _, redirect := range stmt.Redirs {
			if err := p.redirect(b, command, redirect); err != nil {
				return err
			}
		}
		return nil

	case nil:
		return unsupported(stmt, "redirection without a command")

	default:
		return unsupported(stmt, "compound command")
	}
}

func (p *Parser) redirect(b *pipelineBuilder, cmd *Command, redirect *syntax.Redirect) error {
	from := ""
	if redirect.N != nil {
		from = redirect.N.Value
	}
	to, err := p.evalWord(redirect.Word)
	if err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("%w: missing redirection target near column %d", ErrSyntax, redirect.Pos().Col())
	}

	here := len(b.Commands) - 1
	setOutput := func(append bool) {
		b.Output = to
		b.Append = append
		b.outputAt = here
	}

	switch {
	case redirect.Op == syntax.RdrIn && (from == "" || from == "0"):
		b.Input = to
		b.inputAt = here
	case (redirect.Op == syntax.RdrOut || redirect.Op == syntax.ClbOut) && (from == "" || from == "1"):
		setOutput(false)
	case redirect.Op == syntax.AppOut && (from == "" || from == "1"):
		setOutput(true)
	case redirect.Op == syntax.RdrAll:
		setOutput(false)
		cmd.MergeStderr = true
	case redirect.Op == syntax.AppAll:
		setOutput(true)
		cmd.MergeStderr = true
	case redirect.Op == syntax.DplOut && from == "2" && to == "1":
		cmd.MergeStderr = true
	case redirect.Op == syntax.DplOut && from == "" && !isNumber(to):
		setOutput(false)
		cmd.MergeStderr = true
	default:
		return unsupported(redirect, fmt.Sprintf("redirection %s%s", from, redirect.Op))
	}
	return nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (p *Parser) evalWord(word *syntax.Word) (string, error) {
	if word == nil {
		return "", nil
	}
	var out []string
	for i, part := range word.Parts {
		subEval, err := p.evalWordPart(part, false)
		if err != nil {
			return "", err
		}
		if lit, ok := part.(*syntax.Lit); ok && i == 0 {
			subEval = p.expandTilde(lit.Value, subEval)
		}
		out = append(out, subEval)
	}
	return strings.Join(out, ""), nil
}

// expandTilde replaces a leading unquoted ~ with $HOME.
func (p *Parser) expandTilde(raw, evaluated string) string {
	if raw == "~" || strings.HasPrefix(raw, "~/") {
		return p.getenv("HOME") + strings.TrimPrefix(evaluated, "~")
	}
	return evaluated
}

func (p *Parser) evalWordPart(part syntax.WordPart, quoted bool) (string, error) {
	switch part := part.(type) {
	case *syntax.Lit:
		return unescape(part.Value, quoted), nil

	case *syntax.SglQuoted:
		if part.Dollar {
			return "", unsupported(part, "$'...' quoting")
		}
		return part.Value, nil

	case *syntax.DblQuoted:
		var out []string
		for _, subPart := range part.Parts {
			subEval, err := p.evalWordPart(subPart, true)
			if err != nil {
				return "", err
			}
			out = append(out, subEval)
		}
		return strings.Join(out, ""), nil

	case *syntax.ParamExp:
		if part.Param == nil || part.Excl || part.Length || part.Width ||
			part.Index != nil || part.Slice != nil || part.Repl != nil || part.Exp != nil {
			return "", unsupported(part, "parameter expansion")
		}
		return p.getenv(part.Param.Value), nil

	default:
		return "", unsupported(part, "word expansion")
	}
}

// unescape removes the backslashes the lexer leaves in literals. Inside
// double quotes only \$, \`, \" and \\ are escapes.
func unescape(s string, quoted bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			sb.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		if quoted && !strings.ContainsRune("$`\"\\\n", rune(next)) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		if next != '\n' {
			sb.WriteByte(next)
		}
	}
	return sb.String()
}
