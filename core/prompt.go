package core

import (
	"fmt"
	"os"
	"os/user"
	"strings"
)

const (
	EnvHome = "HOME"
	EnvPWD  = "PWD"
	EnvUser = "USER"

	DefaultPrompt = "jsh> "
)

// Prompt builds the prompt shown before reading a line. Non-interactive
// shells don't prompt.
func (s *Shell) Prompt() string {
	switch {
	case !s.interactive:
		return ""
	case s.custom:
		return s.customPrompt()
	case s.cfg.Prompt != "":
		return s.expandPrompt(s.cfg.Prompt)
	default:
		return DefaultPrompt
	}
}

func (s *Shell) customPrompt() string {
	host, _ := s.hostname()
	cwd, _ := s.getwd()
	return fmt.Sprintf("host[%s] in: %s>", host, cwd)
}

// expandPrompt replaces \u, \h, \w and \$ in a PS1 style template.
func (s *Shell) expandPrompt(prompt string) string {
	username := os.Getenv(EnvUser)
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	prompt = strings.ReplaceAll(prompt, `\u`, username)

	host, _ := s.hostname()
	if i := strings.IndexByte(host, '.'); i >= 0 {
		host = host[:i]
	}
	prompt = strings.ReplaceAll(prompt, `\h`, host)

	pwd, _ := s.getwd()
	home := os.Getenv(EnvHome)
	if home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)

	if s.geteuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return prompt
}
