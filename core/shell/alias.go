package shell

import (
	"fmt"

	"github.com/anmitsu/go-shlex"
)

// Aliases maps a command name to the words that replace it.
type Aliases map[string][]string

// ParseAliases splits alias definitions into words using POSIX quoting rules.
func ParseAliases(definitions map[string]string) (Aliases, error) {
	out := make(Aliases, len(definitions))
	for name, definition := range definitions {
		words, err := shlex.Split(definition, true)
		if err != nil {
			return nil, fmt.Errorf("alias %q: %w", name, err)
		}
		if len(words) == 0 {
			return nil, fmt.Errorf("alias %q: empty definition", name)
		}
		out[name] = words
	}
	return out, nil
}

// Expand replaces the program name of every command that matches an alias.
// Expansion happens once, so an alias may refer to a program of the same name.
func (a Aliases) Expand(line *CommandLine) {
	if line == nil || len(a) == 0 {
		return
	}
	for _, pipeline := range line.Pipelines {
		for _, cmd := range pipeline.Commands {
			words, ok := a[cmd.Name()]
			if !ok {
				continue
			}
			argv := make([]string, 0, len(words)+len(cmd.Argv)-1)
			argv = append(argv, words...)
			cmd.Argv = append(argv, cmd.Argv[1:]...)
		}
	}
}
