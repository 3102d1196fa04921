package jobs

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/josephlewis42/jsh/core/shell"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)
}

// sampleRegistry has one job in each state plus a finished one.
func sampleRegistry() *Registry {
	r := NewRegistry()
	add := func(status Status, pgid int, p *shell.Pipeline) {
		job, _ := r.Create(p)
		job.status = status
		job.pgid = pgid
		job.alive = len(p.Commands)
	}

	add(Foreground, 100, pipeline("sleep", "100"))
	add(Background, 200, &shell.Pipeline{
		Commands: []*shell.Command{
			{Argv: []string{"make"}, MergeStderr: true},
			{Argv: []string{"tee", "log"}},
		},
		Output:     "/dev/null",
		Background: true,
	})
	add(Stopped, 300, pipeline("vim", "notes.txt"))
	add(NeedsTerminal, 400, pipeline("cat"))
	add(Background, 500, pipeline("true"))
	job, _ := r.Lookup(5)
	job.alive = 0
	return r
}

func TestReporter_Line(t *testing.T) {
	g := newGoldie(t)
	r := NewReporter(false)
	registry := sampleRegistry()

	for name, long := range map[string]bool{"short": false, "long": true} {
		var out bytes.Buffer
		r.List(&out, registry, long)
		g.Assert(t, name, out.Bytes())
	}
}

func TestReporter_Announce(t *testing.T) {
	g := newGoldie(t)
	r := NewReporter(false)
	registry := sampleRegistry()

	var out bytes.Buffer
	registry.Each(true, func(job *Job) {
		r.Announce(&out, job)
	})
	g.Assert(t, "announce", out.Bytes())
}

func TestReporter_color(t *testing.T) {
	r := NewReporter(true)
	job := &Job{id: 1, pgid: 10, status: Stopped, pipeline: pipeline("vim")}

	var out bytes.Buffer
	r.Line(&out, job, false)

	assert.Equal(t, "[1]\t\x1b[33mStopped\x1b[0m\t\t(vim)\n", out.String())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Running", Background.String())
	assert.Equal(t, "Stopped (tty)", NeedsTerminal.String())
	assert.Equal(t, "Unknown", Status(42).String())
	assert.True(t, NeedsTerminal.IsStopped())
	assert.False(t, Foreground.IsStopped())
}
