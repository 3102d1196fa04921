//go:build linux

package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/josephlewis42/jsh/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLaunchHarness uses real process creation and reaping.
func newLaunchHarness(t *testing.T) *harness {
	h := newHarness(t)
	h.Controller.wait = wait4
	h.Controller.signal = killpg
	return h
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	return len(entries)
}

func mustParse(t *testing.T, line string) *shell.CommandLine {
	t.Helper()
	parsed, err := shell.Parse(line)
	require.NoError(t, err)
	return parsed
}

func TestLaunch_pipelineToFile(t *testing.T) {
	h := newLaunchHarness(t)
	out := filepath.Join(t.TempDir(), "out")

	h.LaunchAll(mustParse(t, "echo hello | cat > "+out))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))

	job, ok := h.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, 0, job.Alive())
	assert.NotZero(t, job.PGID())
	assert.Empty(t, h.fatals)
	assert.Zero(t, h.Anomalies())
}

func TestLaunch_twoStagesToStdout(t *testing.T) {
	h := newLaunchHarness(t)

	h.LaunchAll(mustParse(t, `printf 'a\nb\nc\n' | sort -r`))

	assert.Equal(t, "c\nb\na\n", h.stdout())
}

func TestLaunch_redirections(t *testing.T) {
	h := newLaunchHarness(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(in, []byte("one\n"), 0644))
	require.NoError(t, os.WriteFile(out, []byte("stale contents\n"), 0644))

	h.LaunchAll(mustParse(t, "cat < "+in+" > "+out))
	h.LaunchAll(mustParse(t, "echo two >> "+out))
	h.LaunchAll(mustParse(t, "ls "+filepath.Join(dir, "missing")+" &>> "+out))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := string(got)
	assert.Contains(t, lines, "one\ntwo\n")
	assert.NotContains(t, lines, "stale")
	assert.Contains(t, lines, "missing", "stderr merged into the file")
	assert.Empty(t, h.stderr())
}

func TestLaunch_commandNotFound(t *testing.T) {
	h := newLaunchHarness(t)

	h.LaunchAll(mustParse(t, "jsh-no-such-command --flag"))

	assert.Equal(t, "jsh-no-such-command: command not found\n", h.stderr())
	job, ok := h.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, 0, job.Alive())
	assert.Zero(t, h.pids.Len())
	assert.Empty(t, h.fatals)
}

func TestLaunch_notExecutable(t *testing.T) {
	h := newLaunchHarness(t)
	script := filepath.Join(t.TempDir(), "script")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0644))

	h.LaunchAll(mustParse(t, script))

	assert.Equal(t, script+": permission denied\n", h.stderr())
	assert.Empty(t, h.fatals)
}

func TestLaunch_partialPipeline(t *testing.T) {
	h := newLaunchHarness(t)

	h.LaunchAll(mustParse(t, "echo hi | jsh-no-such-command | cat"))

	job, ok := h.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, 0, job.Alive())
	assert.Contains(t, h.stderr(), "jsh-no-such-command: command not found")
}

func TestLaunch_descriptorsAreReleased(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.WriteFile(in, []byte("data\n"), 0644))

	cases := map[string]string{
		"success":          "cat < " + in + " | tr a-z A-Z | cat > " + filepath.Join(dir, "out"),
		"missing input":    "cat < " + filepath.Join(dir, "nope") + " | cat > " + filepath.Join(dir, "out2"),
		"bad output":       "echo x | cat > " + filepath.Join(dir, "no", "such", "dir"),
		"exec failure":     "cat < " + in + " | jsh-no-such-command | cat > " + filepath.Join(dir, "out3"),
		"background":       "cat < " + in + " > " + filepath.Join(dir, "out4") + " &",
		"merged to a file": "ls " + dir + " &> " + filepath.Join(dir, "out5"),
	}

	// The runtime's poller keeps descriptors of its own once first used.
	r, w, err := os.Pipe()
	require.NoError(t, err)
	r.Close()
	w.Close()

	for tn, line := range cases {
		t.Run(tn, func(t *testing.T) {
			h := newLaunchHarness(t)
			parsed := mustParse(t, line)

			before := openFDs(t)
			h.LaunchAll(parsed)
			after := openFDs(t)

			assert.Equal(t, before, after)
			h.reapAll(t)
		})
	}
}

func TestLaunch_degradedRedirections(t *testing.T) {
	h := newLaunchHarness(t)
	dir := t.TempDir()

	h.LaunchAll(mustParse(t, "echo fallback > "+filepath.Join(dir, "no", "file")))

	assert.Equal(t, "fallback\n", h.stdout())
	assert.Contains(t, h.stderr(), "could not open "+filepath.Join(dir, "no", "file")+", writing to stdout")
}

func TestLaunch_foregroundExitReturnsTerminal(t *testing.T) {
	h := newLaunchHarness(t)

	h.LaunchAll(mustParse(t, "true"))

	assert.Equal(t, 1, h.term.samples)
	assert.Equal(t, 1, h.term.reclaims)

	jobs, pids := h.Sweep()
	assert.Equal(t, 1, jobs)
	assert.Equal(t, 1, pids)

	// The shell can launch the next command straight away.
	h.LaunchAll(mustParse(t, "echo again"))
	assert.Equal(t, "again\n", h.stdout())
}

func TestLaunch_backgroundReapedByBridge(t *testing.T) {
	h := newLaunchHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.StartBridge(ctx)

	h.LaunchAll(mustParse(t, "sleep 0 | sleep 0 &"))

	job, ok := h.Lookup(1)
	require.True(t, ok)
	assert.Regexp(t, `^\[1\] \d+\n$`, h.stdout())

	require.Eventually(t, func() bool {
		alive := 0
		h.hold.Do(func() { alive = job.alive })
		return alive == 0
	}, 10*time.Second, 10*time.Millisecond)

	jobs, _ := h.Sweep()
	assert.Equal(t, 1, jobs)
	assert.Zero(t, h.Anomalies())
}

// reapAll waits for every child started by the test.
func (h *harness) reapAll(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.hold.Do(h.drain)
		alive := 0
		h.hold.Do(func() {
			h.registry.Each(true, func(*Job) { alive++ })
		})
		return alive == 0
	}, 10*time.Second, 10*time.Millisecond)
}
