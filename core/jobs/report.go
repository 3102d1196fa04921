package jobs

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Reporter renders jobs as text.
type Reporter struct {
	statusColors map[Status]*color.Color
}

// NewReporter creates a reporter, coloring status words if useColor is set.
func NewReporter(useColor bool) *Reporter {
	r := &Reporter{
		statusColors: map[Status]*color.Color{
			Foreground:    color.New(color.FgCyan),
			Background:    color.New(color.FgGreen),
			Stopped:       color.New(color.FgYellow),
			NeedsTerminal: color.New(color.FgRed, color.Bold),
		},
	}
	for _, c := range r.statusColors {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

func (r *Reporter) status(s Status) string {
	if c, ok := r.statusColors[s]; ok {
		return c.Sprint(s.String())
	}
	return s.String()
}

// Announce writes the short form shown when a job goes to the background:
//
//	[1] 4242
func (r *Reporter) Announce(w io.Writer, job *Job) {
	fmt.Fprintf(w, "[%d] %d\n", job.id, job.pgid)
}

// Line writes one job's status line. The long form includes the process
// group.
//
//	[1]	Stopped		(sleep 100)
//	[1]	4242	Stopped		(sleep 100)
func (r *Reporter) Line(w io.Writer, job *Job, long bool) {
	if long {
		fmt.Fprintf(w, "[%d]\t%d\t%s\t\t(%s)\n", job.id, job.pgid, r.status(job.status), job.CommandLine())
		return
	}
	fmt.Fprintf(w, "[%d]\t%s\t\t(%s)\n", job.id, r.status(job.status), job.CommandLine())
}

// List writes a line for every visible job in creation order.
func (r *Reporter) List(w io.Writer, registry *Registry, long bool) {
	registry.Each(true, func(job *Job) {
		r.Line(w, job, long)
	})
}
