package jobs

import (
	"container/heap"
	"errors"

	"github.com/josephlewis42/jsh/core/shell"
)

// MaxJobs bounds job ids to [1, MaxJobs).
const MaxJobs = 1 << 16

// ErrTooManyJobs is returned when every job id is in use.
var ErrTooManyJobs = errors.New("maximum number of jobs exceeded")

// Registry owns all live jobs. Ids index directly into an arena; ids freed by
// Sweep go on a free list and the lowest one is handed out next.
//
// The registry isn't safe for concurrent use, callers serialize through the
// controller's Hold.
type Registry struct {
	slots []*Job
	free  idHeap
	order []*Job
	limit int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		slots: make([]*Job, 1), // id 0 is never used
		limit: MaxJobs,
	}
}

// Create registers a job for the pipeline with the lowest free id.
func (r *Registry) Create(p *shell.Pipeline) (*Job, error) {
	var id int
	switch {
	case r.free.Len() > 0:
		id = heap.Pop(&r.free).(int)
	case len(r.slots) < r.limit:
		id = len(r.slots)
		r.slots = append(r.slots, nil)
	default:
		return nil, ErrTooManyJobs
	}

	job := newJob(p)
	job.id = id
	r.slots[id] = job
	r.order = append(r.order, job)
	return job, nil
}

// Lookup finds a registered job by id.
func (r *Registry) Lookup(id int) (*Job, bool) {
	if id <= 0 || id >= len(r.slots) || r.slots[id] == nil {
		return nil, false
	}
	return r.slots[id], true
}

// Len is the number of registered jobs.
func (r *Registry) Len() int {
	return len(r.order)
}

// Each calls fn for every job in creation order. With visibleOnly set, jobs
// whose processes have all terminated are skipped.
func (r *Registry) Each(visibleOnly bool, fn func(*Job)) {
	for _, job := range r.order {
		if visibleOnly && job.alive <= 0 {
			continue
		}
		fn(job)
	}
}

// Sweep removes every job without live processes, releasing its id and its
// pipeline, and returns the removed jobs. Jobs with a negative count are
// removed too; the caller decides how to report them.
func (r *Registry) Sweep() []*Job {
	var removed []*Job
	kept := r.order[:0]
	for _, job := range r.order {
		if job.alive > 0 {
			kept = append(kept, job)
			continue
		}
		removed = append(removed, job)
	}
	for i := len(kept); i < len(r.order); i++ {
		r.order[i] = nil
	}
	r.order = kept

	for _, job := range removed {
		r.slots[job.id] = nil
		heap.Push(&r.free, job.id)
		job.pipeline = nil
	}
	return removed
}

// idHeap is a min-heap of reclaimed ids.
type idHeap []int

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
