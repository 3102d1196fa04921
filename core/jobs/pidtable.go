package jobs

import "sort"

// PIDTable maps process ids back to the job that owns them.
//
// Removal is two-phase: Resolve with tombstone set clears the job reference
// in place and only Sweep reclaims the slot. The notification path never
// shrinks the table.
type PIDTable struct {
	entries map[int]*pidEntry
}

type pidEntry struct {
	// job is nil once the entry has been tombstoned.
	job *Job
}

// NewPIDTable creates an empty table.
func NewPIDTable() *PIDTable {
	return &PIDTable{entries: make(map[int]*pidEntry)}
}

// Bind records that pid belongs to job. Binding a pid that is still live is a
// caller error; binding over a tombstone reuses the slot.
func (t *PIDTable) Bind(pid int, job *Job) {
	if entry, ok := t.entries[pid]; ok {
		entry.job = job
		return
	}
	t.entries[pid] = &pidEntry{job: job}
}

// Resolve returns the job owning pid, or nil. If tombstone is set the entry
// is cleared so later lookups for pid find nothing.
func (t *PIDTable) Resolve(pid int, tombstone bool) *Job {
	entry, ok := t.entries[pid]
	if !ok {
		return nil
	}
	job := entry.job
	if tombstone {
		entry.job = nil
	}
	return job
}

// PIDs lists the processes of job that haven't been tombstoned, in ascending
// order.
func (t *PIDTable) PIDs(job *Job) []int {
	var pids []int
	for pid, entry := range t.entries {
		if entry.job == job {
			pids = append(pids, pid)
		}
	}
	sort.Ints(pids)
	return pids
}

// Sweep removes tombstoned entries and returns how many were removed.
func (t *PIDTable) Sweep() int {
	deleted := 0
	for pid, entry := range t.entries {
		if entry.job == nil {
			delete(t.entries, pid)
			deleted++
		}
	}
	return deleted
}

// Len counts entries, tombstoned ones included.
func (t *PIDTable) Len() int {
	return len(t.entries)
}
