// @focus: #sched { microtask }
package microtask

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/clock"
	"github.com/lixenwraith/sixty-below/status"
)

// Capacity is expressed in quarter-millisecond units
const (
	MinCapacity     = 1
	MaxCapacity     = 20
	DefaultCapacity = MaxCapacity

	// Unit is the duration of one capacity unit
	Unit = 250 * time.Microsecond

	// WarnQueueLength triggers a debug dump of the queue after insertion
	WarnQueueLength = 20
	// MaxQueueLength is the soft saturation limit, logged as an error per run
	MaxQueueLength = 100

	// OverrunThreshold flags a single task as a budget violation
	OverrunThreshold = 5 * time.Millisecond

	capacityBits = 5
)

type task struct {
	job      *Job
	priority int
	capacity int
	key      int
	args     []any
}

// Queue runs pending background jobs inside a frame's leftover budget
//
// Tasks are kept sorted ascending by (priority << 5) | capacity, so the
// highest priority and, within it, the most expensive task sits at the tail.
// Run always executes the tail task, then best-fits the rest into the
// remaining wall-clock budget scanning from the tail.
//
// Capacities are self-declared by callers and never enforced: a task that
// overruns simply runs to completion and later tasks find less time left.
//
// Not safe for concurrent use; owned by the frame loop goroutine
type Queue struct {
	tasks []task
	clock clock.Provider
	log   logrus.FieldLogger
	stats *Stats

	statExecuted *atomic.Int64
	statFailed   *atomic.Int64
	statOverruns *atomic.Int64
}

// NewQueue creates an empty queue measuring time with clk
func NewQueue(clk clock.Provider, log logrus.FieldLogger, reg *status.Registry) *Queue {
	return &Queue{
		clock:        clk,
		log:          log.WithField("component", "microtask"),
		stats:        NewStats(),
		statExecuted: reg.Ints.Get("microtask.executed"),
		statFailed:   reg.Ints.Get("microtask.failed"),
		statOverruns: reg.Ints.Get("microtask.overruns"),
	}
}

func clampCapacity(capacity int) int {
	if capacity == 0 {
		return DefaultCapacity
	}
	return max(MinCapacity, min(capacity, MaxCapacity))
}

func sortKey(priority, capacity int) int {
	return (priority << capacityBits) | capacity
}

// Enqueue adds a job run; capacity 0 means the default (maximum) cost
// Capacity is the caller's own estimate; Run trusts it and only measures overruns afterwards
func (q *Queue) Enqueue(job *Job, priority, capacity int, args ...any) {
	capacity = clampCapacity(capacity)
	t := task{
		job:      job,
		priority: priority,
		capacity: capacity,
		key:      sortKey(priority, capacity),
		args:     args,
	}

	// Upper bound keeps equal keys in insertion order
	i := sort.Search(len(q.tasks), func(i int) bool { return q.tasks[i].key > t.key })
	q.tasks = slices.Insert(q.tasks, i, t)

	if len(q.tasks) > WarnQueueLength {
		q.log.WithField("length", len(q.tasks)).Debugf("queue above %d tasks:%s", WarnQueueLength, q.Debug())
	}
}

// EnqueueOnce adds the job only if the same job is not already queued
func (q *Queue) EnqueueOnce(job *Job, priority, capacity int, args ...any) {
	if q.Contains(job) {
		return
	}
	q.Enqueue(job, priority, capacity, args...)
}

// Contains reports whether job has a pending run
func (q *Queue) Contains(job *Job) bool {
	for i := range q.tasks {
		if q.tasks[i].job == job {
			return true
		}
	}
	return false
}

// Dequeue removes every pending run of job
func (q *Queue) Dequeue(job *Job) {
	q.tasks = slices.DeleteFunc(q.tasks, func(t task) bool { return t.job == job })
}

// Clear drops all pending tasks
func (q *Queue) Clear() {
	clear(q.tasks)
	q.tasks = q.tasks[:0]
}

// Len is the number of pending tasks
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Run executes tasks within budget and returns how many ran
// The top task always runs, whatever the budget
func (q *Queue) Run(budget time.Duration) int {
	if len(q.tasks) == 0 {
		return 0
	}
	if len(q.tasks) > MaxQueueLength {
		q.log.WithField("length", len(q.tasks)).Errorf("queue saturated above %d tasks", MaxQueueLength)
	}

	units := int(budget / Unit)
	deadline := q.clock.Now().Add(time.Duration(units) * Unit)

	top := q.tasks[len(q.tasks)-1]
	q.tasks = q.tasks[:len(q.tasks)-1]
	q.execute(top)
	executed := 1

	for len(q.tasks) > 0 {
		now := q.clock.Now()
		if !now.Before(deadline) {
			break
		}
		remaining := int(deadline.Sub(now) / Unit)

		i := q.findInBudget(remaining)
		if i < 0 {
			break
		}
		t := q.tasks[i]
		q.tasks = slices.Delete(q.tasks, i, i+1)
		q.execute(t)
		executed++
	}
	return executed
}

// findInBudget scans from the high-priority end for the first task that fits
func (q *Queue) findInBudget(units int) int {
	for i := len(q.tasks) - 1; i >= 0; i-- {
		if q.tasks[i].capacity <= units {
			return i
		}
	}
	return -1
}

func (q *Queue) execute(t task) {
	start := q.clock.Now()
	err := invoke(t)
	elapsed := q.clock.Now().Sub(start)

	q.statExecuted.Add(1)
	if err != nil {
		q.statFailed.Add(1)
		q.log.WithFields(logrus.Fields{
			"job":      t.job.name,
			"priority": t.priority,
			"capacity": t.capacity,
		}).WithError(err).Error("task failed")
	}
	if elapsed > OverrunThreshold {
		q.statOverruns.Add(1)
		q.log.WithFields(logrus.Fields{
			"job":      t.job.name,
			"capacity": t.capacity,
			"elapsed":  elapsed,
		}).Warnf("task exceeded %v", OverrunThreshold)
	}
	q.stats.record(t.job.name, t.capacity, elapsed)
}

func invoke(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.job.fn(t.args...)
}

// Debug lists pending tasks, highest priority first
func (q *Queue) Debug() string {
	var b strings.Builder
	for i := len(q.tasks) - 1; i >= 0; i-- {
		t := q.tasks[i]
		fmt.Fprintf(&b, "\n%s (prio: %d, cap: %d units)", t.job.name, t.priority, t.capacity)
	}
	return b.String()
}

// Stats returns the per-job execution statistics
func (q *Queue) Stats() *Stats {
	return q.stats
}

// DebugStats renders the per-job histogram dump
func (q *Queue) DebugStats() string {
	return q.stats.Text()
}

// ResetStats clears the per-job histograms
func (q *Queue) ResetStats() {
	q.log.Debug("stats reset")
	q.stats.Reset()
}
