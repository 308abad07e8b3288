// @focus: #sched { deferred }
package scheduler

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/status"
)

// minCompactTombstones is the tombstone floor below which compaction never runs
const minCompactTombstones = 64

// Enqueuer receives due tasks; satisfied by *microtask.Queue
type Enqueuer interface {
	Enqueue(job *microtask.Job, priority, capacity int, args ...any)
}

type task struct {
	id       string
	due      time.Duration
	job      *microtask.Job
	args     []any
	priority int
	capacity int
	removed  bool
}

// Entry is a read-only view of a pending task
type Entry struct {
	ID       string        `json:"id"`
	Due      time.Duration `json:"due"`
	Job      string        `json:"job"`
	Priority int           `json:"priority"`
	Capacity int           `json:"capacity"`
}

// Scheduler holds jobs keyed by logical due time and promotes due ones into a queue
//
// Tasks live in one slice sorted by due time, soonest at the tail, so the drain
// in Update pops from the end. Cancellation only flags a task; flagged tasks are
// freed when they reach the tail or when a compaction pass runs, which keeps
// cancel safe while a caller is mid-way through a drain-triggered reschedule.
//
// Time is the game's logical clock, never wall-clock. Not safe for concurrent use
type Scheduler struct {
	tasks      []*task
	now        time.Duration
	tombstones int

	queue Enqueuer
	log   logrus.FieldLogger

	statPromoted    *atomic.Int64
	statCancelled   *atomic.Int64
	statCompactions *atomic.Int64
}

// New creates an empty scheduler feeding queue
func New(queue Enqueuer, log logrus.FieldLogger, reg *status.Registry) *Scheduler {
	return &Scheduler{
		queue:           queue,
		log:             log.WithField("component", "scheduler"),
		statPromoted:    reg.Ints.Get("scheduler.promoted"),
		statCancelled:   reg.Ints.Get("scheduler.cancelled"),
		statCompactions: reg.Ints.Get("scheduler.compactions"),
	}
}

// insert keeps descending due order; equal due times pop in scheduling order
func (s *Scheduler) insert(t *task) {
	i := sort.Search(len(s.tasks), func(i int) bool { return s.tasks[i].due <= t.due })
	s.tasks = slices.Insert(s.tasks, i, t)
}

func (s *Scheduler) add(id string, due time.Duration, job *microtask.Job, priority, capacity int, args []any) {
	if id == "" {
		panic("scheduler: empty task id")
	}
	if job == nil {
		panic(fmt.Sprintf("scheduler: nil job for task %q", id))
	}
	s.insert(&task{
		id:       id,
		due:      due,
		job:      job,
		args:     args,
		priority: priority,
		capacity: capacity,
	})
}

// Schedule adds a task due delay after the current logical time
func (s *Scheduler) Schedule(id string, delay time.Duration, job *microtask.Job, priority, capacity int, args ...any) {
	s.add(id, s.now+delay, job, priority, capacity, args)
}

// Reschedule cancels every active task with id and schedules a fresh one
func (s *Scheduler) Reschedule(id string, delay time.Duration, job *microtask.Job, priority, capacity int, args ...any) {
	s.Cancel(ID(id))
	s.Schedule(id, delay, job, priority, capacity, args...)
}

// Extend pushes the single active task with id back by delay from its existing due time
// With zero or several matches it cancels them and schedules delay after now instead.
// Either way exactly one task with id remains, carrying the supplied job and args
func (s *Scheduler) Extend(id string, delay time.Duration, job *microtask.Job, priority, capacity int, args ...any) {
	var match *task
	count := 0
	for _, t := range s.tasks {
		if !t.removed && t.id == id {
			match = t
			count++
		}
	}

	due := s.now + delay
	if count == 1 {
		due = match.due + delay
	} else if count > 1 {
		s.log.WithFields(logrus.Fields{"id": id, "matches": count}).Warn("ambiguous extend, scheduling from now")
	}
	if count > 0 {
		s.Cancel(ID(id))
	}
	s.add(id, due, job, priority, capacity, args)
}

// ScheduleOnce schedules only if no active task with id exists, reporting whether it did
func (s *Scheduler) ScheduleOnce(id string, delay time.Duration, job *microtask.Job, priority, capacity int, args ...any) bool {
	if s.Has(ID(id)) {
		return false
	}
	s.Schedule(id, delay, job, priority, capacity, args...)
	return true
}

// ScheduleAfter chains newID to run delay after the latest active task matching sel,
// or delay after now when nothing matches
func (s *Scheduler) ScheduleAfter(sel Selector, newID string, delay time.Duration, job *microtask.Job, priority, capacity int, args ...any) {
	base := s.now
	found := false
	for _, t := range s.tasks {
		if t.removed || !sel.Match(t.id) {
			continue
		}
		if !found || t.due > base {
			base = t.due
			found = true
		}
	}
	s.add(newID, base+delay, job, priority, capacity, args)
}

// Cancel tombstones every active task matching sel and returns how many it hit
func (s *Scheduler) Cancel(sel Selector) int {
	n := 0
	for _, t := range s.tasks {
		if !t.removed && sel.Match(t.id) {
			t.removed = true
			t.args = nil
			n++
		}
	}
	s.tombstones += n
	s.statCancelled.Add(int64(n))
	return n
}

// Has reports whether any active task matches sel
func (s *Scheduler) Has(sel Selector) bool {
	for _, t := range s.tasks {
		if !t.removed && sel.Match(t.id) {
			return true
		}
	}
	return false
}

// Due returns the latest due time among active tasks with id
func (s *Scheduler) Due(id string) (time.Duration, bool) {
	var due time.Duration
	found := false
	for _, t := range s.tasks {
		if !t.removed && t.id == id && (!found || t.due > due) {
			due = t.due
			found = true
		}
	}
	return due, found
}

// Update sets the logical clock to now and promotes every due task, soonest first
// Returns the number of tasks handed to the queue
func (s *Scheduler) Update(now time.Duration) int {
	s.now = now
	promoted := 0

	for len(s.tasks) > 0 {
		last := len(s.tasks) - 1
		t := s.tasks[last]
		if t.due > now {
			break
		}
		s.tasks[last] = nil
		s.tasks = s.tasks[:last]

		if t.removed {
			s.tombstones--
			continue
		}
		s.queue.Enqueue(t.job, t.priority, t.capacity, t.args...)
		promoted++
	}
	s.statPromoted.Add(int64(promoted))

	if s.tombstones > max(minCompactTombstones, len(s.tasks)-s.tombstones) {
		s.compact()
	}
	return promoted
}

// compact drops tombstones without disturbing the order of live tasks
func (s *Scheduler) compact() {
	before := len(s.tasks)
	s.tasks = slices.DeleteFunc(s.tasks, func(t *task) bool { return t.removed })
	s.tombstones = 0
	s.statCompactions.Add(1)
	s.log.WithFields(logrus.Fields{"before": before, "after": len(s.tasks)}).Debug("compacted")
}

// Now is the logical time given to the last Update
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Len is the raw slice length, tombstones included
func (s *Scheduler) Len() int {
	return len(s.tasks)
}

// Active counts tasks that will still fire
func (s *Scheduler) Active() int {
	return len(s.tasks) - s.tombstones
}

// Tombstones counts cancelled tasks not yet freed
func (s *Scheduler) Tombstones() int {
	return s.tombstones
}

// Clear drops every task; the clock is kept
func (s *Scheduler) Clear() {
	clear(s.tasks)
	s.tasks = s.tasks[:0]
	s.tombstones = 0
}

// Snapshot lists active tasks, soonest first
func (s *Scheduler) Snapshot() []Entry {
	out := make([]Entry, 0, s.Active())
	for i := len(s.tasks) - 1; i >= 0; i-- {
		t := s.tasks[i]
		if t.removed {
			continue
		}
		out = append(out, Entry{
			ID:       t.id,
			Due:      t.due,
			Job:      t.job.Name(),
			Priority: t.priority,
			Capacity: t.capacity,
		})
	}
	return out
}

// Debug renders the pending tasks, soonest first
func (s *Scheduler) Debug() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scheduler @%v: %d live, %d tombstones", s.now, s.Active(), s.tombstones)
	for _, e := range s.Snapshot() {
		fmt.Fprintf(&b, "\n%s -> %s at %v (prio: %d, cap: %d)", e.ID, e.Job, e.Due, e.Priority, e.Capacity)
	}
	return b.String()
}
