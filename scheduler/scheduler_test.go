package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lixenwraith/sixty-below/clock"
	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/status"
)

type promotion struct {
	job      string
	priority int
	capacity int
	args     []any
}

type recorder struct {
	got []promotion
}

func (r *recorder) Enqueue(job *microtask.Job, priority, capacity int, args ...any) {
	r.got = append(r.got, promotion{job.Name(), priority, capacity, args})
}

func (r *recorder) names() []string {
	out := make([]string, len(r.got))
	for i, p := range r.got {
		out[i] = p.job
	}
	return out
}

func newTestScheduler() (*Scheduler, *recorder) {
	logger, _ := test.NewNullLogger()
	rec := &recorder{}
	return New(rec, logger, status.NewRegistry()), rec
}

func nop(name string) *microtask.Job {
	return microtask.NewJob(name, func(...any) error { return nil })
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestScheduleFiresOnceAtDueTime(t *testing.T) {
	s, rec := newTestScheduler()
	s.Schedule("x", ms(100), nop("x"), 3, 2, "payload")

	if n := s.Update(ms(50)); n != 0 {
		t.Fatalf("Update(50) promoted %d, want 0", n)
	}
	if n := s.Update(ms(100)); n != 1 {
		t.Fatalf("Update(100) promoted %d, want 1", n)
	}
	if n := s.Update(ms(150)); n != 0 {
		t.Errorf("Update(150) promoted %d, want 0", n)
	}

	if len(rec.got) != 1 {
		t.Fatalf("promotions = %d, want 1", len(rec.got))
	}
	p := rec.got[0]
	if p.priority != 3 || p.capacity != 2 || len(p.args) != 1 || p.args[0] != "payload" {
		t.Errorf("promotion = %+v, want prio 3 cap 2 args [payload]", p)
	}
}

func TestDelayIsRelativeToLogicalNow(t *testing.T) {
	s, _ := newTestScheduler()
	s.Update(ms(1000))
	s.Schedule("x", ms(100), nop("x"), 1, 1)

	if due, ok := s.Due("x"); !ok || due != ms(1100) {
		t.Errorf("Due = %v, %v, want 1.1s", due, ok)
	}
}

func TestPromotionInDueOrder(t *testing.T) {
	s, rec := newTestScheduler()
	s.Schedule("c", ms(30), nop("c"), 1, 1)
	s.Schedule("a", ms(10), nop("a"), 1, 1)
	s.Schedule("b", ms(20), nop("b"), 1, 1)
	s.Schedule("b2", ms(20), nop("b2"), 1, 1)

	s.Update(ms(100))

	want := []string{"a", "b", "b2", "c"}
	got := rec.names()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("promotion order = %v, want %v", got, want)
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	s, rec := newTestScheduler()
	s.Schedule("x", ms(100), nop("x"), 1, 1)
	s.Schedule("y", ms(100), nop("y"), 1, 1)

	if n := s.Cancel(ID("x")); n != 1 {
		t.Fatalf("Cancel hit %d, want 1", n)
	}
	if s.Len() != 2 || s.Active() != 1 || s.Tombstones() != 1 {
		t.Errorf("Len/Active/Tombstones = %d/%d/%d, want 2/1/1", s.Len(), s.Active(), s.Tombstones())
	}

	s.Update(ms(500))
	if got := rec.names(); len(got) != 1 || got[0] != "y" {
		t.Errorf("promoted %v, want [y]", got)
	}
	if s.Len() != 0 || s.Tombstones() != 0 {
		t.Errorf("tombstone not freed on pop: Len %d, Tombstones %d", s.Len(), s.Tombstones())
	}
}

func TestCancelPattern(t *testing.T) {
	s, rec := newTestScheduler()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("chunk_%d", i)
		s.Schedule(id, ms(10), nop(id), 1, 1)
	}
	s.Schedule("auto_save", ms(10), nop("auto_save"), 1, 1)

	if n := s.Cancel(Pattern("^chunk_")); n != 3 {
		t.Errorf("Cancel pattern hit %d, want 3", n)
	}
	s.Update(ms(10))
	if got := rec.names(); len(got) != 1 || got[0] != "auto_save" {
		t.Errorf("promoted %v, want [auto_save]", got)
	}
}

func TestRescheduleReplaces(t *testing.T) {
	s, rec := newTestScheduler()
	s.Schedule("x", ms(100), nop("old"), 1, 1)
	s.Reschedule("x", ms(300), nop("new"), 1, 1)

	s.Update(ms(200))
	if len(rec.got) != 0 {
		t.Fatalf("fired early: %v", rec.names())
	}
	s.Update(ms(300))
	if got := rec.names(); len(got) != 1 || got[0] != "new" {
		t.Errorf("promoted %v, want [new]", got)
	}
}

func TestExtend(t *testing.T) {
	tests := []struct {
		name     string
		existing []time.Duration
		want     time.Duration
	}{
		{"single match extends due time", []time.Duration{ms(200)}, ms(250)},
		{"no match falls back to now", nil, ms(150)},
		{"ambiguous falls back to now", []time.Duration{ms(200), ms(400)}, ms(150)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newTestScheduler()
			for _, d := range tt.existing {
				s.Schedule("x", d, nop("x"), 1, 1)
			}
			s.Update(ms(100))

			s.Extend("x", ms(50), nop("extended"), 1, 1)

			if s.Active() != 1 {
				t.Fatalf("Active = %d, want 1", s.Active())
			}
			if due, _ := s.Due("x"); due != tt.want {
				t.Errorf("due = %v, want %v", due, tt.want)
			}
			s.Update(tt.want)
			if got := rec.names(); len(got) != 1 || got[0] != "extended" {
				t.Errorf("promoted %v, want [extended]", got)
			}
		})
	}
}

func TestScheduleOnce(t *testing.T) {
	s, _ := newTestScheduler()
	if !s.ScheduleOnce("x", ms(100), nop("x"), 1, 1) {
		t.Fatal("first ScheduleOnce refused")
	}
	if s.ScheduleOnce("x", ms(10), nop("x"), 1, 1) {
		t.Error("second ScheduleOnce accepted")
	}
	if s.Active() != 1 {
		t.Errorf("Active = %d, want 1", s.Active())
	}

	s.Cancel(ID("x"))
	if !s.ScheduleOnce("x", ms(10), nop("x"), 1, 1) {
		t.Error("ScheduleOnce refused after cancel")
	}
}

func TestScheduleAfter(t *testing.T) {
	s, _ := newTestScheduler()
	s.Schedule("load_1", ms(100), nop("l1"), 1, 1)
	s.Schedule("load_2", ms(300), nop("l2"), 1, 1)
	s.Schedule("load_3", ms(200), nop("l3"), 1, 1)

	s.ScheduleAfter(Pattern("^load_"), "done", ms(50), nop("done"), 1, 1)
	if due, _ := s.Due("done"); due != ms(350) {
		t.Errorf("chained due = %v, want 350ms", due)
	}

	s.Update(ms(20))
	s.ScheduleAfter(ID("missing"), "solo", ms(50), nop("solo"), 1, 1)
	if due, _ := s.Due("solo"); due != ms(70) {
		t.Errorf("unmatched chain due = %v, want 70ms", due)
	}
}

func TestCompactionBoundsTombstones(t *testing.T) {
	s, _ := newTestScheduler()
	s.Schedule("keep", ms(10_000), nop("keep"), 1, 1)
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("tmp_%d", i)
		s.Schedule(id, ms(5_000+i), nop(id), 1, 1)
	}
	s.Cancel(Pattern("^tmp_"))
	if s.Len() != 201 {
		t.Fatalf("Len before compaction = %d, want 201", s.Len())
	}

	s.Update(ms(1))
	if s.Len() != 1 || s.Tombstones() != 0 || s.Active() != 1 {
		t.Errorf("after compaction Len/Tombstones/Active = %d/%d/%d, want 1/0/1",
			s.Len(), s.Tombstones(), s.Active())
	}
}

func TestCompactionSkippedBelowFloor(t *testing.T) {
	s, _ := newTestScheduler()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("tmp_%d", i)
		s.Schedule(id, ms(5_000), nop(id), 1, 1)
	}
	s.Cancel(Pattern("^tmp_"))
	s.Update(ms(1))
	if s.Tombstones() != 10 {
		t.Errorf("Tombstones = %d, want 10 kept below floor", s.Tombstones())
	}
}

func TestSelectorPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"empty id", func() { ID("") }},
		{"empty pattern", func() { Pattern("") }},
		{"bad pattern", func() { Pattern("([") }},
		{"schedule empty id", func() {
			s, _ := newTestScheduler()
			s.Schedule("", ms(1), nop("x"), 1, 1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestAutoSavePromotedOncePerInterval(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := status.NewRegistry()
	clk := clock.NewMockProvider(time.Unix(0, 0))
	q := microtask.NewQueue(clk, logger, reg)
	s := New(q, logger, reg)

	interval := ms(2000)
	saves := 0
	var save *microtask.Job
	save = microtask.NewJob("auto_save", func(...any) error {
		s.Schedule("auto_save", interval, save, 20, 8)
		saves++
		return nil
	})
	s.Schedule("auto_save", interval, save, 20, 8)

	for i := 1; i <= 3; i++ {
		s.Update(time.Duration(i) * interval)
		q.Run(time.Second)
	}

	if saves != 3 {
		t.Errorf("save ran %d times, want 3", saves)
	}
	if got := reg.Ints.Get("scheduler.promoted").Load(); got != 3 {
		t.Errorf("scheduler.promoted = %d, want 3", got)
	}
	if s.Active() != 1 {
		t.Errorf("Active = %d, want the single re-armed save", s.Active())
	}
}

func TestSnapshotSoonestFirst(t *testing.T) {
	s, _ := newTestScheduler()
	s.Schedule("late", ms(200), nop("late_job"), 2, 3)
	s.Schedule("early", ms(100), nop("early_job"), 4, 5)
	s.Schedule("gone", ms(150), nop("gone"), 1, 1)
	s.Cancel(ID("gone"))

	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].ID != "early" || snap[1].ID != "late" {
		t.Fatalf("Snapshot = %+v", snap)
	}
	if snap[0].Job != "early_job" || snap[0].Priority != 4 || snap[0].Capacity != 5 {
		t.Errorf("entry = %+v", snap[0])
	}
}
