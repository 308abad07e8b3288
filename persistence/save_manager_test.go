package persistence

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lixenwraith/sixty-below/clock"
	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/scheduler"
	"github.com/lixenwraith/sixty-below/status"
	"github.com/lixenwraith/sixty-below/world"
)

const testInterval = 2 * time.Second

type saveFixture struct {
	m        *SaveManager
	store    *world.Store
	sched    *scheduler.Scheduler
	queue    *microtask.Queue
	bus      *event.Bus
	reg      *status.Registry
	complete []*event.SaveCompletePayload
	failed   []*event.SaveFailedPayload
}

func newSaveFixture(t *testing.T, repo Repository) *saveFixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	layout, err := world.NewLayout(6, 5)
	if err != nil {
		t.Fatal(err)
	}

	f := &saveFixture{
		store: world.NewStore(layout),
		reg:   status.NewRegistry(),
		bus:   event.NewBus(logger),
	}
	f.queue = microtask.NewQueue(clock.NewMonotonicProvider(), logger, f.reg)
	f.sched = scheduler.New(f.queue, logger, f.reg)
	event.Subscribe(f.bus, event.SaveComplete, "test", func(p *event.SaveCompletePayload) error {
		f.complete = append(f.complete, p)
		return nil
	})
	event.Subscribe(f.bus, event.SaveFailed, "test", func(p *event.SaveFailedPayload) error {
		f.failed = append(f.failed, p)
		return nil
	})

	f.m, err = NewSaveManager(SaveDeps{
		Store:     f.store,
		Scheduler: f.sched,
		Repo:      repo,
		Bus:       f.bus,
		Log:       logger,
		Status:    f.reg,
		Interval:  testInterval,
	})
	if err != nil {
		t.Fatalf("NewSaveManager: %v", err)
	}
	return f
}

// waitPoll polls until at least one outcome is applied
func (f *saveFixture) waitPoll(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if f.m.Poll() > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no save outcome within 5s")
}

type failingRepo struct {
	err   error
	calls int
}

func (r *failingRepo) LoadChunks() ([]world.PersistRecord, error) { return nil, nil }
func (r *failingRepo) Close() error                               { return nil }

func (r *failingRepo) Apply(Batch) (Result, error) {
	r.calls++
	return Result{}, r.err
}

func TestAutoSaveWritesDirtyChunks(t *testing.T) {
	repo := openTestRepo(t)
	f := newSaveFixture(t, repo)
	if err := f.m.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.m.Stop() })

	f.store.SetTile(17, 3, constant.TileStone) // chunk 1
	f.sched.Update(testInterval)
	f.queue.Run(time.Second)
	f.waitPoll(t)

	if key := f.store.ChunkKey(1); key == world.NoKey {
		t.Error("chunk 1 has no key after save")
	}
	if len(f.complete) != 1 || f.complete[0].Chunks != 1 || f.complete[0].Inserted != 1 {
		t.Errorf("SaveComplete = %+v", f.complete)
	}
	if due, ok := f.sched.Due(constant.AutoSaveID); !ok || due != 2*testInterval {
		t.Errorf("auto save re-armed at %v (%v), want %v", due, ok, 2*testInterval)
	}

	records, _ := repo.LoadChunks()
	if len(records) != 1 || records[0].Block[f.store.Layout().BlockOffset(17, 3)] != constant.TileStone {
		t.Errorf("persisted = %+v", records)
	}
}

func TestAutoSaveSkipsWhenClean(t *testing.T) {
	repo := &failingRepo{}
	f := newSaveFixture(t, repo)
	f.m.Start()
	t.Cleanup(func() { f.m.Stop() })

	f.sched.Update(testInterval)
	f.queue.Run(time.Second)
	if repo.calls != 0 {
		t.Errorf("empty save reached the repository")
	}
}

func TestInFlightChunkNotInsertedTwice(t *testing.T) {
	f := newSaveFixture(t, &failingRepo{})

	f.store.SetTile(1, 1, constant.TileDirt)
	first := f.m.collect()
	if len(first.Chunks) != 1 || first.Chunks[0].Key != world.NoKey {
		t.Fatalf("first batch = %+v", first.Chunks)
	}

	f.store.SetTile(2, 1, constant.TileDirt)
	second := f.m.collect()
	if len(second.Chunks) != 0 {
		t.Fatalf("chunk re-sent while its insert is in flight: %+v", second.Chunks)
	}

	f.m.apply(outcome{batch: first, res: Result{ChunkKeys: map[int]world.Key{0: 5}}})
	if f.store.ChunkKey(0) != 5 {
		t.Fatalf("ChunkKey = %d, want 5", f.store.ChunkKey(0))
	}

	third := f.m.collect()
	if len(third.Chunks) != 1 || third.Chunks[0].Key != 5 {
		t.Errorf("deferred chunk = %+v, want keyed update", third.Chunks)
	}
}

func TestFailedSaveRestoresWork(t *testing.T) {
	repo := &failingRepo{err: errors.New("disk full")}
	f := newSaveFixture(t, repo)

	f.store.SetTile(5, 5, constant.TileSand)
	f.m.QueueGameState("day", 4)

	if err := f.m.Flush(); err == nil {
		t.Fatal("Flush succeeded against failing repo")
	}
	if len(f.failed) != 1 || f.failed[0].Chunks != 1 {
		t.Errorf("SaveFailed = %+v", f.failed)
	}
	if f.m.Pending() != 1 {
		t.Errorf("static update not re-queued: Pending = %d", f.m.Pending())
	}

	retry := f.m.collect()
	if len(retry.Chunks) != 1 || len(retry.Static) != 1 {
		t.Errorf("retry batch = %d chunks %d static, want 1/1", len(retry.Chunks), len(retry.Static))
	}
}

func TestDeleteDuringFailedWriteStaysDeleted(t *testing.T) {
	f := newSaveFixture(t, &failingRepo{})

	f.m.QueueStaticUpdate(StaticUpdate{Bucket: BucketPlayer, ID: "x", Value: []byte("1")})
	sent := f.m.collect()
	if len(sent.Static) != 1 {
		t.Fatalf("sent = %+v, want the write", sent.Static)
	}

	// The caller deletes before the write's outcome is known
	f.m.QueueStaticUpdate(StaticUpdate{Bucket: BucketPlayer, ID: "x", Delete: true})
	if f.m.Pending() != 1 {
		t.Fatalf("Pending = %d, want the delete kept", f.m.Pending())
	}

	f.m.apply(outcome{batch: sent, err: errors.New("disk full")})

	retry := f.m.collect().Static
	if len(retry) != 1 || !retry[0].Delete || !retry[0].Persisted {
		t.Errorf("retry = %+v, want one persisted delete", retry)
	}
}

func TestDeleteAfterAcknowledgedWriteIsDropped(t *testing.T) {
	f := newSaveFixture(t, &failingRepo{})

	f.m.QueueStaticUpdate(StaticUpdate{Bucket: BucketPlayer, ID: "x", Value: []byte("1")})
	sent := f.m.collect()
	f.m.apply(outcome{batch: sent})

	f.m.QueueStaticUpdate(StaticUpdate{Bucket: BucketPlayer, ID: "x", Delete: true})
	if f.m.Pending() != 0 {
		t.Errorf("Pending = %d, want unsaved delete dropped once nothing is in flight", f.m.Pending())
	}
}

func TestBusyWriterDefersWithoutFailing(t *testing.T) {
	f := newSaveFixture(t, &failingRepo{})
	// Writer not started: fill its request buffer so the next batch cannot be handed off
	f.m.running.Store(true)
	for i := 0; i < writerQueueDepth; i++ {
		f.m.requests <- Batch{}
	}

	f.store.SetTile(17, 3, constant.TileStone)
	f.m.QueueGameState("day", 2)
	f.queue.Enqueue(f.m.job, constant.PriorityProcessSave, constant.CapacityProcessSave)
	f.queue.Run(time.Second)

	if got := f.reg.Ints.Get("microtask.failed").Load(); got != 0 {
		t.Errorf("microtask.failed = %d, want 0", got)
	}
	if got := f.reg.Ints.Get("save.skipped").Load(); got != 1 {
		t.Errorf("save.skipped = %d, want 1", got)
	}
	if dirty := f.store.ConsumeSaveDirty(); !dirty.Has(1) {
		t.Errorf("save dirty = %v, want chunk 1 re-marked", dirty)
	}
	if f.m.Pending() != 1 {
		t.Errorf("Pending = %d, want the static update re-queued", f.m.Pending())
	}
	if len(f.m.staticFlight) != 0 {
		t.Errorf("static ids still in flight: %v", f.m.staticFlight)
	}
	f.m.running.Store(false)
}

func TestQueueStaticUpdate(t *testing.T) {
	put := func(id, v string) StaticUpdate {
		return StaticUpdate{Bucket: BucketInventory, ID: id, Value: []byte(v)}
	}
	del := func(id string, persisted bool) StaticUpdate {
		return StaticUpdate{Bucket: BucketInventory, ID: id, Delete: true, Persisted: persisted}
	}

	tests := []struct {
		name     string
		updates  []StaticUpdate
		accepted int
		want     []StaticUpdate
	}{
		{"later write wins", []StaticUpdate{put("a", "1"), put("a", "2")}, 2, []StaticUpdate{put("a", "2")}},
		{"unsaved delete cancels write", []StaticUpdate{put("a", "1"), del("a", false)}, 2, nil},
		{"saved delete replaces write", []StaticUpdate{put("a", "1"), del("a", true)}, 2, []StaticUpdate{del("a", true)}},
		{"order kept", []StaticUpdate{put("b", "1"), put("a", "1"), put("b", "2")}, 3, []StaticUpdate{put("b", "2"), put("a", "1")}},
		{"invalid rejected", []StaticUpdate{
			{Bucket: BucketWorld, ID: "x", Value: []byte("1")},
			{Bucket: BucketInventory, Value: []byte("1")},
			{Bucket: BucketInventory, ID: "x"},
		}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSaveFixture(t, &failingRepo{})
			if n := f.m.QueueStaticUpdate(tt.updates...); n != tt.accepted {
				t.Errorf("accepted = %d, want %d", n, tt.accepted)
			}
			got := f.m.collect().Static
			if len(got) != len(tt.want) {
				t.Fatalf("batch = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i].ID != tt.want[i].ID || got[i].Delete != tt.want[i].Delete || string(got[i].Value) != string(tt.want[i].Value) {
					t.Errorf("batch[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestStopFlushes(t *testing.T) {
	repo := openTestRepo(t)
	f := newSaveFixture(t, repo)
	f.m.Start()

	f.store.SetTile(40, 20, constant.TileOre)
	if err := f.m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	idx := f.store.Layout().ChunkOf(40, 20)
	if f.store.ChunkKey(idx) == world.NoKey {
		t.Error("Stop did not flush the dirty chunk")
	}
	if f.sched.Has(scheduler.ID(constant.AutoSaveID)) {
		t.Error("auto save still scheduled after Stop")
	}
	if err := f.m.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
