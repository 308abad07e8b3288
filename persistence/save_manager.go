// @focus: #persist { save }
package persistence

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/core"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/scheduler"
	"github.com/lixenwraith/sixty-below/status"
	"github.com/lixenwraith/sixty-below/world"
)

// writerQueueDepth bounds batches handed to the writer but not yet committed
const writerQueueDepth = 4

// SaveDeps are the collaborators of a SaveManager
type SaveDeps struct {
	Store     *world.Store
	Scheduler *scheduler.Scheduler
	Repo      Repository
	Bus       *event.Bus
	Log       logrus.FieldLogger
	Status    *status.Registry
	Interval  time.Duration
}

type outcome struct {
	batch Batch
	res   Result
	err   error
}

// SaveManager periodically persists save-dirty chunks and pending static updates
//
// The auto_save job runs as a microtask on the frame goroutine: it re-arms itself,
// collects the batch and hands it to a writer goroutine, so the frame never waits
// on disk. Poll, called in the update phase, applies outcomes back to the store.
type SaveManager struct {
	store    *world.Store
	sched    *scheduler.Scheduler
	repo     Repository
	bus      *event.Bus
	log      logrus.FieldLogger
	interval time.Duration
	job      *microtask.Job

	// Frame goroutine only
	pending      map[string]StaticUpdate
	pendingOrder []string
	inFlight     map[int]struct{} // Unkeyed chunks whose first insert is not yet acknowledged
	staticFlight map[string]int   // Static ids carried by batches not yet acknowledged

	requests chan Batch
	results  chan outcome
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	running  atomic.Bool

	statSaves   *atomic.Int64
	statFailed  *atomic.Int64
	statChunks  *atomic.Int64
	statSkipped *atomic.Int64
}

// NewSaveManager wires a manager; Start launches it
func NewSaveManager(d SaveDeps) (*SaveManager, error) {
	switch {
	case d.Store == nil, d.Scheduler == nil, d.Repo == nil, d.Bus == nil, d.Log == nil, d.Status == nil:
		return nil, errors.New("save manager: missing dependency")
	case d.Interval <= 0:
		return nil, fmt.Errorf("save manager: interval %v must be positive", d.Interval)
	}

	m := &SaveManager{
		store:        d.Store,
		sched:        d.Scheduler,
		repo:         d.Repo,
		bus:          d.Bus,
		log:          d.Log.WithField("component", "save"),
		interval:     d.Interval,
		pending:      make(map[string]StaticUpdate),
		inFlight:     make(map[int]struct{}),
		staticFlight: make(map[string]int),
		requests:     make(chan Batch, writerQueueDepth),
		results:      make(chan outcome, writerQueueDepth),
		done:         make(chan struct{}),
		statSaves:    d.Status.Ints.Get("save.batches"),
		statFailed:   d.Status.Ints.Get("save.failed"),
		statChunks:   d.Status.Ints.Get("save.chunks"),
		statSkipped:  d.Status.Ints.Get("save.skipped"),
	}
	m.job = microtask.NewJob("process_save", m.processSave)
	return m, nil
}

// Name implements service.Service
func (m *SaveManager) Name() string { return "persistence" }

// Dependencies implements service.Service
func (m *SaveManager) Dependencies() []string { return nil }

// Init implements service.Service
func (m *SaveManager) Init() error { return nil }

// Start launches the writer and schedules the first auto save
func (m *SaveManager) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("save manager already started")
	}
	m.running.Store(true)
	core.Go(m.writer)
	m.sched.Reschedule(constant.AutoSaveID, m.interval, m.job, constant.PriorityProcessSave, constant.CapacityProcessSave)
	m.log.WithField("interval", m.interval).Info("auto save started")
	return nil
}

// Stop cancels auto save, drains the writer and flushes what is still dirty
// Must be called from the frame goroutine once the loop has stopped
func (m *SaveManager) Stop() error {
	if !m.started.Load() {
		return nil
	}
	var err error
	m.stopOnce.Do(func() {
		m.sched.Cancel(scheduler.ID(constant.AutoSaveID))
		m.running.Store(false)
		close(m.requests)
		m.drainUntilDone()
		err = m.Flush()
		m.log.Info("auto save stopped")
	})
	return err
}

// drainUntilDone applies outcomes while waiting, so a writer blocked on a full
// results channel can finish
func (m *SaveManager) drainUntilDone() {
	for {
		select {
		case o := <-m.results:
			m.apply(o)
		case <-m.done:
			m.Poll()
			return
		}
	}
}

func (m *SaveManager) writer() {
	defer close(m.done)
	for batch := range m.requests {
		res, err := m.repo.Apply(batch)
		m.results <- outcome{batch: batch, res: res, err: err}
	}
}

// processSave is the auto_save microtask body
func (m *SaveManager) processSave(...any) error {
	if !m.running.Load() {
		return nil
	}
	m.sched.Schedule(constant.AutoSaveID, m.interval, m.job, constant.PriorityProcessSave, constant.CapacityProcessSave)

	batch := m.collect()
	if batch.Empty() {
		return nil
	}
	select {
	case m.requests <- batch:
		return nil
	default:
		m.restore(batch)
		m.statSkipped.Add(1)
		m.log.WithField("chunks", len(batch.Chunks)).Warn("writer busy, batch deferred to next save")
		return nil
	}
}

// collect drains the save-dirty set and the static queue into one batch
func (m *SaveManager) collect() Batch {
	var batch Batch

	if dirty := m.store.ConsumeSaveDirty(); dirty != nil {
		for _, idx := range dirty.Sorted() {
			rec := m.store.ChunkPersistData(idx)
			if rec.Key == world.NoKey {
				if _, busy := m.inFlight[idx]; busy {
					// Wait for the key; inserting again would duplicate the record
					m.store.MarkSaveDirty(idx)
					continue
				}
				m.inFlight[idx] = struct{}{}
			}
			batch.Chunks = append(batch.Chunks, rec)
		}
	}

	if len(m.pendingOrder) > 0 {
		batch.Static = make([]StaticUpdate, 0, len(m.pendingOrder))
		for _, id := range m.pendingOrder {
			batch.Static = append(batch.Static, m.pending[id])
			m.staticFlight[id]++
		}
		clear(m.pending)
		m.pendingOrder = m.pendingOrder[:0]
	}
	return batch
}

// restore puts a batch that was never written back into the dirty set and queue
func (m *SaveManager) restore(batch Batch) {
	for _, rec := range batch.Chunks {
		if rec.Key == world.NoKey {
			delete(m.inFlight, rec.Index)
		}
		m.store.MarkSaveDirty(rec.Index)
	}
	m.releaseStatic(batch)
	for _, u := range batch.Static {
		// A newer update for the same id supersedes the failed one
		if _, newer := m.pending[staticID(u)]; !newer {
			m.put(u)
		}
	}
}

// releaseStatic marks the batch's static ids as no longer in flight
func (m *SaveManager) releaseStatic(batch Batch) {
	for _, u := range batch.Static {
		id := staticID(u)
		if m.staticFlight[id] <= 1 {
			delete(m.staticFlight, id)
		} else {
			m.staticFlight[id]--
		}
	}
}

// Poll applies committed or failed batches; call once per frame in the update phase
// Returns the number of outcomes applied
func (m *SaveManager) Poll() int {
	n := 0
	for {
		select {
		case o := <-m.results:
			m.apply(o)
			n++
		default:
			return n
		}
	}
}

func (m *SaveManager) apply(o outcome) {
	if o.err != nil {
		m.restore(o.batch)
		m.statFailed.Add(1)
		m.log.WithError(o.err).WithField("chunks", len(o.batch.Chunks)).Error("save failed")
		m.bus.Emit(event.SaveFailed, &event.SaveFailedPayload{Chunks: len(o.batch.Chunks), Err: o.err})
		return
	}

	m.releaseStatic(o.batch)
	for _, rec := range o.batch.Chunks {
		if rec.Key != world.NoKey {
			continue
		}
		delete(m.inFlight, rec.Index)
		if key, ok := o.res.ChunkKeys[rec.Index]; ok {
			m.store.SetChunkKey(rec.Index, key)
		}
	}
	m.statSaves.Add(1)
	m.statChunks.Add(int64(len(o.batch.Chunks)))
	m.bus.Emit(event.SaveComplete, &event.SaveCompletePayload{
		Chunks:   len(o.batch.Chunks),
		Inserted: len(o.res.ChunkKeys),
		Static:   len(o.batch.Static),
		Elapsed:  o.res.Elapsed,
	})
}

// Flush writes everything pending synchronously; only valid while the writer is stopped
func (m *SaveManager) Flush() error {
	if m.running.Load() {
		return errors.New("flush while writer running")
	}
	batch := m.collect()
	if batch.Empty() {
		return nil
	}
	res, err := m.repo.Apply(batch)
	m.apply(outcome{batch: batch, res: res, err: err})
	return err
}

func staticID(u StaticUpdate) string {
	return u.Bucket + "/" + u.ID
}

func (m *SaveManager) put(u StaticUpdate) {
	id := staticID(u)
	if _, exists := m.pending[id]; !exists {
		m.pendingOrder = append(m.pendingOrder, id)
	}
	m.pending[id] = u
}

func (m *SaveManager) drop(id string) {
	if _, exists := m.pending[id]; !exists {
		return
	}
	delete(m.pending, id)
	for i, v := range m.pendingOrder {
		if v == id {
			m.pendingOrder = append(m.pendingOrder[:i], m.pendingOrder[i+1:]...)
			break
		}
	}
}

// QueueStaticUpdate stages record writes for the next save, deduplicated by bucket and id
// A later write replaces an earlier one. A delete cancels a pending write for the
// same id and is itself dropped when the record never reached disk. A delete for an
// id whose write is still with the writer always goes to disk: that write may land.
// Malformed updates are logged and skipped; returns how many were accepted
func (m *SaveManager) QueueStaticUpdate(updates ...StaticUpdate) int {
	accepted := 0
	for _, u := range updates {
		if err := validateStatic(u); err != nil {
			m.log.WithError(err).Error("static update rejected")
			continue
		}
		accepted++
		if u.Delete {
			id := staticID(u)
			m.drop(id)
			if m.staticFlight[id] > 0 {
				u.Persisted = true
			}
			if u.Persisted {
				m.put(u)
			}
			continue
		}
		m.put(u)
	}
	return accepted
}

func validateStatic(u StaticUpdate) error {
	switch {
	case !isStaticBucket(u.Bucket):
		return fmt.Errorf("%q: %w", u.Bucket, ErrUnknownBucket)
	case u.ID == "":
		return fmt.Errorf("%s: record without id", u.Bucket)
	case !u.Delete && u.Value == nil:
		return fmt.Errorf("%s/%s: write without value", u.Bucket, u.ID)
	}
	return nil
}

// QueueGameState stages a gamestate value for the next save
func (m *SaveManager) QueueGameState(key string, value any) error {
	u, err := GameStateUpdate(key, value)
	if err != nil {
		return err
	}
	m.QueueStaticUpdate(u)
	return nil
}

// Pending returns the number of staged static updates
func (m *SaveManager) Pending() int {
	return len(m.pendingOrder)
}
