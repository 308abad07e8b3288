package status

import (
	"sync"
	"testing"
)

func TestMetricMapGetCachesPointer(t *testing.T) {
	r := NewRegistry()

	a := r.Ints.Get("frame.count")
	b := r.Ints.Get("frame.count")
	if a != b {
		t.Error("Get returned different pointers for the same key")
	}
	a.Store(7)
	if b.Load() != 7 {
		t.Errorf("shared pointer value = %d, want 7", b.Load())
	}
	if !r.Ints.Has("frame.count") || r.Ints.Has("frame.other") {
		t.Error("Has reported wrong membership")
	}
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	r.Ints.Get("microtask.queue").Store(3)
	r.Floats.Get("frame.update_ms").Set(1.5)
	r.Bools.Get("loop.paused").Store(true)

	snap := r.Snapshot()
	if len(snap) != 3 || r.TotalCount() != 3 {
		t.Fatalf("snapshot has %d entries, registry %d, want 3", len(snap), r.TotalCount())
	}
	if snap["microtask.queue"] != int64(3) {
		t.Errorf("microtask.queue = %v, want 3", snap["microtask.queue"])
	}
	if snap["frame.update_ms"] != 1.5 {
		t.Errorf("frame.update_ms = %v, want 1.5", snap["frame.update_ms"])
	}
	if snap["loop.paused"] != true {
		t.Errorf("loop.paused = %v, want true", snap["loop.paused"])
	}
}

func TestAtomicFloatConcurrentAdd(t *testing.T) {
	var f AtomicFloat
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				f.Add(0.5)
			}
		}()
	}
	wg.Wait()

	if got := f.Get(); got != 4000 {
		t.Errorf("Get = %v, want 4000", got)
	}
}

func TestAtomicFloatMax(t *testing.T) {
	var f AtomicFloat
	f.Max(3)
	f.Max(1)
	if got := f.Max(2); got != 3 {
		t.Errorf("Max = %v, want 3", got)
	}
}

func TestRangeSortedOrder(t *testing.T) {
	m := NewMetricMap[int]()
	for _, k := range []string{"c", "a", "b"} {
		*m.Get(k) = len(k)
	}
	var keys []string
	m.Range(func(key string, _ *int) { keys = append(keys, key) })
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("Range order = %v, want [a b c]", keys)
	}
}
