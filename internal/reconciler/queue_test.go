package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"
)

func request(triggers ...Trigger) ReconcileRequest {
	return ReconcileRequest{Key: reconcileKey, Triggers: triggers, Timestamp: time.Now()}
}

func TestWorkQueue_AddAndGet(t *testing.T) {
	q := NewQueue()
	q.Add(request(TriggerStartup))

	if q.Len() != 1 {
		t.Errorf("expected queue length 1, got %d", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}
	if !got.Has(TriggerStartup) {
		t.Errorf("got unexpected request: %+v", got)
	}
	q.Done(got)
}

func TestWorkQueue_MergesWaitingRequests(t *testing.T) {
	q := NewQueue()
	q.Add(request(TriggerPeriodic))
	q.Add(request(TriggerFileChanged))
	q.Add(request(TriggerPeriodic))

	if q.Len() != 1 {
		t.Errorf("expected queue length 1 after merging, got %d", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}
	if len(got.Triggers) != 2 || !got.Has(TriggerPeriodic) || !got.Has(TriggerFileChanged) {
		t.Errorf("expected merged triggers, got %v", got.Triggers)
	}
	q.Done(got)
}

func TestWorkQueue_DirtyRequeue(t *testing.T) {
	q := NewQueue()
	q.Add(request(TriggerStartup))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}

	// Triggers arriving during the pass collapse into one follow-up.
	q.Add(request(TriggerFileChanged))
	q.Add(request(TriggerContextSwitch))
	q.Add(request(TriggerFileChanged))

	if q.Len() != 0 {
		t.Errorf("expected queue length 0 while processing, got %d", q.Len())
	}

	q.Done(got)

	if q.Len() != 1 {
		t.Fatalf("expected queue length 1 after done, got %d", q.Len())
	}

	next, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected follow-up request")
	}
	if len(next.Triggers) != 2 || !next.Has(TriggerFileChanged) || !next.Has(TriggerContextSwitch) {
		t.Errorf("expected merged follow-up, got %v", next.Triggers)
	}
	q.Done(next)

	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestWorkQueue_GetCancelled(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := q.Get(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Get to fail after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not return after cancel")
	}
}

func TestWorkQueue_Shutdown(t *testing.T) {
	q := NewQueue()
	q.Add(request(TriggerStartup))
	q.Shutdown()

	if _, ok := q.Get(context.Background()); ok {
		t.Error("expected Get to fail after shutdown")
	}

	q.Add(request(TriggerManual))
	if q.Len() != 0 {
		t.Errorf("expected Add to be ignored after shutdown, got length %d", q.Len())
	}
}

func TestWorkQueue_SingleWorkerNeverOverlaps(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		running int
		overlap bool
		passes  int
	)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				req, ok := q.Get(ctx)
				if !ok {
					return
				}
				mu.Lock()
				running++
				if running > 1 {
					overlap = true
				}
				passes++
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				q.Done(req)
			}
		}()
	}

	for i := 0; i < 100; i++ {
		q.Add(request(TriggerPeriodic))
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	q.Shutdown()
	wg.Wait()

	if overlap {
		t.Error("two passes for the same key ran concurrently")
	}
	if passes == 0 || passes > 100 {
		t.Errorf("unexpected number of passes: %d", passes)
	}
}

func TestReconcileRequest_Merge(t *testing.T) {
	early := time.Now()
	late := early.Add(time.Second)

	a := ReconcileRequest{Key: reconcileKey, Triggers: []Trigger{TriggerPeriodic}, Timestamp: late}
	b := ReconcileRequest{Key: reconcileKey, Triggers: []Trigger{TriggerFileRemoved, TriggerPeriodic}, Timestamp: early}

	merged := a.merge(b)
	if !merged.Timestamp.Equal(early) {
		t.Errorf("expected earliest timestamp, got %v", merged.Timestamp)
	}
	if len(merged.Triggers) != 2 {
		t.Errorf("expected 2 distinct triggers, got %v", merged.Triggers)
	}
}

func TestTrigger_RebuildsFocused(t *testing.T) {
	tests := []struct {
		trigger Trigger
		want    bool
	}{
		{TriggerStartup, true},
		{TriggerFileChanged, true},
		{TriggerFileRemoved, true},
		{TriggerContextSwitch, true},
		{TriggerPathChanged, true},
		{TriggerPeriodic, false},
		{TriggerManual, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.trigger), func(t *testing.T) {
			if got := tt.trigger.rebuildsFocused(); got != tt.want {
				t.Errorf("rebuildsFocused() = %v, want %v", got, tt.want)
			}
		})
	}
}
