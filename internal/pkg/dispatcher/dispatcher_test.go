package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSubmitBeforeStartPanics(t *testing.T) {
	d := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for Submit before Start")
		}
	}()
	d.Submit("too early", func(context.Context) {})
}

func TestRunPendingExecutesFIFO(t *testing.T) {
	d := New()
	d.Start()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		d.Submit("job", func(context.Context) {
			order = append(order, i)
		})
	}

	if n := d.RunPending(context.Background()); n != 5 {
		t.Fatalf("expected 5 jobs run, got %d", n)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d] = %d, jobs must run in submission order", i, got)
		}
	}
	if d.Len() != 0 {
		t.Fatalf("queue should be empty, has %d", d.Len())
	}
}

// Concurrent submitters model webhook request goroutines; a single consumer
// goroutine models the runtime loop. Every job must run exactly once, on the
// consumer goroutine.
func TestConcurrentSubmitSingleConsumer(t *testing.T) {
	d := New()
	d.Start()

	const submitters = 16
	const jobsEach = 25

	var mu sync.Mutex
	ran := 0

	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.After(5 * time.Second)
		for {
			mu.Lock()
			finished := ran == submitters*jobsEach
			mu.Unlock()
			if finished {
				return
			}
			select {
			case <-d.Wake():
				d.RunPending(context.Background())
			case <-deadline:
				return
			case <-time.After(10 * time.Millisecond):
				// Wake coalesces signals; poll to catch the tail.
				d.RunPending(context.Background())
			}
		}
	}()

	var wg sync.WaitGroup
	for s := 0; s < submitters; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < jobsEach; j++ {
				d.Submit("job", func(context.Context) {
					mu.Lock()
					ran++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if ran != submitters*jobsEach {
		t.Fatalf("expected %d jobs run exactly once, got %d", submitters*jobsEach, ran)
	}
}

func TestSubmitAfterStopIsDropped(t *testing.T) {
	d := New()
	d.Start()
	d.Stop()

	d.Submit("late", func(context.Context) {
		t.Fatal("job submitted after Stop must not run")
	})
	if n := d.RunPending(context.Background()); n != 0 {
		t.Fatalf("expected 0 jobs, got %d", n)
	}
}

// Models the runtime's shutdown sequence: Stop closes the queue before the
// final drain, so a submit racing the shutdown is dropped (and logged by
// Submit) instead of stranded in a queue nobody will drain.
func TestStopBeforeFinalDrainLeavesNothingStranded(t *testing.T) {
	d := New()
	d.Start()

	ran := 0
	d.Submit("accepted before stop", func(context.Context) { ran++ })

	d.Stop()
	d.Submit("racing the shutdown", func(context.Context) {
		t.Error("job submitted after Stop must not run")
	})

	if n := d.RunPending(context.Background()); n != 1 {
		t.Fatalf("final drain ran %d jobs, want 1", n)
	}
	if ran != 1 {
		t.Fatal("pre-stop job did not run on final drain")
	}
	if d.Len() != 0 {
		t.Fatalf("queue must be empty after final drain, has %d", d.Len())
	}
}

func TestStopKeepsQueuedJobsForFinalDrain(t *testing.T) {
	d := New()
	d.Start()

	ran := false
	d.Submit("queued before stop", func(context.Context) { ran = true })
	d.Stop()

	if n := d.RunPending(context.Background()); n != 1 {
		t.Fatalf("expected final drain to run 1 job, got %d", n)
	}
	if !ran {
		t.Fatal("queued job did not run on final drain")
	}
}
