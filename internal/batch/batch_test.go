package batch

import (
	"context"
	"sync"
	"testing"
	"time"
)

// job mirrors internal/dispatch's dGraphJob: one coalesced update per robot.
type job struct {
	RobotID string
}

func TestBatcher_flushesOnMaxSize(t *testing.T) {
	var mu sync.Mutex
	var flushes [][]string

	b := NewBatcher[job](&BatcherConfig{MaxSize: 2, FlushInterval: time.Minute}, func(_ context.Context, jobs []job) error {
		mu.Lock()
		defer mu.Unlock()
		var robotIDs []string
		for _, j := range jobs {
			robotIDs = append(robotIDs, j.RobotID)
		}
		flushes = append(flushes, robotIDs)
		return nil
	})
	defer b.Close()

	ctx := context.Background()
	r1, err := b.Submit(ctx, job{RobotID: "robot-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := b.Submit(ctx, job{RobotID: "robot-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r1.Wait(ctx); err != nil {
		t.Fatalf("unexpected error waiting on job 1: %v", err)
	}
	if err := r2.Wait(ctx); err != nil {
		t.Fatalf("unexpected error waiting on job 2: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushes) != 1 || len(flushes[0]) != 2 {
		t.Fatalf("expected one flush of 2 coalesced jobs, got %+v", flushes)
	}
}

func TestBatcher_flushesOnInterval(t *testing.T) {
	flushed := make(chan []job, 1)

	b := NewBatcher[job](&BatcherConfig{MaxSize: 16, FlushInterval: 10 * time.Millisecond}, func(_ context.Context, jobs []job) error {
		flushed <- jobs
		return nil
	})
	defer b.Close()

	ctx := context.Background()
	result, err := b.Submit(ctx, job{RobotID: "robot-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case jobs := <-flushed:
		if len(jobs) != 1 || jobs[0].RobotID != "robot-1" {
			t.Fatalf("expected the lone job to flush once the interval elapsed, got %+v", jobs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the interval flush")
	}

	if err := result.Wait(ctx); err != nil {
		t.Fatalf("unexpected error waiting on the flushed job: %v", err)
	}
}
