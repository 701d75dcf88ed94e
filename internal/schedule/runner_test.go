package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickFiresMatchingJobsOncePerMinute(t *testing.T) {
	r := NewRunner(time.Second, "", nil)
	cron, _ := ParseCron("* * * * *")

	var runs atomic.Int32
	r.Register(&Job{
		Name: "nightly-learning",
		Cron: cron,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	now := time.Date(2026, 2, 15, 3, 0, 5, 0, time.UTC)
	r.Tick(context.Background(), now)
	r.Tick(context.Background(), now.Add(10*time.Second)) // same minute
	if runs.Load() != 1 {
		t.Fatalf("job fired %d times within one minute", runs.Load())
	}

	r.Tick(context.Background(), now.Add(time.Minute))
	if runs.Load() != 2 {
		t.Fatalf("job should fire again next minute, got %d", runs.Load())
	}
}

func TestTickSkipsNonMatchingMinute(t *testing.T) {
	r := NewRunner(time.Second, "", nil)
	cron, _ := ParseCron("0 3 * * *")

	var runs atomic.Int32
	r.Register(&Job{
		Name: "nightly-learning",
		Cron: cron,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	r.Tick(context.Background(), time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC))
	if runs.Load() != 0 {
		t.Fatal("job fired outside its window")
	}
	r.Tick(context.Background(), time.Date(2026, 2, 16, 3, 0, 0, 0, time.UTC))
	if runs.Load() != 1 {
		t.Fatal("job did not fire in its window")
	}
}

func TestTickHeldLockSkipsRun(t *testing.T) {
	path := t.TempDir() + "/runner.lock"
	other := NewFileLock(path)
	if ok, err := other.TryLock(); err != nil || !ok {
		t.Fatalf("setup lock: %v", err)
	}
	defer other.Unlock()

	r := NewRunner(time.Second, path, nil)
	cron, _ := ParseCron("* * * * *")
	var runs atomic.Int32
	r.Register(&Job{
		Name: "guarded",
		Cron: cron,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	r.Tick(context.Background(), time.Now())
	if runs.Load() != 0 {
		t.Fatal("tick must be skipped while another process holds the lock")
	}
}
