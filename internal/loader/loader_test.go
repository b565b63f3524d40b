package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/babelroom/babelroom/internal/config"
)

func testConfig() config.LoaderConfig {
	return config.LoaderConfig{
		IdleUnloadSecs:   3600,
		IdleCheckSecs:    300,
		LoadTimeoutSecs:  5,
		RetryBackoffSecs: 30,
	}
}

func TestEnsureLoadsOnce(t *testing.T) {
	l := New(testConfig(), nil)

	var loads atomic.Int32
	l.Register(KindASR, func(ctx context.Context) error {
		loads.Add(1)
		return nil
	}, nil)

	if err := l.Ensure(context.Background(), KindASR); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := l.Ensure(context.Background(), KindASR); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	if got := loads.Load(); got != 1 {
		t.Errorf("load called %d times, want 1", got)
	}
	if l.StateOf(KindASR) != StateReady {
		t.Errorf("state = %v, want ready", l.StateOf(KindASR))
	}
}

func TestEnsureCollapsesConcurrentLoads(t *testing.T) {
	l := New(testConfig(), nil)

	var loads atomic.Int32
	release := make(chan struct{})
	l.Register(KindTTS, func(ctx context.Context) error {
		loads.Add(1)
		<-release
		return nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Ensure(context.Background(), KindTTS)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := loads.Load(); got != 1 {
		t.Errorf("load called %d times, want 1", got)
	}
}

func TestEnsureBacksOffAfterFailure(t *testing.T) {
	l := New(testConfig(), nil)
	base := time.Now()
	l.now = func() time.Time { return base }

	var loads atomic.Int32
	l.Register(KindMT, func(ctx context.Context) error {
		loads.Add(1)
		return errors.New("connection refused")
	}, nil)

	if err := l.Ensure(context.Background(), KindMT); err == nil {
		t.Fatal("expected load error")
	}

	// Inside the backoff window the loader refuses without retrying.
	err := l.Ensure(context.Background(), KindMT)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("load retried inside backoff window (%d calls)", got)
	}

	// After the window the load is attempted again.
	base = base.Add(time.Minute)
	l.Ensure(context.Background(), KindMT)
	if got := loads.Load(); got != 2 {
		t.Errorf("load called %d times after backoff, want 2", got)
	}
}

func TestUnknownKind(t *testing.T) {
	l := New(testConfig(), nil)
	if err := l.Ensure(context.Background(), Kind("llm")); err == nil {
		t.Error("expected error for unregistered kind")
	}
}

func TestIdleUnload(t *testing.T) {
	l := New(testConfig(), nil)
	base := time.Now()
	l.now = func() time.Time { return base }

	var unloaded atomic.Bool
	l.Register(KindASR, func(ctx context.Context) error { return nil }, func(ctx context.Context) error {
		unloaded.Store(true)
		return nil
	})

	if err := l.Ensure(context.Background(), KindASR); err != nil {
		t.Fatal(err)
	}

	// Not idle long enough: nothing happens.
	l.unloadIdle(context.Background())
	if l.StateOf(KindASR) != StateReady {
		t.Fatal("unloaded too early")
	}

	base = base.Add(2 * time.Hour)
	l.unloadIdle(context.Background())

	if l.StateOf(KindASR) != StateUnloaded {
		t.Error("model still ready after idle period")
	}
	if !unloaded.Load() {
		t.Error("unload hook not called")
	}
}

func TestEnsureAfterUnloadReloads(t *testing.T) {
	l := New(testConfig(), nil)

	var loads atomic.Int32
	l.Register(KindASR, func(ctx context.Context) error {
		loads.Add(1)
		return nil
	}, nil)

	l.Ensure(context.Background(), KindASR)
	l.Unload(context.Background(), KindASR)
	l.Ensure(context.Background(), KindASR)

	if got := loads.Load(); got != 2 {
		t.Errorf("load called %d times, want 2", got)
	}
}
