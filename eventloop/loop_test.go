package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsInPostOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := New(nil)
	go l.Run(ctx)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("ran %d callbacks, want 50", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("callback %d ran at position %d", v, i)
		}
	}
}

func TestLoopSurvivesPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := New(nil)
	go l.Run(ctx)

	l.Post(func() { panic("boom") })
	ran := false
	if err := l.Do(ctx, func() { ran = true }); err != nil || !ran {
		t.Fatalf("Do after panic: err=%v ran=%v", err, ran)
	}
}

func TestLoopAfterAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := New(nil)
	go l.Run(ctx)

	fired := make(chan struct{})
	l.After(5*time.Millisecond, func() { close(fired) })
	stopped := l.After(5*time.Millisecond, func() { t.Errorf("stopped timer fired") })
	if !stopped.Stop() {
		t.Fatalf("Stop on pending timer = false")
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire")
	}
}

func TestDoAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(nil)
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	cancel()
	<-errc
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Do on stopped loop = %v, want ErrStopped", err)
	}
}
