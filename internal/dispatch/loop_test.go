package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestCallRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		if err := l.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}
	var n int
	if err := l.Call(func() { n = len(got) }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 posted tasks to run before Call, got %d", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
}

func TestCallSerializesConcurrentCallers(t *testing.T) {
	l, _ := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Call(func() { counter++ })
		}()
	}
	wg.Wait()

	var final int
	_ = l.Call(func() { final = counter })
	if final != 50 {
		t.Fatalf("counter = %d, want 50", final)
	}
}

func TestPanicDoesNotKillLoop(t *testing.T) {
	l, _ := startLoop(t)

	_ = l.Call(func() { panic("boom") })

	ran := false
	if err := l.Call(func() { ran = true }); err != nil {
		t.Fatalf("Call() after panic error = %v", err)
	}
	if !ran {
		t.Fatalf("expected loop to keep running after a panic")
	}
}

func TestSubmitAfterStop(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()
	<-l.Done()

	if err := l.Post(func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Post() after stop error = %v, want ErrStopped", err)
	}
	if err := l.Call(func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Call() after stop error = %v, want ErrStopped", err)
	}
}
