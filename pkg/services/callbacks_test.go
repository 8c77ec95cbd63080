package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
)

// --- Callbacks ---

func TestRegisterReplaysCurrent(t *testing.T) {
	var c Callbacks[int]

	var got []int
	c.Register(func(v int) { got = append(got, v) }, 42)

	if len(got) != 1 || got[0] != 42 {
		t.Errorf("got %v, want [42] (immediate replay)", got)
	}
}

func TestNotifyInsertionOrder(t *testing.T) {
	var c Callbacks[string]

	var order []string
	c.Register(func(string) { order = append(order, "a") }, "")
	c.Register(func(string) { order = append(order, "b") }, "")
	c.Register(func(string) { order = append(order, "c") }, "")
	order = nil

	c.Notify("x")
	want := []string{"a", "b", "c"}
	for i, v := range want {
		if i >= len(order) || order[i] != v {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRegisterDuringNotifyDefers(t *testing.T) {
	var c Callbacks[int]

	innerCalls := 0
	c.Register(func(v int) {
		if v == 1 {
			c.Register(func(v int) {
				if v != 0 { // skip the replay call
					innerCalls++
				}
			}, 0)
		}
	}, 0)

	c.Notify(1)
	if innerCalls != 0 {
		t.Errorf("inner callback ran %d times during its own registration cycle, want 0", innerCalls)
	}

	c.Notify(2)
	if innerCalls != 1 {
		t.Errorf("inner callback ran %d times on the next cycle, want 1", innerCalls)
	}
}

func TestUnregister(t *testing.T) {
	var c Callbacks[int]

	calls := 0
	id := c.Register(func(int) { calls++ }, 0)
	calls = 0

	if !c.Unregister(id) {
		t.Error("Unregister(known id) = false, want true")
	}
	if c.Unregister(id) {
		t.Error("Unregister(absent id) = true, want false")
	}

	c.Notify(1)
	if calls != 0 {
		t.Errorf("unregistered callback ran %d times", calls)
	}
}

func TestUnregisterDuringNotifyVisitsEveryCallbackOnce(t *testing.T) {
	var c Callbacks[int]

	counts := make(map[string]int)
	var firstID int
	firstID = c.Register(func(v int) {
		if v == 0 {
			return // replay
		}
		counts["a"]++
		c.Unregister(firstID)
	}, 0)
	c.Register(func(v int) {
		if v != 0 {
			counts["b"]++
		}
	}, 0)
	c.Register(func(v int) {
		if v != 0 {
			counts["c"]++
		}
	}, 0)

	c.Notify(1)
	for _, name := range []string{"a", "b", "c"} {
		if counts[name] != 1 {
			t.Errorf("callback %s ran %d times, want 1", name, counts[name])
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d after self-unregister, want 2", c.Len())
	}

	c.Notify(2)
	if counts["a"] != 1 {
		t.Errorf("unregistered callback ran again, count %d", counts["a"])
	}
	if counts["b"] != 2 || counts["c"] != 2 {
		t.Errorf("surviving callbacks ran b=%d c=%d on the next cycle, want 2 each", counts["b"], counts["c"])
	}
}

func TestUnregisterOtherDuringNotifySkipsIt(t *testing.T) {
	var c Callbacks[int]

	var lastID int
	calls := 0
	c.Register(func(v int) {
		if v == 1 {
			c.Unregister(lastID)
		}
	}, 0)
	lastID = c.Register(func(v int) {
		if v != 0 {
			calls++
		}
	}, 0)

	c.Notify(1)
	if calls != 0 {
		t.Errorf("callback removed earlier in the cycle ran %d times, want 0", calls)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestUnregisterDeferred(t *testing.T) {
	var c Callbacks[int]

	var deferredID int
	c.Register(func(v int) {
		if v == 1 {
			deferredID = c.Register(func(int) {}, 0)
		}
	}, 0)

	c.Notify(1)
	// The deferred callback was promoted after the cycle; it must be
	// removable.
	if !c.Unregister(deferredID) {
		t.Error("Unregister(deferred id) = false, want true")
	}
}

// --- Debouncer ---

func TestDebouncerCoalesces(t *testing.T) {
	loop := eventloop.New(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	d := NewDebouncerWithDelay(loop, 20*time.Millisecond)

	fired := make(chan struct{}, 8)
	// Trigger must happen on the loop, as in real use.
	for i := 0; i < 5; i++ {
		loop.Post(func() { d.Trigger(func() { fired <- struct{}{} }) })
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("debounced function never fired")
	}

	select {
	case <-fired:
		t.Fatal("burst of triggers fired more than once")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncerStop(t *testing.T) {
	loop := eventloop.New(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	fired := make(chan struct{}, 1)
	loop.Post(func() {
		d := NewDebouncerWithDelay(loop, 10*time.Millisecond)
		d.Trigger(func() { fired <- struct{}{} })
		d.Stop()
	})

	select {
	case <-fired:
		t.Fatal("stopped debouncer fired")
	case <-time.After(50 * time.Millisecond):
	}
}
