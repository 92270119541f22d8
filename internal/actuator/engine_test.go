package actuator

import (
	"errors"
	"testing"
	"time"
)

type switchEvent struct {
	pointID string
	on      bool
	source  string
}

// newTestEngine wires an engine over a memory driver and returns a channel
// carrying every switch event in order.
func newTestEngine(t *testing.T, queueSize int) (*Engine, *MemoryDriver, <-chan switchEvent) {
	t.Helper()

	registry := NewRegistry("ro", 1, 8)
	driver := NewMemoryDriver(8)
	engine := NewEngine(registry, driver, queueSize)

	events := make(chan switchEvent, 64)
	engine.AddObserver(func(pointID string, on bool, source string) {
		events <- switchEvent{pointID: pointID, on: on, source: source}
	})

	engine.Start()
	t.Cleanup(engine.Close)

	return engine, driver, events
}

func waitEvent(t *testing.T, events <-chan switchEvent, timeout time.Duration) switchEvent {
	t.Helper()

	select {
	case ev := <-events:
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for switch event")
		return switchEvent{}
	}
}

func assertNoEvent(t *testing.T, events <-chan switchEvent, within time.Duration) {
	t.Helper()

	select {
	case ev := <-events:
		t.Fatalf("unexpected switch event: %+v", ev)
	case <-time.After(within):
	}
}

func TestEngine_OnOff(t *testing.T) {
	engine, _, events := newTestEngine(t, 8)

	if err := engine.Submit(Command{PointID: "ro1", Kind: CommandOn, Source: "manual"}); err != nil {
		t.Fatalf("Submit(On) error = %v", err)
	}

	ev := waitEvent(t, events, time.Second)
	if ev.pointID != "ro1" || !ev.on || ev.source != "manual" {
		t.Errorf("event = %+v, want ro1 on manual", ev)
	}

	on, err := engine.IsOn("ro1")
	if err != nil {
		t.Fatalf("IsOn() error = %v", err)
	}
	if !on {
		t.Error("IsOn() = false after On command")
	}

	if err := engine.Submit(Command{PointID: "ro1", Kind: CommandOff, Source: "manual"}); err != nil {
		t.Fatalf("Submit(Off) error = %v", err)
	}

	ev = waitEvent(t, events, time.Second)
	if ev.pointID != "ro1" || ev.on {
		t.Errorf("event = %+v, want ro1 off", ev)
	}
}

func TestEngine_OnTimed_AutoOff(t *testing.T) {
	engine, _, events := newTestEngine(t, 8)

	err := engine.Submit(Command{
		PointID:  "ro2",
		Kind:     CommandOnTimed,
		Duration: 50 * time.Millisecond,
		Source:   "scheduled",
	})
	if err != nil {
		t.Fatalf("Submit(OnTimed) error = %v", err)
	}

	ev := waitEvent(t, events, time.Second)
	if !ev.on || ev.source != "scheduled" {
		t.Errorf("first event = %+v, want on scheduled", ev)
	}

	ev = waitEvent(t, events, time.Second)
	if ev.on || ev.source != "timed_off" {
		t.Errorf("second event = %+v, want off timed_off", ev)
	}

	on, err := engine.IsOn("ro2")
	if err != nil {
		t.Fatalf("IsOn() error = %v", err)
	}
	if on {
		t.Error("IsOn() = true after timed-off")
	}
}

func TestEngine_FreshOnBeatsPendingTimer(t *testing.T) {
	engine, _, events := newTestEngine(t, 8)

	err := engine.Submit(Command{
		PointID:  "ro3",
		Kind:     CommandOnTimed,
		Duration: 100 * time.Millisecond,
		Source:   "scheduled",
	})
	if err != nil {
		t.Fatalf("Submit(OnTimed) error = %v", err)
	}
	waitEvent(t, events, time.Second) // on

	// A fresh On before the dose timer expires must invalidate it
	time.Sleep(50 * time.Millisecond)
	if err := engine.Submit(Command{PointID: "ro3", Kind: CommandOn, Source: "manual"}); err != nil {
		t.Fatalf("Submit(On) error = %v", err)
	}
	waitEvent(t, events, time.Second) // on again

	// Well past the original expiry: no off may arrive
	assertNoEvent(t, events, 200*time.Millisecond)

	on, err := engine.IsOn("ro3")
	if err != nil {
		t.Fatalf("IsOn() error = %v", err)
	}
	if !on {
		t.Error("stale dose timer switched the point off")
	}
}

func TestEngine_OffCancelsPendingTimer(t *testing.T) {
	engine, _, events := newTestEngine(t, 8)

	err := engine.Submit(Command{
		PointID:  "ro4",
		Kind:     CommandOnTimed,
		Duration: 80 * time.Millisecond,
		Source:   "autopilot",
	})
	if err != nil {
		t.Fatalf("Submit(OnTimed) error = %v", err)
	}
	waitEvent(t, events, time.Second) // on

	if err := engine.Submit(Command{PointID: "ro4", Kind: CommandOff, Source: "manual"}); err != nil {
		t.Fatalf("Submit(Off) error = %v", err)
	}
	ev := waitEvent(t, events, time.Second)
	if ev.on || ev.source != "manual" {
		t.Errorf("event = %+v, want off manual", ev)
	}

	// The cancelled timer must not produce a second off
	assertNoEvent(t, events, 150*time.Millisecond)
}

func TestEngine_RetimedDoseExtends(t *testing.T) {
	engine, _, events := newTestEngine(t, 8)

	err := engine.Submit(Command{
		PointID:  "ro5",
		Kind:     CommandOnTimed,
		Duration: 60 * time.Millisecond,
		Source:   "scheduled",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitEvent(t, events, time.Second) // on

	// Re-dose with a longer duration before the first expires
	time.Sleep(30 * time.Millisecond)
	err = engine.Submit(Command{
		PointID:  "ro5",
		Kind:     CommandOnTimed,
		Duration: 150 * time.Millisecond,
		Source:   "scheduled",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitEvent(t, events, time.Second) // on again

	// First timer's expiry window: still on
	assertNoEvent(t, events, 80*time.Millisecond)

	ev := waitEvent(t, events, time.Second)
	if ev.on || ev.source != "timed_off" {
		t.Errorf("event = %+v, want off timed_off from second dose", ev)
	}
}

func TestEngine_Submit_UnknownPoint(t *testing.T) {
	engine, _, _ := newTestEngine(t, 8)

	err := engine.Submit(Command{PointID: "ro99", Kind: CommandOn})
	if !errors.Is(err, ErrUnknownPoint) {
		t.Errorf("Submit() error = %v, want ErrUnknownPoint", err)
	}
}

func TestEngine_Submit_InvalidDuration(t *testing.T) {
	engine, _, _ := newTestEngine(t, 8)

	err := engine.Submit(Command{PointID: "ro1", Kind: CommandOnTimed, Duration: 0})
	if !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("Submit() error = %v, want ErrInvalidDuration", err)
	}
}

func TestEngine_Submit_QueueFull(t *testing.T) {
	// Engine not started: nothing drains the queue
	registry := NewRegistry("ro", 1, 8)
	engine := NewEngine(registry, NewMemoryDriver(8), 1)

	if err := engine.Submit(Command{PointID: "ro1", Kind: CommandOn}); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	err := engine.Submit(Command{PointID: "ro2", Kind: CommandOn})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("second Submit() error = %v, want ErrQueueFull", err)
	}
}

func TestEngine_Submit_AfterClose(t *testing.T) {
	registry := NewRegistry("ro", 1, 8)
	engine := NewEngine(registry, NewMemoryDriver(8), 8)
	engine.Start()
	engine.Close()

	err := engine.Submit(Command{PointID: "ro1", Kind: CommandOn})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrClosed", err)
	}
}

func TestEngine_IsOn_UnknownPoint(t *testing.T) {
	engine, _, _ := newTestEngine(t, 8)

	if _, err := engine.IsOn("zz1"); !errors.Is(err, ErrUnknownPoint) {
		t.Errorf("IsOn() error = %v, want ErrUnknownPoint", err)
	}
}

func TestEngine_CommandOrdering(t *testing.T) {
	engine, driver, events := newTestEngine(t, 16)

	sequence := []Command{
		{PointID: "ro1", Kind: CommandOn, Source: "manual"},
		{PointID: "ro2", Kind: CommandOn, Source: "manual"},
		{PointID: "ro1", Kind: CommandOff, Source: "manual"},
	}
	for _, cmd := range sequence {
		if err := engine.Submit(cmd); err != nil {
			t.Fatalf("Submit(%+v) error = %v", cmd, err)
		}
	}

	for range sequence {
		waitEvent(t, events, time.Second)
	}

	writes := driver.Writes()
	if len(writes) != 3 {
		t.Fatalf("got %d writes, want 3", len(writes))
	}
	want := []MemoryWrite{{0, true}, {1, true}, {0, false}}
	for i, w := range want {
		if writes[i] != w {
			t.Errorf("write[%d] = %+v, want %+v", i, writes[i], w)
		}
	}
}
