package event

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/nchat/internal/logging"
)

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	id := bus.Subscribe(TypeProtocolStarted, func(e Event) {
		received = e
	})
	if id == "" {
		t.Fatal("Subscribe should return a non-empty ID")
	}

	bus.Publish(NewProtocolStartedEvent("telegram"))

	started, ok := received.(ProtocolStartedEvent)
	if !ok {
		t.Fatalf("received %T, want ProtocolStartedEvent", received)
	}
	if started.Protocol != "telegram" {
		t.Errorf("Protocol = %q, want telegram", started.Protocol)
	}
	if started.Timestamp().IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe(TypeConfigSaved, func(e Event) {
		t.Error("Handler should not be called for non-matching event type")
	})

	bus.Publish(NewProtocolStoppedEvent("telegram", nil))
}

func TestBus_OrderSpecificThenWildcard(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "wildcard") })
	bus.Subscribe(TypeSessionShutdown, func(e Event) { order = append(order, "first") })
	bus.Subscribe(TypeSessionShutdown, func(e Event) { order = append(order, "second") })

	bus.Publish(NewSessionShutdownEvent("user"))

	want := []string{"first", "second", "wildcard"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := make(map[string]int)
	id1 := bus.Subscribe(TypeConfigChanged, func(e Event) { calls["one"]++ })
	bus.Subscribe(TypeConfigChanged, func(e Event) { calls["two"]++ })

	if !bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return true when subscription exists")
	}
	if bus.Unsubscribe(id1) {
		t.Error("second Unsubscribe should return false")
	}
	if bus.Unsubscribe("non-existent-id") {
		t.Error("Unsubscribe should return false for non-existent ID")
	}

	bus.Publish(NewConfigChangedEvent("/tmp/main.conf"))

	if calls["one"] != 0 || calls["two"] != 1 {
		t.Errorf("calls = %v, want only the remaining handler", calls)
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount = %d, want 1", bus.SubscriptionCount())
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe("event.one", func(e Event) {})
	bus.Subscribe("event.two", func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	if bus.SubscriptionCount() != 3 {
		t.Errorf("SubscriptionCount = %d before clear, want 3", bus.SubscriptionCount())
	}
	bus.Clear()
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount = %d after clear, want 0", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewWithWriter(&buf, logging.LevelDebug))

	calls := 0
	bus.Subscribe("test.event", func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe("test.event", func(e Event) {
		calls++
	})

	bus.Publish(newBaseEvent("test.event"))

	if calls != 2 {
		t.Errorf("expected both handlers to be called despite panic, got %d calls", calls)
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("panic was not logged: %s", buf.String())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	calls := 0
	bus.Subscribe("test.event", func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(newBaseEvent("test.event"))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe("test.event", func(e Event) {})
			bus.Publish(newBaseEvent("test.event"))
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("expected 0 subscriptions after concurrent add/remove, got %d", bus.SubscriptionCount())
	}
}

func TestLogEvents(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(nil)
	LogEvents(bus, logging.NewWithWriter(&buf, logging.LevelDebug))

	bus.Publish(NewProtocolStartedEvent("telegram"))
	bus.Publish(NewProtocolFailedEvent("telegram", errors.New("no token")))
	bus.Publish(NewProtocolStoppedEvent("telegram", nil))
	bus.Publish(NewConfigSavedEvent("/x/main.conf", nil))
	bus.Publish(NewConfigChangedEvent("/x/main.conf"))
	bus.Publish(NewSessionShutdownEvent("signal"))
	bus.Publish(newBaseEvent("custom.thing"))

	out := buf.String()
	for _, want := range []string{
		"protocol started",
		"no token",
		"protocol stopped",
		"config saved",
		"overwritten on exit",
		"session shutdown",
		"custom.thing",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
