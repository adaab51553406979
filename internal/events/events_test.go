package events

import (
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventFileComplete)

	testEvent := &FileCompleteEvent{
		BaseEvent:  BaseEvent{EventType: EventFileComplete, Time: time.Now()},
		Uploader:   "media",
		Credential: "sa1.json",
		Stage:      1,
		Path:       "/data/movie.mkv",
		Size:       1 << 30,
	}

	bus.Publish(testEvent)

	select {
	case received := <-ch:
		fc, ok := received.(*FileCompleteEvent)
		if !ok {
			t.Fatal("expected FileCompleteEvent")
		}
		if fc.Uploader != "media" {
			t.Errorf("expected uploader 'media', got %q", fc.Uploader)
		}
		if fc.Size != 1<<30 {
			t.Errorf("expected size %d, got %d", int64(1<<30), fc.Size)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventRateLimit)
	ch2 := bus.Subscribe(EventRateLimit)

	bus.Publish(&RateLimitEvent{
		BaseEvent:  BaseEvent{EventType: EventRateLimit, Time: time.Now()},
		Uploader:   "media",
		Credential: "sa1.json",
		Kind:       "userRateLimitExceeded",
		Delay:      24 * time.Hour,
	})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			rl, ok := received.(*RateLimitEvent)
			if !ok {
				t.Fatalf("subscriber %d: expected RateLimitEvent", i)
			}
			if rl.Kind != "userRateLimitExceeded" {
				t.Errorf("subscriber %d: unexpected kind %q", i, rl.Kind)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(EventFatal)

	ev := &FatalEvent{BaseEvent: BaseEvent{EventType: EventFatal, Time: time.Now()}}
	bus.Publish(ev)
	bus.Publish(ev) // channel now full, should be dropped

	if got := bus.DroppedEventCount(); got != 1 {
		t.Errorf("expected 1 dropped event, got %d", got)
	}

	<-ch // drain the one that was delivered
}

func TestEventBus_SubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	all := bus.SubscribeAll()
	bus.Publish(&MaxTransferEvent{BaseEvent: BaseEvent{EventType: EventMaxTransferReached, Time: time.Now()}})
	bus.Publish(&StageEndEvent{BaseEvent: BaseEvent{EventType: EventStageEnd, Time: time.Now()}, Success: true})

	for i := 0; i < 2; i++ {
		select {
		case <-all:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestEventBus_CloseClosesChannels(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventSessionEnd)
	bus.Close()

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed")
	}
}
