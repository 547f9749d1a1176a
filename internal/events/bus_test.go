package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventSessionTopUp)

	bus.Publish(EventSessionTopUp, Payload{"queued": 20})

	select {
	case payload := <-sub:
		if payload["queued"] != 20 {
			t.Fatalf("unexpected payload: %v", payload)
		}
	default:
		t.Fatal("expected a delivered event")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventNowPlaying)

	// Overfill well past any buffer; publish must never block.
	for i := 0; i < 1000; i++ {
		bus.Publish(EventNowPlaying, Payload{"n": i})
	}

	drained := 0
	for {
		select {
		case <-sub:
			drained++
			continue
		default:
		}
		break
	}
	if drained == 0 {
		t.Fatal("expected at least one delivered event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventQueueLow)
	bus.Unsubscribe(EventQueueLow, sub)

	bus.Publish(EventQueueLow, Payload{})

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatal("unsubscribed channel should not receive events")
		}
	default:
	}
}
