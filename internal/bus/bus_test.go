package bus

import (
	"sync"
	"testing"
)

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	defer b.Close()

	var got []Event
	b.Subscribe(EventProviderSuccess, func(e Event) {
		got = append(got, e)
	})

	b.Publish(Event{Type: EventProviderSuccess, Provider: "gemini"})
	b.Publish(Event{Type: EventProviderFailure, Provider: "groq"})

	if len(got) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(got))
	}
	if got[0].Provider != "gemini" {
		t.Errorf("unexpected provider %q", got[0].Provider)
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Error("expected ID and Timestamp to be filled in")
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := New()
	defer b.Close()

	var count int
	b.Subscribe("", func(e Event) { count++ })

	b.Publish(Event{Type: EventProviderSuccess})
	b.Publish(Event{Type: EventFallbackUsed})
	b.Publish(Event{Type: EventSearchTier})

	if count != 3 {
		t.Errorf("wildcard should see every event, got %d of 3", count)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	var count int
	id := b.Subscribe(EventProviderSuccess, func(e Event) { count++ })

	b.Publish(Event{Type: EventProviderSuccess})
	if err := b.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	b.Publish(Event{Type: EventProviderSuccess})

	if count != 1 {
		t.Errorf("expected 1 event before unsubscribe, got %d", count)
	}

	if err := b.Unsubscribe(id); err == nil {
		t.Error("expected error for unknown subscription")
	}
}

func TestHistoryBounded(t *testing.T) {
	b := NewWithHistory(3)
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: EventProviderAttempt})
	}

	history := b.History()
	if len(history) != 3 {
		t.Errorf("expected history capped at 3, got %d", len(history))
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var count int
	b.Subscribe(EventProviderAttempt, func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.Publish(Event{Type: EventProviderAttempt})
			}
		}()
	}
	wg.Wait()

	if count != 200 {
		t.Errorf("expected 200 deliveries, got %d", count)
	}
}

func TestClosedBusDropsEvents(t *testing.T) {
	b := New()

	var count int
	b.Subscribe(EventProviderSuccess, func(e Event) { count++ })
	b.Close()
	b.Publish(Event{Type: EventProviderSuccess})

	if count != 0 {
		t.Errorf("closed bus must not deliver, got %d", count)
	}
}
