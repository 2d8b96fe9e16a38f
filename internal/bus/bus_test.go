package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	b.Publish(Event{Kind: "conversation.reordered", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "conversation.reordered" {
			t.Errorf("got kind %q, want conversation.reordered", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(Event{Kind: "conversation.updated"})
	b.Publish(Event{Kind: "message.upserted"})

	select {
	case evt := <-ch:
		if evt.Kind != "message.upserted" {
			t.Errorf("got kind %q, want message.upserted", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the conversation event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()

	b.Publish(Event{Kind: "message.upserted"})

	select {
	case evt := <-ch:
		t.Errorf("unexpected event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("message.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		// Second publish must not block even though nobody drains.
		b.Publish(Event{Kind: "message.upserted"})
		b.Publish(Event{Kind: "message.upserted"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
}
