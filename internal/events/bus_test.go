package events

import "testing"

func TestPublishInSubscriptionOrder(t *testing.T) {
	b := NewBus()
	var order []int
	b.Subscribe(KindError, func(Event) { order = append(order, 1) })
	b.Subscribe(KindError, func(Event) { order = append(order, 2) })
	b.Subscribe(KindError, func(Event) { order = append(order, 3) })

	b.Publish(Event{Type: KindError, Err: &ErrorEvent{Code: 200}})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("delivery order %v", order)
	}
}

func TestKindsAreIndependent(t *testing.T) {
	b := NewBus()
	var got int
	b.Subscribe(KindFill, func(Event) { got++ })

	b.Publish(Event{Type: KindOrderStatus})
	b.Publish(Event{Type: KindFill})
	b.Publish(Event{Type: KindTicker})

	if got != 1 {
		t.Fatalf("fill handler ran %d times, want 1", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	var a, c int
	subA := b.Subscribe(KindPosition, func(Event) { a++ })
	b.Subscribe(KindPosition, func(Event) { c++ })

	b.Publish(Event{Type: KindPosition})
	subA.Unsubscribe()
	subA.Unsubscribe() // second call is a no-op
	b.Publish(Event{Type: KindPosition})

	if a != 1 {
		t.Fatalf("unsubscribed handler still ran: %d", a)
	}
	if c != 2 {
		t.Fatalf("remaining handler ran %d times, want 2", c)
	}
}

func TestSubscribeDuringPublish(t *testing.T) {
	b := NewBus()
	var late int
	b.Subscribe(KindConnectivity, func(Event) {
		b.Subscribe(KindConnectivity, func(Event) { late++ })
	})

	b.Publish(Event{Type: KindConnectivity, Connected: &ConnectivityEvent{Up: true}})
	if late != 0 {
		t.Fatalf("handler added mid-publish must not see the current event")
	}
	b.Publish(Event{Type: KindConnectivity, Connected: &ConnectivityEvent{Up: false}})
	if late != 1 {
		t.Fatalf("late handler missed the next event: %d", late)
	}
}
