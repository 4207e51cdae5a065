package gateway

import "testing"

func TestFeed_SubscribeAndUnsubscribe(t *testing.T) {
	var feed Feed[int]
	var first, second []int

	sub1 := feed.Subscribe(func(v int) { first = append(first, v) })
	sub2 := feed.Subscribe(func(v int) { second = append(second, v) })

	feed.Send(1)
	sub1.Unsubscribe()
	feed.Send(2)
	sub2.Unsubscribe()
	sub2.Unsubscribe()
	feed.Send(3)

	if len(first) != 1 || first[0] != 1 {
		t.Errorf("expected first subscriber to see [1], got %v", first)
	}
	if len(second) != 2 || second[1] != 2 {
		t.Errorf("expected second subscriber to see [1 2], got %v", second)
	}
}

func TestFeed_HandlerMayUnsubscribe(t *testing.T) {
	var feed Feed[string]
	calls := 0

	var sub *Subscription
	sub = feed.Subscribe(func(string) {
		calls++
		sub.Unsubscribe()
	})

	feed.Send("a")
	feed.Send("b")

	if calls != 1 {
		t.Errorf("expected handler to run once, ran %d times", calls)
	}
}

func TestSubscription_NilIsSafe(t *testing.T) {
	var sub *Subscription
	sub.Unsubscribe()
}
