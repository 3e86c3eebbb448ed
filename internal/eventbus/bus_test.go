package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestPublishFansOutAndDropsWhenFull(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(1)
	defer unsubA()
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: CycleCompleted})
	b.Publish(Event{Type: CycleFailed}) // dropped for a

	if got := (<-a).Type; got != CycleCompleted {
		t.Fatalf("a got %q", got)
	}
	select {
	case e := <-a:
		t.Fatalf("a should have dropped the second event, got %q", e.Type)
	default:
	}
	if got := (<-c).Type; got != CycleCompleted {
		t.Fatalf("c got %q", got)
	}
	e := <-c
	if e.Type != CycleFailed || e.Time.IsZero() {
		t.Fatalf("c second event = %+v", e)
	}
}

func TestUnsubscribeThenPublish(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	b.Publish(Event{Type: NotifyDelivered})
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
}

func TestRecorderKeepsNewest(t *testing.T) {
	r := NewRecorder(3)
	for _, typ := range []string{"1", "2", "3", "4", "5"} {
		r.Add(Event{Type: typ})
	}
	got := r.Recent()
	if len(got) != 3 || got[0].Type != "3" || got[2].Type != "5" {
		t.Fatalf("recent = %+v", got)
	}
}

func TestRecorderRun(t *testing.T) {
	b := New()
	r := NewRecorder(10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, b)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(r.Recent()) == 0 && time.Now().Before(deadline) {
		b.Publish(Event{Type: NotifySkipped})
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if len(r.Recent()) == 0 {
		t.Fatalf("recorder saw no events")
	}
}
