package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(nil)
	ch, unsubscribe := bus.Subscribe(TopicTTSQueued)
	defer unsubscribe()

	bus.Publish(TopicTTSQueued, "hello")
	bus.Publish(TopicTTSPlay, "other topic")

	select {
	case got := <-ch:
		if got != "hello" {
			t.Fatalf("got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected message %v", got)
	default:
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(nil)
	_, unsubscribe := bus.Subscribe(TopicTTSStatus)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBufferSize*3; i++ {
			bus.Publish(TopicTTSStatus, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeAndClose(t *testing.T) {
	bus := NewBus(nil)
	ch, unsubscribe := bus.Subscribe(TopicTTSDebug)
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}

	ch2, unsubscribe2 := bus.Subscribe(TopicTTSDebug)
	bus.Close()
	if _, ok := <-ch2; ok {
		t.Fatal("channel should be closed after bus close")
	}
	unsubscribe2()
	bus.Publish(TopicTTSDebug, "ignored")
}
