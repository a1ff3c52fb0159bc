package bus

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicTaskFired)
	defer b.Unsubscribe(sub)

	b.Publish(TopicTaskFired, TaskFiredEvent{TaskID: "t1", Title: "standup"})

	select {
	case event := <-sub.Ch():
		if event.Topic != TopicTaskFired {
			t.Fatalf("topic = %q, want %q", event.Topic, TopicTaskFired)
		}
		fired, ok := event.Payload.(TaskFiredEvent)
		if !ok || fired.TaskID != "t1" {
			t.Fatalf("payload = %#v, want TaskFiredEvent for t1", event.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBusPrefixMatching(t *testing.T) {
	b := New()

	taskSub := b.Subscribe("task.")
	defer b.Unsubscribe(taskSub)
	allSub := b.Subscribe("")
	defer b.Unsubscribe(allSub)

	b.Publish(TopicTaskCompleted, TaskOutcomeEvent{TaskID: "t1", OK: true})
	b.Publish(TopicMessageAppended, MessageAppendedEvent{SessionID: "s1"})

	select {
	case event := <-taskSub.Ch():
		if event.Topic != TopicTaskCompleted {
			t.Fatalf("topic = %q, want %q", event.Topic, TopicTaskCompleted)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for task event")
	}

	select {
	case event := <-taskSub.Ch():
		t.Fatalf("unexpected event on task subscription: %v", event)
	case <-time.After(50 * time.Millisecond):
	}

	for i := 0; i < 2; i++ {
		select {
		case <-allSub.Ch():
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event on catch-all subscription")
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	b.Unsubscribe(sub)

	if _, open := <-sub.Ch(); open {
		t.Fatal("channel still open after Unsubscribe")
	}
	if n := b.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}
}

func TestBusNilSafePublish(t *testing.T) {
	var b *Bus
	b.Publish(TopicTaskFired, nil) // must not panic
}
