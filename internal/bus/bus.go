// Package bus provides a simple in-process pub/sub event bus with topic
// prefix matching. Collaborators outside the core (UI, agent runtime)
// subscribe to observe store and scheduler activity.
package bus

import (
	"strings"
	"sync"
	"time"
)

const defaultBufferSize = 100

// Event is a message published on the bus.
type Event struct {
	Topic   string
	Payload any
}

// Topics published by the core.
const (
	TopicMessageAppended   = "message.appended"
	TopicFactObserved      = "fact.observed"
	TopicToolCallCompleted = "tool.completed"
	TopicTaskFired         = "task.fired"
	TopicTaskCompleted     = "task.completed"
	TopicTaskFailed        = "task.failed"
	TopicStoreBusyRetry    = "store.busy_retry"
)

// MessageAppendedEvent is published after a conversation message commits.
type MessageAppendedEvent struct {
	SessionID string
	MessageID string
	Role      string
}

// FactObservedEvent is published when an observation is applied to a fact.
type FactObservedEvent struct {
	Key        string
	Confidence float64
	Applied    bool
}

// ToolCallCompletedEvent is published when a tool call's outcome is
// recorded in the audit log.
type ToolCallCompletedEvent struct {
	CallID  string
	OK      bool
	Elapsed time.Duration
}

// StoreBusyRetryEvent is published once per busy retry performed by the
// store, before the backoff sleep.
type StoreBusyRetryEvent struct {
	Attempt int
}

// TaskFiredEvent is published when a scheduler loop wins a claim.
type TaskFiredEvent struct {
	TaskID  string
	Title   string
	NextRun int64 // unix seconds, zero when the task was retired
}

// TaskOutcomeEvent is published after a task body reports its outcome.
type TaskOutcomeEvent struct {
	TaskID string
	Title  string
	OK     bool
	Detail string
}

// Subscription represents an active subscription.
type Subscription struct {
	id     int
	prefix string
	ch     chan Event
}

// Ch returns the channel to receive events on.
func (s *Subscription) Ch() <-chan Event {
	return s.ch
}

// Bus is an in-process pub/sub message bus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*Subscription),
	}
}

// Subscribe creates a subscription for events matching the given topic prefix.
// An empty prefix matches all topics. The returned channel is buffered; slow
// consumers miss events rather than blocking publishers.
func (b *Bus) Subscribe(topicPrefix string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		prefix: topicPrefix,
		ch:     make(chan Event, defaultBufferSize),
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
}

// Publish sends an event to all matching subscribers. Delivery is
// non-blocking: if a subscriber's buffer is full, the event is dropped.
func (b *Bus) Publish(topic string, payload any) {
	if b == nil {
		return
	}
	event := Event{
		Topic:   topic,
		Payload: payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.prefix == "" || strings.HasPrefix(topic, sub.prefix) {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
