package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fridayhq/friday/internal/bus"
)

func TestToolCallLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	callID, err := store.BeginToolCall(ctx, "s1", "web_search", `{"query":"weather"}`)
	if err != nil {
		t.Fatalf("BeginToolCall: %v", err)
	}

	// Before completion the outcome is unknown, not failed.
	call, err := store.GetToolCall(ctx, callID)
	if err != nil {
		t.Fatalf("GetToolCall: %v", err)
	}
	if call.Outcome != OutcomeUnknown {
		t.Errorf("outcome before complete = %v, want unknown", call.Outcome)
	}
	if call.Result != "" || call.ElapsedMS != 0 {
		t.Errorf("unexpected pre-complete fields: %+v", call)
	}

	if err := store.CompleteToolCall(ctx, callID, true, `{"hits":3}`, 420*time.Millisecond); err != nil {
		t.Fatalf("CompleteToolCall: %v", err)
	}
	call, err = store.GetToolCall(ctx, callID)
	if err != nil {
		t.Fatalf("GetToolCall after complete: %v", err)
	}
	if call.Outcome != OutcomeOK || call.Result != `{"hits":3}` || call.ElapsedMS != 420 {
		t.Errorf("completed call = %+v", call)
	}
}

func TestCompleteToolCallPublishesEvent(t *testing.T) {
	b := bus.New()
	store := openTestStoreOnBus(t, b)
	ctx := context.Background()
	sub := b.Subscribe(bus.TopicToolCallCompleted)
	defer b.Unsubscribe(sub)

	callID, err := store.BeginToolCall(ctx, "s1", "shell", "{}")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CompleteToolCall(ctx, callID, false, "exit 1", 250*time.Millisecond); err != nil {
		t.Fatalf("CompleteToolCall: %v", err)
	}

	select {
	case ev := <-sub.Ch():
		payload, ok := ev.Payload.(bus.ToolCallCompletedEvent)
		if !ok {
			t.Fatalf("unexpected payload %T", ev.Payload)
		}
		if payload.CallID != callID || payload.OK || payload.Elapsed != 250*time.Millisecond {
			t.Errorf("event = %+v", payload)
		}
	default:
		t.Fatal("no completion event published")
	}

	// A failed update publishes nothing.
	if err := store.CompleteToolCall(ctx, "call_missing", true, "", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CompleteToolCall(missing) = %v", err)
	}
	select {
	case ev := <-sub.Ch():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestToolCallExplicitFailureDistinctFromUnknown(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	crashed, err := store.BeginToolCall(ctx, "s1", "shell", "{}")
	if err != nil {
		t.Fatal(err)
	}
	failed, err := store.BeginToolCall(ctx, "s1", "shell", "{}")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CompleteToolCall(ctx, failed, false, "exit status 1", time.Second); err != nil {
		t.Fatalf("CompleteToolCall: %v", err)
	}

	c1, err := store.GetToolCall(ctx, crashed)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := store.GetToolCall(ctx, failed)
	if err != nil {
		t.Fatal(err)
	}
	if c1.Outcome != OutcomeUnknown {
		t.Errorf("crashed call outcome = %v, want unknown", c1.Outcome)
	}
	if c2.Outcome != OutcomeFailed {
		t.Errorf("failed call outcome = %v, want failed", c2.Outcome)
	}
	if c1.Outcome == c2.Outcome {
		t.Error("unknown and failed outcomes are indistinguishable")
	}
}

func TestOutcomeString(t *testing.T) {
	cases := map[Outcome]string{
		OutcomeUnknown: "unknown",
		OutcomeOK:      "ok",
		OutcomeFailed:  "failed",
		Outcome(42):    "unknown",
	}
	for outcome, want := range cases {
		if got := outcome.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", outcome, got, want)
		}
	}
}

func TestCompleteToolCallNotFound(t *testing.T) {
	store := openTestStore(t)
	err := store.CompleteToolCall(context.Background(), "call_missing", true, "", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteToolCall(missing) = %v, want ErrNotFound", err)
	}
	if _, err := store.GetToolCall(context.Background(), "call_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetToolCall(missing) = %v, want ErrNotFound", err)
	}
}

func TestListToolCallsOrderAndIsolation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := store.BeginToolCall(ctx, "s1", "calc", "{}")
		if err != nil {
			t.Fatalf("BeginToolCall: %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := store.BeginToolCall(ctx, "other", "calc", "{}"); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListToolCalls(ctx, "s1")
	if err != nil {
		t.Fatalf("ListToolCalls: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d calls, want 5", len(got))
	}
	for i, c := range got {
		if c.CallID != ids[i] {
			t.Fatalf("position %d = %s, want %s (insertion order broken)", i, c.CallID, ids[i])
		}
	}
}

func TestBeginToolCallValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if _, err := store.BeginToolCall(ctx, "", "calc", "{}"); err == nil {
		t.Error("empty session id accepted")
	}
	if _, err := store.BeginToolCall(ctx, "s1", "", "{}"); err == nil {
		t.Error("empty tool name accepted")
	}
}
