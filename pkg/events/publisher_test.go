package events

import (
	"context"
	"errors"
	"testing"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.PublishTraffic(context.Background(), NewTrafficEvent(DirectionOutbound, "greet", `{"data":{},"topic":"greet"}`, 0))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *TrafficEvent

	pub := NewCallbackPublisher(func(_ context.Context, event *TrafficEvent) error {
		captured = event
		return nil
	})

	event := NewTrafficEvent(DirectionInbound, "nope", "", 3)
	err := pub.PublishTraffic(context.Background(), event)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if captured == nil {
		t.Fatal("expected callback to be called")
	}
	if captured.Topic != "nope" {
		t.Errorf("expected topic nope, got %s", captured.Topic)
	}
	if captured.ErrorCode != 3 {
		t.Errorf("expected error code 3, got %d", captured.ErrorCode)
	}
}

func TestNewTrafficEvent(t *testing.T) {
	a := NewTrafficEvent(DirectionOutbound, "t", "{}", 0)
	b := NewTrafficEvent(DirectionOutbound, "t", "{}", 0)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique non-empty IDs, got %q and %q", a.ID, b.ID)
	}
	if a.Timestamp == "" {
		t.Error("expected timestamp to be set")
	}
	if a.Direction != DirectionOutbound {
		t.Errorf("expected direction outbound, got %s", a.Direction)
	}
}

func TestMultiPublisher_CallsAllAndJoinsErrors(t *testing.T) {
	var calls int
	failing := NewCallbackPublisher(func(context.Context, *TrafficEvent) error {
		calls++
		return errors.New("boom")
	})
	ok := NewCallbackPublisher(func(context.Context, *TrafficEvent) error {
		calls++
		return nil
	})

	multi := MultiPublisher{failing, nil, ok}
	err := multi.PublishTraffic(context.Background(), NewTrafficEvent(DirectionInbound, "t", "", 0))
	if err == nil {
		t.Fatal("expected joined error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}

	if err := (MultiPublisher{ok}).PublishTraffic(context.Background(), NewTrafficEvent(DirectionInbound, "t", "", 0)); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
