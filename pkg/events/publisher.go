package events

import (
	"context"
	"errors"
)

// Publisher is the interface for publishing bridge traffic events.
type Publisher interface {
	PublishTraffic(ctx context.Context, event *TrafficEvent) error
}

// NoOpPublisher is a Publisher that does nothing (bridge without taps).
type NoOpPublisher struct{}

// PublishTraffic is a no-op.
func (p *NoOpPublisher) PublishTraffic(_ context.Context, _ *TrafficEvent) error {
	return nil
}

// CallbackPublisher is a Publisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *TrafficEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *TrafficEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishTraffic calls the callback.
func (p *CallbackPublisher) PublishTraffic(ctx context.Context, event *TrafficEvent) error {
	return p.callback(ctx, event)
}

// MultiPublisher fans an event out to several publishers. Every publisher is
// called even when an earlier one fails; the failures are joined.
type MultiPublisher []Publisher

// PublishTraffic publishes to all publishers.
func (m MultiPublisher) PublishTraffic(ctx context.Context, event *TrafficEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishTraffic(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
