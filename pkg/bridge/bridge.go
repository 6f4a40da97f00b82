// Package bridge implements the topic-addressed envelope protocol between a
// host and an embedded remote context.
//
// The host side reaches the remote context only through an Evaluator, which
// injects a script and completes once. The remote side reaches the host only
// by handing raw messages to (*Bridge).HandleReceived. Everything else (the
// envelope format, the topic registry, typed decoding and the error channel)
// lives here.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morezero/bridgekit/pkg/events"
)

const logPrefix = "bridge:bridge"

const (
	// EventName is the event the remote context raises for every envelope it receives.
	EventName = "bridgekit"
	// DefaultErrorTopic receives errors that happen before the topic of a message is known.
	DefaultErrorTopic = "error"
	// DefaultPublishTimeout bounds each traffic publish.
	DefaultPublishTimeout = 2 * time.Second
)

// Topic is a named channel. Two topics with the same Name are interchangeable.
type Topic struct {
	Name string
}

// Evaluator is the host capability to inject a script into the remote context.
// completion must be invoked exactly once, with the evaluation result or an error.
// It may be invoked from any goroutine.
type Evaluator interface {
	EvaluateScript(script string, completion func(result any, err error))
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(script string, completion func(result any, err error))

// EvaluateScript calls f.
func (f EvaluatorFunc) EvaluateScript(script string, completion func(result any, err error)) {
	f(script, completion)
}

// ScriptBuilder renders the injected script that makes the remote context
// raise eventName carrying the envelope JSON.
type ScriptBuilder func(eventName, envelopeJSON string) string

// JavaScriptEvent builds the script for a browser-like remote context.
func JavaScriptEvent(eventName, envelopeJSON string) string {
	return fmt.Sprintf("window.dispatchEvent(new CustomEvent('%s', {detail: %s}));", eventName, envelopeJSON)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithErrorTopic overrides DefaultErrorTopic.
func WithErrorTopic(topic string) Option {
	return func(b *Bridge) {
		if topic != "" {
			b.errorTopic = topic
		}
	}
}

// WithEventName overrides EventName.
func WithEventName(name string) Option {
	return func(b *Bridge) {
		if name != "" {
			b.eventName = name
		}
	}
}

// WithScriptBuilder replaces the JavaScriptEvent script builder.
func WithScriptBuilder(build ScriptBuilder) Option {
	return func(b *Bridge) {
		if build != nil {
			b.buildScript = build
		}
	}
}

// WithEvaluationTimeout fails a Post with an encoding error when the evaluator
// has not completed within d. Without it a completion never fires if the
// remote context goes away mid-evaluation.
func WithEvaluationTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.timeout = d
	}
}

// WithPublishTimeout bounds how long Post and HandleReceived wait for the
// traffic publisher. A publisher still running at the deadline is left to
// finish on its own and the event is reported as dropped. Values <= 0 keep
// DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.publishTimeout = d
		}
	}
}

// WithPublisher sets the publisher that receives a TrafficEvent for every
// envelope sent or routed.
func WithPublisher(p events.Publisher) Option {
	return func(b *Bridge) {
		if p != nil {
			b.publisher = p
		}
	}
}

// Bridge owns the topic registry for one host/remote session.
type Bridge struct {
	evaluator   Evaluator
	errorTopic  string
	eventName   string
	buildScript ScriptBuilder
	timeout     time.Duration
	publisher   events.Publisher

	publishTimeout time.Duration

	mu       sync.RWMutex
	handlers map[string]*handlerEntry
}

// New creates a Bridge that injects envelopes through evaluator.
func New(evaluator Evaluator, opts ...Option) *Bridge {
	b := &Bridge{
		evaluator:   evaluator,
		errorTopic:  DefaultErrorTopic,
		eventName:   EventName,
		buildScript: JavaScriptEvent,
		publisher:   &events.NoOpPublisher{},
		handlers:    make(map[string]*handlerEntry),

		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ErrorTopic returns the fallback topic for errors.
func (b *Bridge) ErrorTopic() string {
	return b.errorTopic
}

// publish hands one traffic event to the publisher and waits at most
// publishTimeout for it.
func (b *Bridge) publish(direction events.Direction, topic, raw string, errorCode int) {
	event := events.NewTrafficEvent(direction, topic, raw, errorCode)
	ctx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- b.publisher.PublishTraffic(ctx, event)
	}()

	select {
	case err := <-done:
		if err != nil {
			slog.Debug(fmt.Sprintf("%s - traffic publish failed for topic %q: %v", logPrefix, topic, err))
		}
	case <-ctx.Done():
		slog.Warn(fmt.Sprintf("%s - traffic publish for topic %q dropped after %s", logPrefix, topic, b.publishTimeout))
	}
}
