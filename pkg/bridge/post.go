package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morezero/bridgekit/pkg/envelope"
	"github.com/morezero/bridgekit/pkg/events"
)

const postLogPrefix = "bridge:post"

// Post sends payload to the remote context on topic. completion, when not nil,
// is invoked exactly once with Success(result) or Failure(err); encoding
// failures complete before Post returns and nothing is injected. Evaluation
// errors are reported as EncodingError.
func (b *Bridge) Post(payload any, topic Topic, completion func(Response)) {
	complete := onceResponse(completion)

	raw, err := envelope.Encode(topic.Name, payload)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - encode failed for topic %q: %v", postLogPrefix, topic.Name, err))
		complete(Failure(EncodingError(err.Error())))
		return
	}

	script := b.buildScript(b.eventName, raw)
	b.publish(events.DirectionOutbound, topic.Name, raw, 0)

	if b.timeout > 0 {
		timeout := b.timeout
		inner := complete
		timer := time.AfterFunc(timeout, func() {
			slog.Warn(fmt.Sprintf("%s - evaluation for topic %q timed out after %s", postLogPrefix, topic.Name, timeout))
			inner(Failure(EncodingError(fmt.Sprintf("evaluation timed out after %s", timeout))))
		})
		complete = func(r Response) {
			timer.Stop()
			inner(r)
		}
	}

	b.evaluator.EvaluateScript(script, func(result any, err error) {
		if err != nil {
			complete(Failure(EncodingError(err.Error())))
			return
		}
		complete(Success(result))
	})
}

// PostAndWait posts payload and blocks until the completion fires or ctx is done.
// A failed response is returned as a *Error.
func (b *Bridge) PostAndWait(ctx context.Context, payload any, topic Topic) (any, error) {
	done := make(chan Response, 1)
	b.Post(payload, topic, func(r Response) {
		done <- r
	})

	select {
	case r := <-done:
		if !r.OK() {
			return nil, r.Err()
		}
		return r.Value(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s - waiting for topic %q: %w", postLogPrefix, topic.Name, ctx.Err())
	}
}

// onceResponse guards completion so late or repeated calls from a collaborator are dropped.
func onceResponse(completion func(Response)) func(Response) {
	var once sync.Once
	return func(r Response) {
		once.Do(func() {
			if completion != nil {
				completion(r)
			}
		})
	}
}
