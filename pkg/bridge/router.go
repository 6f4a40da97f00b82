package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/morezero/bridgekit/pkg/envelope"
	"github.com/morezero/bridgekit/pkg/events"
)

const routerLogPrefix = "bridge:router"

// HandleReceived is the intake for every raw message pushed by the remote
// context. message may be a parsed mapping or JSON text.
//
// Failures never reach the caller: they are posted back as an ErrorResponse,
// on the message's topic once it is known and on the error topic before that.
// Panics raised by the handler itself are not recovered.
func (b *Bridge) HandleReceived(message any) {
	env, err := envelope.Decode(message)
	if err != nil {
		b.reject("", false, fromCodecError(err))
		return
	}

	entry := b.lookup(env.Topic)
	if entry == nil {
		b.reject(env.Topic, true, MissingMessageHandler(env.Topic))
		return
	}

	payload, err := b.decodePayload(entry, env.Data)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - topic %q: %v", routerLogPrefix, env.Topic, err))
		b.reject(env.Topic, true, InvalidDataForHandler(env.Topic, entry.typeName))
		return
	}

	raw, err := envelope.Encode(env.Topic, env.Data)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - topic %q: traffic envelope not encodable: %v", routerLogPrefix, env.Topic, err))
	}
	b.publish(events.DirectionInbound, env.Topic, raw, 0)

	entry.call(payload, b)
}

func (b *Bridge) decodePayload(entry *handlerEntry, data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return entry.decode(raw)
}

// reject posts err back across the boundary: on topic when known is set, on
// the error topic otherwise. A failure of that send is dropped.
func (b *Bridge) reject(topic string, known bool, err *Error) {
	b.publish(events.DirectionInbound, topic, "", err.Code())

	target := topic
	if !known {
		target = b.errorTopic
	}
	slog.Debug(fmt.Sprintf("%s - rejecting message on %q: %s (code %d)", routerLogPrefix, target, err.Error(), err.Code()))

	b.Post(NewErrorResponse(err), Topic{Name: target}, func(r Response) {
		if !r.OK() {
			slog.Debug(fmt.Sprintf("%s - error report on %q dropped: %v", routerLogPrefix, target, r.Err()))
		}
	})
}
