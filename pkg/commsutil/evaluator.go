package commsutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"
)

const evaluatorLogPrefix = "commsutil:evaluator"

// Evaluator injects scripts into a remote context reachable over COMMS. Each
// script is sent as a request on the evaluate subject; the reply completes it.
type Evaluator struct {
	nc      *comms.Conn
	subject string
	timeout time.Duration
}

// NewEvaluator creates an Evaluator. An empty subject uses SubjectEvaluate;
// a zero timeout waits until the connection is closed.
func NewEvaluator(nc *comms.Conn, subject string, timeout time.Duration) *Evaluator {
	if subject == "" {
		subject = SubjectEvaluate
	}
	return &Evaluator{nc: nc, subject: subject, timeout: timeout}
}

// EvaluateScript sends script and invokes completion exactly once from a
// separate goroutine.
func (e *Evaluator) EvaluateScript(script string, completion func(result any, err error)) {
	msg := comms.NewMsg(e.subject)
	msg.Data = []byte(script)
	msg.Header.Set(HeaderMessageID, uuid.NewString())

	go func() {
		result, err := e.request(msg)
		if completion != nil {
			completion(result, err)
		}
	}()
}

func (e *Evaluator) request(msg *comms.Msg) (any, error) {
	ctx := context.Background()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	id := msg.Header.Get(HeaderMessageID)
	slog.Debug(fmt.Sprintf("%s - evaluate id=%s subject=%s bytes=%d", evaluatorLogPrefix, id, e.subject, len(msg.Data)))

	reply, err := e.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%s - evaluate request on %s failed: %w", evaluatorLogPrefix, e.subject, err)
	}
	if reason := reply.Header.Get(HeaderError); reason != "" {
		return nil, errors.New(reason)
	}
	return DecodeResult(reply.Data), nil
}

// ServeEvaluations exposes a remote context on the evaluate subject: every
// request is passed to eval and answered with its JSON encoded result, or with
// the HeaderError header set when eval fails.
func ServeEvaluations(nc *comms.Conn, subject string, eval func(script string) (any, error)) (*comms.Subscription, error) {
	if subject == "" {
		subject = SubjectEvaluate
	}
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		reply := comms.NewMsg(msg.Reply)
		result, err := eval(string(msg.Data))
		if err != nil {
			reply.Header.Set(HeaderError, headerSafe(err.Error()))
		} else if result != nil {
			data, encErr := EncodePayload(result)
			if encErr != nil {
				reply.Header.Set(HeaderError, headerSafe(encErr.Error()))
			} else {
				reply.Data = data
			}
		}
		if err := msg.RespondMsg(reply); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to reply to evaluation: %v", evaluatorLogPrefix, err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", evaluatorLogPrefix, subject, err)
	}
	return sub, nil
}

// headerSafe keeps multi-line error messages (script tracebacks) on one header line.
func headerSafe(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
