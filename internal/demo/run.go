package demo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/bridgekit/pkg/bridge"
	"github.com/morezero/bridgekit/pkg/commsutil"
	"github.com/morezero/bridgekit/pkg/events"
	"github.com/morezero/bridgekit/pkg/luaruntime"
)

const runLogPrefix = "demo:run"

// Options configures RunLocal and ServeRemote.
type Options struct {
	// ScriptPath replaces the embedded page when set.
	ScriptPath string
	// EventName is the event the page listens on; empty uses bridge.EventName.
	EventName string
	// ErrorTopic overrides bridge.DefaultErrorTopic.
	ErrorTopic string
	// Timeout bounds each evaluation and each wait for a page reaction.
	Timeout time.Duration
}

func (o Options) eventName() string {
	if o.EventName == "" {
		return bridge.EventName
	}
	return o.EventName
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 5 * time.Second
	}
	return o.Timeout
}

// Result is what the demo observed.
type Result struct {
	// Displayed is the text the page shows after receiving textFromNative.
	Displayed string
	// Reply is the receivedText of the page's myTopic message.
	Reply string
	// Alerted is true when the page's showAlert reached the host.
	Alerted bool
}

// NewPage starts a Lua runtime and loads the page into it.
func NewPage(opts Options) (*luaruntime.Runtime, error) {
	rt, err := luaruntime.New()
	if err != nil {
		return nil, err
	}
	if _, err := rt.Eval("bridgekit.event_name = " + luaruntime.Quote(opts.eventName())); err != nil {
		rt.Close()
		return nil, fmt.Errorf("%s - failed to set event name: %w", runLogPrefix, err)
	}

	if opts.ScriptPath != "" {
		if err := rt.LoadFile(opts.ScriptPath); err != nil {
			rt.Close()
			return nil, err
		}
		return rt, nil
	}
	if _, err := rt.Eval(PageScript); err != nil {
		rt.Close()
		return nil, fmt.Errorf("%s - failed to load embedded page: %w", runLogPrefix, err)
	}
	return rt, nil
}

// RunLocal runs the whole demo in process: the host sends text, reads what
// the page displays, then presses both page buttons and waits for the host
// handlers to see them.
func RunLocal(ctx context.Context, text string, opts Options) (*Result, error) {
	rt, err := NewPage(opts)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	traffic := events.NewCallbackPublisher(func(_ context.Context, e *events.TrafficEvent) error {
		slog.Debug(fmt.Sprintf("%s - %s %s %s", runLogPrefix, e.Direction, e.Topic, e.Envelope))
		return nil
	})
	b := bridge.New(rt,
		bridge.WithScriptBuilder(luaruntime.Script),
		bridge.WithEventName(opts.eventName()),
		bridge.WithErrorTopic(opts.ErrorTopic),
		bridge.WithEvaluationTimeout(opts.timeout()),
		bridge.WithPublisher(traffic),
	)
	rt.SetIntake(b.HandleReceived)
	host := NewHost(b)

	waitCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	if err := host.SendText(waitCtx, text); err != nil {
		return nil, err
	}

	res := &Result{}
	displayed, err := rt.Eval("return received_text")
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read page text: %w", runLogPrefix, err)
	}
	if s, ok := displayed.(string); ok {
		res.Displayed = s
	}

	if _, err := rt.Eval("show_alert()"); err != nil {
		return nil, fmt.Errorf("%s - show_alert failed: %w", runLogPrefix, err)
	}
	select {
	case <-host.Alerts():
		res.Alerted = true
	case <-waitCtx.Done():
		return nil, fmt.Errorf("%s - waiting for alert: %w", runLogPrefix, waitCtx.Err())
	}

	if _, err := rt.Eval("send_message()"); err != nil {
		return nil, fmt.Errorf("%s - send_message failed: %w", runLogPrefix, err)
	}
	select {
	case res.Reply = <-host.Replies():
	case <-waitCtx.Done():
		return nil, fmt.Errorf("%s - waiting for reply: %w", runLogPrefix, waitCtx.Err())
	}

	return res, nil
}

// ServeRemote exposes the page as a remote context over COMMS: scripts
// requested on evalSubject run in the page, and messages the page posts are
// published on inboundSubject. It blocks until ctx is done.
func ServeRemote(ctx context.Context, nc *comms.Conn, evalSubject, inboundSubject string, opts Options) error {
	rt, err := NewPage(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.SetIntake(func(message any) {
		if err := commsutil.PublishMessage(nc, inboundSubject, message); err != nil {
			slog.Error(fmt.Sprintf("%s - %v", runLogPrefix, err))
		}
	})

	sub, err := commsutil.ServeEvaluations(nc, evalSubject, rt.Eval)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	slog.Info(fmt.Sprintf("%s - Remote page ready on %s", runLogPrefix, sub.Subject))
	<-ctx.Done()
	slog.Info(fmt.Sprintf("%s - Remote page stopping", runLogPrefix))
	return nil
}
