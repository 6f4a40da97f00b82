package commsutil

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"
)

const intakeLogPrefix = "commsutil:intake"

// SubscribeIntake delivers every message published on subject to intake,
// one at a time and in arrival order.
func SubscribeIntake(nc *comms.Conn, subject string, intake func(message any)) (*comms.Subscription, error) {
	if subject == "" {
		subject = SubjectInbound
	}
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		slog.Debug(fmt.Sprintf("%s - received %d bytes on %s", intakeLogPrefix, len(msg.Data), msg.Subject))
		intake(DecodeMessage(msg.Data))
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", intakeLogPrefix, subject, err)
	}
	return sub, nil
}

// PublishMessage pushes one remote-side message toward the host intake.
func PublishMessage(nc *comms.Conn, subject string, message any) error {
	if subject == "" {
		subject = SubjectInbound
	}
	data, err := EncodePayload(message)
	if err != nil {
		return fmt.Errorf("%s - failed to encode message: %w", intakeLogPrefix, err)
	}
	if err := nc.Publish(subject, data); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", intakeLogPrefix, subject, err)
	}
	return nil
}
