package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/bridgekit/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// TrafficSubject overrides the global traffic subject (e.g. from BRIDGE_TRAFFIC_SUBJECT).
	TrafficSubject string
}

// CommsPublisher publishes bridge traffic events to COMMS subjects.
type CommsPublisher struct {
	nc             *comms.Conn
	trafficSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	subject := commsutil.SubjectTraffic
	if opts != nil && opts.TrafficSubject != "" {
		subject = opts.TrafficSubject
	}
	return &CommsPublisher{nc: nc, trafficSubject: subject}
}

// PublishTraffic publishes a TrafficEvent to both the granular
// and global traffic subjects.
func (p *CommsPublisher) PublishTraffic(_ context.Context, event *TrafficEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	granularSubject := commsutil.BuildTrafficSubject(p.trafficSubject, string(event.Direction), event.Topic)
	if err := p.nc.Publish(granularSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, granularSubject, err))
		return err
	}

	if err := p.nc.Publish(p.trafficSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.trafficSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s traffic for topic %q", commsPublisherLogPrefix, event.Direction, event.Topic))
	return nil
}
