package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

const commsPublisherTestPrefix = "events:comms_publisher_integration_test"

// startTestServer starts an in-process NATS server for testing.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", commsPublisherTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", commsPublisherTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", commsPublisherTestPrefix, err)
	}

	cleanup := func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}

	return nc, cleanup
}

func subscribeEvents(t *testing.T, nc *comms.Conn, subject string) (chan *TrafficEvent, func()) {
	t.Helper()
	received := make(chan *TrafficEvent, 4)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event TrafficEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("%s - failed to unmarshal: %v", commsPublisherTestPrefix, err)
			return
		}
		received <- &event
	})
	if err != nil {
		t.Fatalf("%s - failed to subscribe to %s: %v", commsPublisherTestPrefix, subject, err)
	}
	return received, func() { sub.Unsubscribe() }
}

func TestCommsPublisher_PublishTraffic_GranularSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14230)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)
	received, unsubscribe := subscribeEvents(t, nc, "bridgekit.traffic.outbound.textFromNative")
	defer unsubscribe()

	event := NewTrafficEvent(DirectionOutbound, "textFromNative", `{"data":{"text":"hi"},"topic":"textFromNative"}`, 0)
	if err := publisher.PublishTraffic(context.Background(), event); err != nil {
		t.Fatalf("%s - PublishTraffic failed: %v", commsPublisherTestPrefix, err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.ID != event.ID {
			t.Errorf("%s - ID = %q, want %q", commsPublisherTestPrefix, got.ID, event.ID)
		}
		if got.Envelope != event.Envelope {
			t.Errorf("%s - Envelope = %q, want %q", commsPublisherTestPrefix, got.Envelope, event.Envelope)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timeout waiting for granular event", commsPublisherTestPrefix)
	}
}

func TestCommsPublisher_PublishTraffic_GlobalSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14231)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)
	received, unsubscribe := subscribeEvents(t, nc, "bridgekit.traffic")
	defer unsubscribe()

	event := NewTrafficEvent(DirectionInbound, "nope", "", 3)
	if err := publisher.PublishTraffic(context.Background(), event); err != nil {
		t.Fatalf("%s - PublishTraffic failed: %v", commsPublisherTestPrefix, err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.Direction != DirectionInbound {
			t.Errorf("%s - Direction = %q, want inbound", commsPublisherTestPrefix, got.Direction)
		}
		if got.ErrorCode != 3 {
			t.Errorf("%s - ErrorCode = %d, want 3", commsPublisherTestPrefix, got.ErrorCode)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timeout waiting for global event", commsPublisherTestPrefix)
	}
}

func TestCommsPublisher_UnsafeTopicIsSanitized(t *testing.T) {
	nc, cleanup := startTestServer(t, 14232)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)
	received, unsubscribe := subscribeEvents(t, nc, "bridgekit.traffic.inbound._")
	defer unsubscribe()

	// Messages rejected before a topic is known carry an empty topic.
	if err := publisher.PublishTraffic(context.Background(), NewTrafficEvent(DirectionInbound, "", "", 1)); err != nil {
		t.Fatalf("%s - PublishTraffic failed: %v", commsPublisherTestPrefix, err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.ErrorCode != 1 {
			t.Errorf("%s - ErrorCode = %d, want 1", commsPublisherTestPrefix, got.ErrorCode)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timeout waiting for sanitized subject event", commsPublisherTestPrefix)
	}
}

func TestCommsPublisher_CustomTrafficSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14233)
	defer cleanup()

	customSubject := "custom.bridge.traffic"
	publisher := NewCommsPublisher(nc, &CommsPublisherOpts{TrafficSubject: customSubject})
	received, unsubscribe := subscribeEvents(t, nc, customSubject+".>")
	defer unsubscribe()

	if err := publisher.PublishTraffic(context.Background(), NewTrafficEvent(DirectionOutbound, "greet", "{}", 0)); err != nil {
		t.Fatalf("%s - PublishTraffic failed: %v", commsPublisherTestPrefix, err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.Topic != "greet" {
			t.Errorf("%s - Topic = %q, want %q", commsPublisherTestPrefix, got.Topic, "greet")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timeout waiting for custom subject event", commsPublisherTestPrefix)
	}
}

func TestNewCommsPublisher_Defaults(t *testing.T) {
	nc, cleanup := startTestServer(t, 14234)
	defer cleanup()

	for _, opts := range []*CommsPublisherOpts{nil, {TrafficSubject: ""}} {
		publisher := NewCommsPublisher(nc, opts)
		if publisher.trafficSubject != "bridgekit.traffic" {
			t.Errorf("%s - trafficSubject = %q, want %q", commsPublisherTestPrefix, publisher.trafficSubject, "bridgekit.traffic")
		}
	}
}
