// Package events defines traffic events emitted by the bridge and the publishers that fan them out.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Direction tells which way an envelope crossed the bridge.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// TrafficEvent is emitted for every envelope the bridge sends or routes.
type TrafficEvent struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Topic     string    `json:"topic"`
	Envelope  string    `json:"envelope,omitempty"`
	// ErrorCode is the bridge error code of a rejected inbound message, 0 when it was handled.
	ErrorCode int    `json:"errorCode,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewTrafficEvent stamps a new event with a random ID and the current UTC time.
func NewTrafficEvent(direction Direction, topic, envelope string, errorCode int) *TrafficEvent {
	return &TrafficEvent{
		ID:        uuid.NewString(),
		Direction: direction,
		Topic:     topic,
		Envelope:  envelope,
		ErrorCode: errorCode,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
