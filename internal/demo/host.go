// Package demo wires a host and a Lua page together the way a native app
// embeds a web view: the host sends text to the page, the page shows it and
// can ask the host to raise an alert or log a message.
package demo

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/bridgekit/pkg/bridge"
)

const logPrefix = "demo:host"

// PageScript is the embedded demo page.
//
//go:embed page.lua
var PageScript string

// Demo topics.
var (
	TopicShowAlert      = bridge.Topic{Name: "showAlert"}
	TopicMyTopic        = bridge.Topic{Name: "myTopic"}
	TopicTextFromNative = bridge.Topic{Name: "textFromNative"}
)

// EmptyData is the payload of showAlert.
type EmptyData struct{}

// ResponseData is the payload of myTopic.
type ResponseData struct {
	ReceivedText string `json:"receivedText"`
}

// Validate requires receivedText.
func (d *ResponseData) Validate() error {
	if d.ReceivedText == "" {
		return errors.New("receivedText is required")
	}
	return nil
}

// TextData is the payload of textFromNative.
type TextData struct {
	Text string `json:"text"`
}

const eventBuffer = 16

// Host is the native side of the demo.
type Host struct {
	bridge  *bridge.Bridge
	alerts  chan struct{}
	replies chan string
}

// NewHost registers the demo handlers on b.
func NewHost(b *bridge.Bridge) *Host {
	h := &Host{
		bridge:  b,
		alerts:  make(chan struct{}, eventBuffer),
		replies: make(chan string, eventBuffer),
	}

	bridge.Register(b, TopicShowAlert, func(_ EmptyData, _ *bridge.Bridge) {
		slog.Info(fmt.Sprintf("%s - Native alert: button pressed in page", logPrefix))
		select {
		case h.alerts <- struct{}{}:
		default:
			slog.Warn(fmt.Sprintf("%s - alert dropped, buffer full", logPrefix))
		}
	})

	bridge.Register(b, TopicMyTopic, func(data ResponseData, _ *bridge.Bridge) {
		slog.Info(fmt.Sprintf("%s - Received response from page: %s", logPrefix, data.ReceivedText))
		select {
		case h.replies <- data.ReceivedText:
		default:
			slog.Warn(fmt.Sprintf("%s - reply dropped, buffer full", logPrefix))
		}
	})

	return h
}

// Bridge returns the underlying bridge.
func (h *Host) Bridge() *bridge.Bridge {
	return h.bridge
}

// Alerts receives one value per showAlert message.
func (h *Host) Alerts() <-chan struct{} {
	return h.alerts
}

// Replies receives the text of every myTopic message.
func (h *Host) Replies() <-chan string {
	return h.replies
}

// SendText posts text on textFromNative and waits for the injection result.
// Empty text is not sent.
func (h *Host) SendText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if _, err := h.bridge.PostAndWait(ctx, TextData{Text: text}, TopicTextFromNative); err != nil {
		return fmt.Errorf("%s - error sending text to page: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Text sent to page successfully", logPrefix))
	return nil
}
