package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
)

const registryLogPrefix = "bridge:registry"

var errNullPayload = errors.New("null data for a non-nullable type")

// Validator is implemented by payload types that check their own content after decoding.
// A validation failure is reported to the sender like any other decode failure.
type Validator interface {
	Validate() error
}

// handlerEntry binds a decode routine for the handler's payload type to the typed callback.
type handlerEntry struct {
	typeName string
	decode   func(data []byte) (any, error)
	call     func(payload any, b *Bridge)
}

// Register binds handler to topic, replacing any handler registered for the same name.
// Received data is decoded into T before handler runs.
func Register[T any](b *Bridge, topic Topic, handler func(payload T, b *Bridge)) {
	entry := &handlerEntry{
		typeName: typeName[T](),
		decode:   decodeInto[T],
		call: func(payload any, br *Bridge) {
			handler(payload.(T), br)
		},
	}

	b.mu.Lock()
	_, replaced := b.handlers[topic.Name]
	b.handlers[topic.Name] = entry
	b.mu.Unlock()

	slog.Debug(fmt.Sprintf("%s - registered %s handler for topic %q (replaced=%t)", registryLogPrefix, entry.typeName, topic.Name, replaced))
}

// Unregister removes the handler for topic and reports whether one existed.
func (b *Bridge) Unregister(topic Topic) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.handlers[topic.Name]
	delete(b.handlers, topic.Name)
	return ok
}

// HasHandler reports whether a handler is registered for topic.
func (b *Bridge) HasHandler(topic Topic) bool {
	return b.lookup(topic.Name) != nil
}

// Topics returns the names of all registered topics, sorted.
func (b *Bridge) Topics() []string {
	b.mu.RLock()
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	b.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (b *Bridge) lookup(name string) *handlerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers[name]
}

func decodeInto[T any](data []byte) (any, error) {
	var v T
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) && !nullable(reflect.TypeOf((*T)(nil)).Elem()) {
		return nil, errNullPayload
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
