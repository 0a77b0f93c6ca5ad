// Package transport defines the broker client contract used by the cart
// synchronization engine. Each implementation (mqtt, channel) lives in its
// own sub-package; all of them fan inbound messages out through the shared
// subscription Registry.
package transport

import (
	"context"
	"time"
)

// ConnState is the connection lifecycle of a Client. It is owned solely by
// the client; other components observe it but never mutate it.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Handler consumes one inbound message payload. The payload has already
// been checked to be well-formed JSON; handlers decode it further
// themselves. Handlers run on the transport's delivery goroutine and must
// not block for long.
type Handler func(payload []byte)

// StateListener observes connection state changes.
type StateListener func(state ConnState)

// Client owns one physical connection to the broker.
//
// Connect resolves or fails exactly once per call within a bounded timeout;
// an initial failure is reported to that one caller while the client keeps
// retrying in the background, and reconnects never re-resolve it.
// Publish and Subscribe issued while disconnected are no-ops that log a
// warning rather than returning hard failures, except that Subscribe still
// records the handler so the subscription takes effect on reconnect.
type Client interface {
	// Connect establishes the connection. Safe to cancel via ctx.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down and clears all subscription
	// state. Idempotent.
	Disconnect()

	// State returns the current connection state.
	State() ConnState

	// OnStateChange registers a listener for connection state transitions.
	OnStateChange(fn StateListener)

	// Subscribe registers handler under topic and issues a broker-level
	// subscribe when this is the first handler for the topic. The returned
	// token removes exactly this handler.
	Subscribe(topic string, handler Handler) (Token, error)

	// Unsubscribe removes one handler. The broker-level unsubscribe is
	// issued only when the last handler for the topic is removed.
	Unsubscribe(topic string, token Token) error

	// UnsubscribeAll removes every handler for topic and issues the
	// broker-level unsubscribe.
	UnsubscribeAll(topic string) error

	// Publish sends a best-effort, unacknowledged message. Non-string
	// payloads are serialized to JSON.
	Publish(topic string, payload any) error
}

// Options carries the connection tuning shared by client implementations.
type Options struct {
	// BrokerURL is the broker endpoint.
	BrokerURL string

	// ClientIDPrefix is prepended to a random per-connection suffix.
	ClientIDPrefix string

	// ConnectTimeout bounds the initial connect. Connect fails once the
	// timeout elapses.
	ConnectTimeout time.Duration

	// ReconnectInterval is the fixed backoff between automatic reconnect
	// attempts after a successful initial connect. Retries are unbounded.
	ReconnectInterval time.Duration
}
