// Package mqtt implements the transport client over an MQTT broker using
// the Eclipse Paho client. This is the production transport: the tablet and
// the cashier terminal meet on a WebSocket MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	idspkg "github.com/ichaaulia/supercart/internal/engine/ids"
	"github.com/ichaaulia/supercart/internal/engine/jsoncodec"
	loggingpkg "github.com/ichaaulia/supercart/internal/engine/logging"
	"github.com/ichaaulia/supercart/transport"
)

// Factory builds the underlying Paho client. Overridable for testing.
var Factory = func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	return pahomqtt.NewClient(opts)
}

// Client is the MQTT-backed transport client. Messages are published with
// QoS 0 (best effort, unacknowledged); delivery guarantees beyond that are
// out of scope for this system.
type Client struct {
	opts     transport.Options
	logger   loggingpkg.ServiceLogger
	registry *transport.Registry

	paho pahomqtt.Client

	state atomic.Int32

	mu        sync.Mutex
	listeners []transport.StateListener
	started   bool // Connect already issued
}

var _ transport.Client = (*Client)(nil)

// New builds a Client for the given broker options. The connection is not
// established until Connect.
func New(opts transport.Options, logger loggingpkg.ServiceLogger) *Client {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	c := &Client{
		opts:     opts,
		logger:   logger,
		registry: transport.NewRegistry(),
	}

	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(idspkg.ClientID(opts.ClientIDPrefix)).
		SetCleanSession(true).
		SetConnectTimeout(opts.ConnectTimeout).
		SetConnectRetry(true).
		SetConnectRetryInterval(opts.ReconnectInterval).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(opts.ReconnectInterval).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetDefaultPublishHandler(c.onMessage)

	c.paho = Factory(clientOpts)
	return c
}

// Connect establishes the broker connection. It resolves or fails exactly
// once, bounded by the connect timeout; a broker that is unreachable at
// startup yields one error while the client keeps retrying in the
// background with a fixed backoff, exactly as it does after a lost
// connection. Retries never re-resolve this call.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errspkg.ErrAlreadyConnected
	}
	c.started = true
	c.mu.Unlock()

	c.setState(transport.Connecting)

	token := c.paho.Connect()
	timeout := time.NewTimer(c.opts.ConnectTimeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		// Cancelled startup: stop the retry loop entirely.
		c.paho.Disconnect(0)
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		c.setState(transport.Disconnected)
		return ctx.Err()
	case <-timeout.C:
		// The retry loop stays alive; onConnect flips the state when the
		// broker finally answers.
		return fmt.Errorf("mqtt: connect %s timed out after %v, retrying in background: %w",
			c.opts.BrokerURL, c.opts.ConnectTimeout, errspkg.ErrNotConnected)
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		// The token resolves with an error only when the retry loop gave
		// up (e.g. unusable options), so a later Connect may try again.
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		c.setState(transport.Disconnected)
		return fmt.Errorf("mqtt: connect %s: %w", c.opts.BrokerURL, err)
	}
	return nil
}

// Disconnect tears the connection down and clears all subscription state.
// Idempotent.
func (c *Client) Disconnect() {
	// Also stops an in-flight connect retry loop.
	c.paho.Disconnect(250)
	c.registry.Clear()
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()
	c.setState(transport.Disconnected)
}

// State returns the current connection state.
func (c *Client) State() transport.ConnState {
	return transport.ConnState(c.state.Load())
}

// OnStateChange registers a listener for connection state transitions.
func (c *Client) OnStateChange(fn transport.StateListener) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Subscribe registers handler under topic. The broker-level subscribe is
// issued on the first handler for the topic; while disconnected the handler
// is recorded and the subscribe replayed on reconnect.
func (c *Client) Subscribe(topic string, handler transport.Handler) (transport.Token, error) {
	if topic == "" {
		return 0, errspkg.ErrTopicRequired
	}
	if handler == nil {
		return 0, errspkg.ErrHandlerRequired
	}

	token, first := c.registry.Add(topic, handler)

	if c.State() != transport.Connected {
		c.logger.Warn("subscribe while disconnected, deferred until reconnect",
			loggingpkg.LogFields{"topic": topic})
		return token, nil
	}
	if first {
		c.brokerSubscribe(topic)
	}
	return token, nil
}

// Unsubscribe removes one handler; the broker-level unsubscribe goes out
// only when the topic has no handlers left.
func (c *Client) Unsubscribe(topic string, token transport.Token) error {
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	removed, last := c.registry.Remove(topic, token)
	if !removed {
		return nil
	}
	if last {
		c.brokerUnsubscribe(topic)
	}
	return nil
}

// UnsubscribeAll removes every handler for topic.
func (c *Client) UnsubscribeAll(topic string) error {
	if topic == "" {
		return errspkg.ErrTopicRequired
	}
	if c.registry.RemoveTopic(topic) {
		c.brokerUnsubscribe(topic)
	}
	return nil
}

// Publish sends a best-effort QoS 0 message. Non-string payloads are
// serialized to JSON. While disconnected this is a logged no-op.
func (c *Client) Publish(topic string, payload any) error {
	if topic == "" {
		return errspkg.ErrTopicRequired
	}
	if c.State() != transport.Connected {
		c.logger.Warn("publish while disconnected, message dropped",
			loggingpkg.LogFields{"topic": topic})
		return nil
	}

	data, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("mqtt: encode payload for %s: %w", topic, err)
	}

	// Fire and forget: no delivery confirmation is awaited for QoS 0.
	c.paho.Publish(topic, 0, false, data)
	return nil
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return jsoncodec.Marshal(v)
	}
}

// onConnect fires on the initial connect and on every automatic reconnect.
// Broker-level subscriptions are replayed so registered handlers keep
// receiving messages across reconnects.
func (c *Client) onConnect(_ pahomqtt.Client) {
	c.setState(transport.Connected)
	for _, topic := range c.registry.Topics() {
		c.brokerSubscribe(topic)
	}
	c.logger.Info("mqtt connected", loggingpkg.LogFields{"broker": c.opts.BrokerURL})
}

func (c *Client) onConnectionLost(_ pahomqtt.Client, err error) {
	c.setState(transport.Disconnected)
	c.logger.Warn("mqtt connection lost, retrying in background",
		loggingpkg.LogFields{"error": err})
}

// onMessage dispatches one inbound message: malformed JSON is logged and
// dropped, unknown topics are dropped silently, and every handler
// registered for the exact topic string runs once.
func (c *Client) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	c.dispatch(msg.Topic(), msg.Payload())
}

func (c *Client) dispatch(topic string, payload []byte) {
	if !jsoncodec.Valid(payload) {
		c.logger.Error("dropping malformed inbound message", nil,
			loggingpkg.LogFields{"topic": topic})
		return
	}
	for _, handler := range c.registry.Handlers(topic) {
		handler(payload)
	}
}

func (c *Client) brokerSubscribe(topic string) {
	token := c.paho.Subscribe(topic, 0, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(msg.Topic(), msg.Payload())
	})
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.logger.Error("broker subscribe failed", err,
				loggingpkg.LogFields{"topic": topic})
		}
	}()
}

func (c *Client) brokerUnsubscribe(topic string) {
	if c.State() != transport.Connected {
		return
	}
	token := c.paho.Unsubscribe(topic)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.logger.Error("broker unsubscribe failed", err,
				loggingpkg.LogFields{"topic": topic})
		}
	}()
}

func (c *Client) setState(next transport.ConnState) {
	prev := transport.ConnState(c.state.Swap(int32(next)))
	if prev == next {
		return
	}

	c.mu.Lock()
	listeners := append([]transport.StateListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}
