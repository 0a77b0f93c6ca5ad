// Package channel provides an in-memory transport client backed by
// Watermill's Go channel pub/sub. It is used in tests and local development
// where no MQTT broker is available; a cashier simulator in the same
// process can publish on the same client.
package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	idspkg "github.com/ichaaulia/supercart/internal/engine/ids"
	"github.com/ichaaulia/supercart/internal/engine/jsoncodec"
	loggingpkg "github.com/ichaaulia/supercart/internal/engine/logging"
	"github.com/ichaaulia/supercart/transport"
)

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, logger)
}

// Client is the in-memory transport client.
type Client struct {
	logger   loggingpkg.ServiceLogger
	registry *transport.Registry
	pubSub   *gochannel.GoChannel

	state atomic.Int32

	mu        sync.Mutex
	listeners []transport.StateListener
	readers   map[string]context.CancelFunc
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

var _ transport.Client = (*Client)(nil)

// New builds an in-memory client. Connect must be called before messages
// flow, mirroring the production client's lifecycle.
func New(logger loggingpkg.ServiceLogger) *Client {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return &Client{
		logger:   logger,
		registry: transport.NewRegistry(),
		pubSub:   Factory(gochannel.Config{}, loggingpkg.NewWatermillAdapter(logger)),
		readers:  make(map[string]context.CancelFunc),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.ctx != nil {
		c.mu.Unlock()
		return errspkg.ErrAlreadyConnected
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Topics subscribed before Connect start flowing now.
	var err error
	for _, topic := range c.registry.Topics() {
		if err = c.startReaderLocked(topic); err != nil {
			break
		}
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.setState(transport.Connected)
	return nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.ctx == nil {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.ctx, c.cancel = nil, nil
	c.readers = make(map[string]context.CancelFunc)
	c.mu.Unlock()

	c.wg.Wait()
	c.pubSub.Close()
	c.registry.Clear()
	c.setState(transport.Disconnected)
}

func (c *Client) State() transport.ConnState {
	return transport.ConnState(c.state.Load())
}

func (c *Client) OnStateChange(fn transport.StateListener) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Client) Subscribe(topic string, handler transport.Handler) (transport.Token, error) {
	if topic == "" {
		return 0, errspkg.ErrTopicRequired
	}
	if handler == nil {
		return 0, errspkg.ErrHandlerRequired
	}

	token, first := c.registry.Add(topic, handler)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		c.logger.Warn("subscribe while disconnected, deferred until connect",
			loggingpkg.LogFields{"topic": topic})
		return token, nil
	}
	if first {
		if err := c.startReaderLocked(topic); err != nil {
			return token, err
		}
	}
	return token, nil
}

func (c *Client) Unsubscribe(topic string, token transport.Token) error {
	if topic == "" {
		return errspkg.ErrTopicRequired
	}
	removed, last := c.registry.Remove(topic, token)
	if removed && last {
		c.stopReader(topic)
	}
	return nil
}

func (c *Client) UnsubscribeAll(topic string) error {
	if topic == "" {
		return errspkg.ErrTopicRequired
	}
	if c.registry.RemoveTopic(topic) {
		c.stopReader(topic)
	}
	return nil
}

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
		return fmt.Errorf("channel: encode payload for %s: %w", topic, err)
	}
	return c.pubSub.Publish(topic, message.NewMessage(idspkg.CreateULID(), data))
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

// startReaderLocked subscribes at the pub/sub level and pumps messages into
// the registry dispatch. Caller holds c.mu.
func (c *Client) startReaderLocked(topic string) error {
	if _, ok := c.readers[topic]; ok {
		return nil
	}

	readerCtx, cancel := context.WithCancel(c.ctx)
	messages, err := c.pubSub.Subscribe(readerCtx, topic)
	if err != nil {
		cancel()
		return fmt.Errorf("channel: subscribe %s: %w", topic, err)
	}
	c.readers[topic] = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for msg := range messages {
			c.dispatch(topic, msg.Payload)
			msg.Ack()
		}
	}()
	return nil
}

func (c *Client) stopReader(topic string) {
	c.mu.Lock()
	cancel, ok := c.readers[topic]
	if ok {
		delete(c.readers, topic)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
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
