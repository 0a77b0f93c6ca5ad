package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	loggingpkg "github.com/ichaaulia/supercart/internal/engine/logging"
	"github.com/ichaaulia/supercart/transport"
)

// fakeToken completes immediately with a fixed error.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// pendingToken never resolves, like Paho's connect token while the
// connect-retry loop is still dialing an unreachable broker.
type pendingToken struct{}

func (pendingToken) Wait() bool                     { return false }
func (pendingToken) WaitTimeout(time.Duration) bool { return false }
func (pendingToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (pendingToken) Error() error                   { return nil }

// fakePaho records broker-level calls without any network.
type fakePaho struct {
	mu            sync.Mutex
	connectErr    error
	retryInFlight bool // Connect hangs as if retrying an unreachable broker
	connected     bool
	disconnects   int
	subscribes    []string
	unsubscribes  []string
	published     map[string][]byte
	routes        map[string]pahomqtt.MessageHandler
}

func newFakePaho() *fakePaho {
	return &fakePaho{
		published: make(map[string][]byte),
		routes:    make(map[string]pahomqtt.MessageHandler),
	}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retryInFlight {
		return pendingToken{}
	}
	if f.connectErr != nil {
		return &fakeToken{err: f.connectErr}
	}
	f.connected = true
	return &fakeToken{}
}

func (f *fakePaho) Disconnect(quiesce uint) {
	f.mu.Lock()
	f.connected = false
	f.disconnects++
	f.mu.Unlock()
}

func (f *fakePaho) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := payload.(type) {
	case []byte:
		f.published[topic] = v
	case string:
		f.published[topic] = []byte(v)
	}
	return &fakeToken{}
}

func (f *fakePaho) Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, topic)
	f.routes[topic] = callback
	return &fakeToken{}
}

func (f *fakePaho) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	return &fakeToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes = append(f.unsubscribes, topics...)
	return &fakeToken{}
}

func (f *fakePaho) AddRoute(topic string, callback pahomqtt.MessageHandler) {}

func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func (f *fakePaho) subscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribes...)
}

func (f *fakePaho) unsubscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubscribes...)
}

func (f *fakePaho) publishedPayload(topic string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[topic]
}

func newTestClient(t *testing.T) (*Client, *fakePaho, *pahomqtt.ClientOptions) {
	return newTestClientTimeout(t, time.Second)
}

func newTestClientTimeout(t *testing.T, connectTimeout time.Duration) (*Client, *fakePaho, *pahomqtt.ClientOptions) {
	t.Helper()

	fake := newFakePaho()
	var captured *pahomqtt.ClientOptions

	originalFactory := Factory
	t.Cleanup(func() { Factory = originalFactory })
	Factory = func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		captured = opts
		return fake
	}

	c := New(transport.Options{
		BrokerURL:         "wss://broker.test:8081/mqtt",
		ClientIDPrefix:    "tablet_",
		ConnectTimeout:    connectTimeout,
		ReconnectInterval: 2 * time.Second,
	}, loggingpkg.Nop())
	require.NotNil(t, captured)
	return c, fake, captured
}

// connect brings the client up and simulates Paho's OnConnect callback.
func connect(t *testing.T, c *Client, fake *fakePaho, opts *pahomqtt.ClientOptions) {
	t.Helper()
	require.NoError(t, c.Connect(context.Background()))
	opts.OnConnect(fake)
	require.Equal(t, transport.Connected, c.State())
}

func TestConnectResolvesOnce(t *testing.T) {
	c, fake, opts := newTestClient(t)
	connect(t, c, fake, opts)

	assert.ErrorIs(t, c.Connect(context.Background()), errspkg.ErrAlreadyConnected)
}

func TestConnectFailureSurfaces(t *testing.T) {
	c, fake, _ := newTestClient(t)
	fake.connectErr = errors.New("bad options")

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, transport.Disconnected, c.State())
}

func TestConnectRetryIsConfigured(t *testing.T) {
	_, _, opts := newTestClient(t)

	assert.True(t, opts.ConnectRetry)
	assert.Equal(t, 2*time.Second, opts.ConnectRetryInterval)
	assert.True(t, opts.AutoReconnect)
}

func TestConnectUnreachableBrokerReportsOnceThenRetriesInBackground(t *testing.T) {
	c, fake, opts := newTestClientTimeout(t, 20*time.Millisecond)
	fake.retryInFlight = true

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, errspkg.ErrNotConnected)

	// The retry loop is still dialing, so the client is connecting, not
	// dead, and a second Connect call is rejected.
	assert.Equal(t, transport.Connecting, c.State())
	assert.ErrorIs(t, c.Connect(context.Background()), errspkg.ErrAlreadyConnected)

	// Subscriptions made while waiting take effect once the broker answers.
	_, subErr := c.Subscribe("007/IDProducts", func([]byte) {})
	require.NoError(t, subErr)
	assert.Empty(t, fake.subscribedTopics())

	opts.OnConnect(fake)
	assert.Equal(t, transport.Connected, c.State())
	assert.Equal(t, []string{"007/IDProducts"}, fake.subscribedTopics())
}

func TestConnectCancelledStopsRetrying(t *testing.T) {
	c, fake, _ := newTestClient(t)
	fake.retryInFlight = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := c.Connect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, transport.Disconnected, c.State())
	assert.Equal(t, 1, fake.disconnectCount())

	// A cancelled connect may be tried again.
	fake.retryInFlight = false
	require.NoError(t, c.Connect(context.Background()))
}

func TestSubscribeIssuesBrokerSubscribeOnce(t *testing.T) {
	c, fake, opts := newTestClient(t)
	connect(t, c, fake, opts)

	_, err := c.Subscribe("007/IDProducts", func([]byte) {})
	require.NoError(t, err)
	_, err = c.Subscribe("007/IDProducts", func([]byte) {})
	require.NoError(t, err)

	// Second handler on the same topic needs no second broker subscribe.
	assert.Equal(t, []string{"007/IDProducts"}, fake.subscribedTopics())
}

func TestSubscribeWhileDisconnectedIsDeferred(t *testing.T) {
	c, fake, opts := newTestClient(t)

	var got [][]byte
	var mu sync.Mutex
	_, err := c.Subscribe("007/IDProducts", func(p []byte) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Empty(t, fake.subscribedTopics())

	// The deferred subscription is replayed when the connection comes up.
	connect(t, c, fake, opts)
	assert.Equal(t, []string{"007/IDProducts"}, fake.subscribedTopics())
}

func TestUnsubscribeLastHandlerHitsBroker(t *testing.T) {
	c, fake, opts := newTestClient(t)
	connect(t, c, fake, opts)

	tokA, _ := c.Subscribe("007/payment-status", func([]byte) {})
	tokB, _ := c.Subscribe("007/payment-status", func([]byte) {})

	require.NoError(t, c.Unsubscribe("007/payment-status", tokA))
	assert.Empty(t, fake.unsubscribedTopics())

	require.NoError(t, c.Unsubscribe("007/payment-status", tokB))
	assert.Equal(t, []string{"007/payment-status"}, fake.unsubscribedTopics())
}

func TestUnsubscribeAll(t *testing.T) {
	c, fake, opts := newTestClient(t)
	connect(t, c, fake, opts)

	c.Subscribe("007/IDProducts", func([]byte) {})
	c.Subscribe("007/IDProducts", func([]byte) {})

	require.NoError(t, c.UnsubscribeAll("007/IDProducts"))
	assert.Equal(t, []string{"007/IDProducts"}, fake.unsubscribedTopics())

	c.dispatch("007/IDProducts", []byte(`"APL01"`))
}

func TestDispatchFanOut(t *testing.T) {
	c, fake, opts := newTestClient(t)
	connect(t, c, fake, opts)

	var mu sync.Mutex
	var calls []string
	c.Subscribe("t", func(p []byte) {
		mu.Lock()
		calls = append(calls, "a:"+string(p))
		mu.Unlock()
	})
	c.Subscribe("t", func(p []byte) {
		mu.Lock()
		calls = append(calls, "b:"+string(p))
		mu.Unlock()
	})

	c.dispatch("t", []byte(`"APL01"`))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`a:"APL01"`, `b:"APL01"`}, calls)
}

func TestDispatchDropsMalformedPayload(t *testing.T) {
	c, fake, opts := newTestClient(t)
	connect(t, c, fake, opts)

	var called bool
	c.Subscribe("t", func([]byte) { called = true })

	c.dispatch("t", []byte(`{"broken":`))
	assert.False(t, called)
}

func TestDispatchUnknownTopicSilentlyDropped(t *testing.T) {
	c, fake, opts := newTestClient(t)
	connect(t, c, fake, opts)

	assert.NotPanics(t, func() {
		c.dispatch("no-such-topic", []byte(`{}`))
	})
}

func TestPublishSerializesToJSON(t *testing.T) {
	c, fake, opts := newTestClient(t)
	connect(t, c, fake, opts)

	require.NoError(t, c.Publish("007/payment", map[string]any{"id": "icha"}))
	assert.JSONEq(t, `{"id":"icha"}`, string(fake.publishedPayload("007/payment")))

	// Strings pass through untouched.
	require.NoError(t, c.Publish("007/raw", `already-encoded`))
	assert.Equal(t, "already-encoded", string(fake.publishedPayload("007/raw")))
}

func TestPublishWhileDisconnectedIsNoop(t *testing.T) {
	c, fake, _ := newTestClient(t)

	require.NoError(t, c.Publish("007/payment", map[string]any{"id": "icha"}))
	assert.Nil(t, fake.publishedPayload("007/payment"))
}

func TestDisconnectClearsRegistryAndIsIdempotent(t *testing.T) {
	c, fake, opts := newTestClient(t)
	connect(t, c, fake, opts)

	var called bool
	c.Subscribe("t", func([]byte) { called = true })

	c.Disconnect()
	assert.Equal(t, transport.Disconnected, c.State())
	c.dispatch("t", []byte(`{}`))
	assert.False(t, called)

	assert.NotPanics(t, c.Disconnect)
}

func TestStateListener(t *testing.T) {
	c, fake, opts := newTestClient(t)

	var mu sync.Mutex
	var states []transport.ConnState
	c.OnStateChange(func(s transport.ConnState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	connect(t, c, fake, opts)
	opts.OnConnectionLost(fake, errors.New("gone"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []transport.ConnState{
		transport.Connecting,
		transport.Connected,
		transport.Disconnected,
	}, states)
}
