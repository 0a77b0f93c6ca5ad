// Package driver binds a cart session to its broker topic namespace: it
// consumes scanned product identifiers, republishes cart snapshots on a
// fixed cadence while the session is open and unpaid, and transitions the
// session to paid on the cashier's confirmation.
package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ichaaulia/supercart/cart"
	"github.com/ichaaulia/supercart/catalog"
	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	"github.com/ichaaulia/supercart/internal/engine/jsoncodec"
	loggingpkg "github.com/ichaaulia/supercart/internal/engine/logging"
	"github.com/ichaaulia/supercart/transport"
)

// DefaultPublishInterval is the snapshot cadence when none is configured.
const DefaultPublishInterval = time.Second

// Notifier receives user-visible events. Implementations render them
// however the surrounding application likes; the driver never blocks on
// them for long.
type Notifier interface {
	// PaymentConfirmed fires once when the cashier confirms payment.
	PaymentConfirmed(method string, totalAmount int64)

	// ProductNotFound fires when a scanned identifier has no catalog
	// record. The cart is unchanged.
	ProductNotFound(id string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) PaymentConfirmed(string, int64) {}
func (NopNotifier) ProductNotFound(string)         {}

// TransactionRecorder persists a completed transaction. Failures are
// logged and the in-memory cart preserved so the write can be retried.
type TransactionRecorder interface {
	Save(ctx context.Context, session *cart.Session, paidAt time.Time) (string, error)
}

// Config wires a Driver. Session, Client, and Resolver are required.
type Config struct {
	Session  *cart.Session
	Client   transport.Client
	Resolver *catalog.Resolver

	// Operator identifies the paying party in outbound snapshots,
	// evaluated at publish time so a login change is picked up live.
	Operator func() string

	// Recorder, Notifier, Metrics, and Logger are optional.
	Recorder TransactionRecorder
	Notifier Notifier
	Metrics  *Metrics
	Logger   loggingpkg.ServiceLogger

	// PublishInterval overrides the one-second snapshot cadence.
	PublishInterval time.Duration
}

// Driver runs the synchronization loop for one bound session.
type Driver struct {
	session  *cart.Session
	client   transport.Client
	resolver *catalog.Resolver
	operator func() string
	recorder TransactionRecorder
	notifier Notifier
	metrics  *Metrics
	logger   loggingpkg.ServiceLogger
	interval time.Duration

	mu         sync.Mutex
	bound      bool
	topics     Topics
	scanToken  transport.Token
	payToken   transport.Token
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	handlerCtx context.Context
}

// New validates the configuration and builds an unbound Driver.
func New(cfg Config) (*Driver, error) {
	if cfg.Session == nil {
		return nil, errspkg.ErrSessionRequired
	}
	if cfg.Client == nil {
		return nil, errspkg.ErrClientRequired
	}
	if cfg.Resolver == nil {
		return nil, errspkg.ErrResolverRequired
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = loggingpkg.Nop()
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = DefaultPublishInterval
	}
	if cfg.Operator == nil {
		cfg.Operator = func() string { return "unknown" }
	}

	return &Driver{
		session:  cfg.Session,
		client:   cfg.Client,
		resolver: cfg.Resolver,
		operator: cfg.Operator,
		recorder: cfg.Recorder,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		interval: cfg.PublishInterval,
	}, nil
}

// Bind subscribes the session's topic namespace and starts the snapshot
// publisher. The session must already be assigned. Rebinding after a
// session change first tears down the previous namespace, so a message on
// an old topic can never mutate the new cart.
func (d *Driver) Bind(ctx context.Context) error {
	sessionID := d.session.ID()
	if sessionID == "" {
		return errspkg.ErrSessionUnassigned
	}

	d.Unbind()

	d.mu.Lock()
	defer d.mu.Unlock()

	topics := NamespaceFor(sessionID)

	scanToken, err := d.client.Subscribe(topics.Products(), d.handleScan)
	if err != nil {
		return err
	}
	payToken, err := d.client.Subscribe(topics.PaymentStatus(), d.handlePaymentStatus)
	if err != nil {
		d.client.Unsubscribe(topics.Products(), scanToken)
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.bound = true
	d.topics = topics
	d.scanToken = scanToken
	d.payToken = payToken
	d.cancel = cancel
	d.handlerCtx = loopCtx

	d.wg.Add(1)
	go d.publishLoop(loopCtx)

	d.logger.Info("session bound", loggingpkg.LogFields{
		"session":  sessionID,
		"inbound":  topics.Products(),
		"outbound": topics.Payment(),
	})
	return nil
}

// Unbind cancels the publisher, waits for it to stop, and unsubscribes the
// session's topics. Safe to call repeatedly and while unbound.
func (d *Driver) Unbind() {
	d.mu.Lock()
	if !d.bound {
		d.mu.Unlock()
		return
	}
	d.bound = false
	topics := d.topics
	scanToken, payToken := d.scanToken, d.payToken
	cancel := d.cancel
	d.cancel = nil
	d.handlerCtx = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()

	d.client.Unsubscribe(topics.Products(), scanToken)
	d.client.Unsubscribe(topics.PaymentStatus(), payToken)

	d.logger.Info("session unbound", loggingpkg.LogFields{"session": topics.SessionID()})
}

// Close tears the driver down. Alias for Unbind; kept for symmetry with
// other component lifecycles.
func (d *Driver) Close() {
	d.Unbind()
}

// publishLoop republishes the cart snapshot on a fixed interval until the
// binding is cancelled.
func (d *Driver) publishLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.publishSnapshot()
		}
	}
}

// publishSnapshot sends the current cart to the cashier. It never runs
// when the session is unassigned or paid, the cart is empty, or the
// transport is not connected; the snapshot is built from the live cart at
// invocation time, never a cached copy.
func (d *Driver) publishSnapshot() {
	if d.session.ID() == "" || d.session.Paid() || d.session.Empty() {
		return
	}
	if d.client.State() != transport.Connected {
		return
	}

	lines := d.session.Lines()
	snapshot := Snapshot{
		ID:    d.operator(),
		Items: make([]SnapshotItem, len(lines)),
	}
	for i, line := range lines {
		snapshot.Items[i] = SnapshotItem{ID: line.Product.ID, Qty: line.Qty}
	}

	d.mu.Lock()
	topic := d.topics.Payment()
	d.mu.Unlock()

	if err := d.client.Publish(topic, snapshot); err != nil {
		d.logger.Error("snapshot publish failed", err, loggingpkg.LogFields{"topic": topic})
		return
	}
	d.metrics.snapshotPublished()
}

// handleScan resolves one inbound product identifier and merges it into
// the cart.
func (d *Driver) handleScan(payload []byte) {
	id, ok := ProductID(payload)
	if !ok {
		d.metrics.decodeFailure()
		d.logger.Debug("ignoring unresolvable scan payload", loggingpkg.LogFields{
			"payload": string(payload),
		})
		return
	}

	ctx := d.currentContext()
	product, err := d.resolver.ResolveByID(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		d.notifier.ProductNotFound(id)
		return
	}
	if err != nil {
		d.logger.Error("product lookup failed", err, loggingpkg.LogFields{"id": id})
		return
	}

	d.session.AddProduct(product)
	d.metrics.scanReceived()
}

// handlePaymentStatus processes the cashier's confirmation. Only a "paid"
// status transitions the session; the transition happens at most once even
// when the message is delivered twice.
func (d *Driver) handlePaymentStatus(payload []byte) {
	var status PaymentStatus
	if err := jsoncodec.Unmarshal(payload, &status); err != nil {
		d.logger.Debug("ignoring malformed payment status", loggingpkg.LogFields{
			"payload": string(payload),
		})
		return
	}
	if status.Status != StatusPaid {
		return
	}
	if !d.session.MarkPaid() {
		return
	}

	d.metrics.paymentConfirmed()
	d.notifier.PaymentConfirmed(status.PaymentMethod, status.TotalAmount)

	if d.recorder != nil {
		if _, err := d.recorder.Save(d.currentContext(), d.session, time.Now()); err != nil {
			// The cart stays in memory so the write can be retried.
			d.logger.Error("transaction persist failed", err, loggingpkg.LogFields{
				"session": d.session.ID(),
			})
		}
	}
}

func (d *Driver) currentContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlerCtx != nil {
		return d.handlerCtx
	}
	return context.Background()
}
