// Package engine wires the cart synchronization components into one
// runnable unit: config, document store, catalog, cart session, transport
// client, and synchronization driver.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ichaaulia/supercart/auth"
	"github.com/ichaaulia/supercart/cart"
	"github.com/ichaaulia/supercart/catalog"
	"github.com/ichaaulia/supercart/driver"
	"github.com/ichaaulia/supercart/history"
	configpkg "github.com/ichaaulia/supercart/internal/engine/config"
	loggingpkg "github.com/ichaaulia/supercart/internal/engine/logging"
	"github.com/ichaaulia/supercart/localstate"
	storepkg "github.com/ichaaulia/supercart/store"
	"github.com/ichaaulia/supercart/store/sqlite"
	"github.com/ichaaulia/supercart/transport"
	"github.com/ichaaulia/supercart/transport/mqtt"
)

// Dependencies holds optional collaborator overrides. Leave fields nil to
// get the defaults built from configuration.
type Dependencies struct {
	// Store overrides the configured document store backend.
	Store storepkg.Store

	// Client overrides the MQTT transport, e.g. with the in-memory channel
	// client for tests and offline demos.
	Client transport.Client

	// Notifier receives user-visible driver events.
	Notifier driver.Notifier

	// MetricsRegisterer receives the driver counters when metrics are
	// enabled. Defaults to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
}

// Engine owns the full component graph for one tablet.
type Engine struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	store    storepkg.Store
	local    *localstate.State
	auth     *auth.Service
	resolver *catalog.Resolver
	session  *cart.Session
	client   transport.Client
	recorder *history.Recorder
	driver   *driver.Driver

	mu       sync.Mutex
	operator string
	started  bool
}

// NewEngine builds the component graph. The configuration is normalized
// and validated first; nothing is connected until Start.
func NewEngine(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) (*Engine, error) {
	if log == nil {
		log = loggingpkg.Nop()
	}
	conf.Normalize()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	st := deps.Store
	if st == nil {
		var err error
		st, err = buildStore(conf)
		if err != nil {
			return nil, err
		}
	}

	local, err := localstate.New(st)
	if err != nil {
		return nil, err
	}
	authSvc, err := auth.NewService(st, local)
	if err != nil {
		return nil, err
	}
	resolver, err := catalog.NewResolver(st)
	if err != nil {
		return nil, err
	}
	recorder, err := history.NewRecorder(st)
	if err != nil {
		return nil, err
	}

	client := deps.Client
	if client == nil {
		client = mqtt.New(transport.Options{
			BrokerURL:         conf.BrokerURL,
			ClientIDPrefix:    conf.ClientIDPrefix,
			ConnectTimeout:    conf.ConnectTimeout,
			ReconnectInterval: conf.ReconnectInterval,
		}, log)
	}

	var metrics *driver.Metrics
	if conf.MetricsEnabled {
		reg := deps.MetricsRegisterer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		metrics = driver.NewMetrics(reg)
	}

	e := &Engine{
		Conf:     conf,
		Logger:   log,
		store:    st,
		local:    local,
		auth:     authSvc,
		resolver: resolver,
		session:  cart.NewSession(),
		client:   client,
		recorder: recorder,
	}

	drv, err := driver.New(driver.Config{
		Session:         e.session,
		Client:          client,
		Resolver:        resolver,
		Recorder:        recorder,
		Notifier:        deps.Notifier,
		Metrics:         metrics,
		Logger:          log,
		PublishInterval: conf.PublishInterval,
		Operator:        e.currentOperator,
	})
	if err != nil {
		return nil, err
	}
	e.driver = drv

	return e, nil
}

func buildStore(conf *configpkg.Config) (storepkg.Store, error) {
	switch strings.ToLower(conf.StoreBackend) {
	case configpkg.StoreBackendSQLite:
		st, err := sqlite.Open(conf.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("engine: open sqlite store: %w", err)
		}
		return st, nil
	default:
		return storepkg.NewMemory(), nil
	}
}

// Start restores the persisted signed-in user and connects the transport.
// An unreachable broker is reported once through the logger and is not
// fatal: the transport keeps retrying in the background and subscriptions
// made meanwhile take effect on connect. The cart stays unbound until
// AssignCart.
func (e *Engine) Start(ctx context.Context) error {
	user, ok, err := e.local.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("engine: restore signed-in user: %w", err)
	}
	if ok {
		e.setOperator(user.Username)
		e.Logger.Info("restored signed-in user", loggingpkg.LogFields{"username": user.Username})
	}

	if err := e.client.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("engine: connect transport: %w", err)
		}
		e.Logger.Error("broker connect failed, retrying in background", err,
			loggingpkg.LogFields{"broker": e.Conf.BrokerURL})
	}

	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	return nil
}

// AssignCart gives the session its cart number and binds the driver to the
// matching topic namespace.
func (e *Engine) AssignCart(ctx context.Context, number int) error {
	if err := e.session.AssignSession(number); err != nil {
		return err
	}
	return e.driver.Bind(ctx)
}

// NewTransaction ends the current cart session: the driver unbinds from
// the session's topics and the session drops its lines, cart number, and
// paid flag. Call AssignCart afterwards to start the next one.
func (e *Engine) NewTransaction() {
	e.driver.Unbind()
	e.session.Reset()
}

// Login authenticates the operator and makes them the snapshot identity.
func (e *Engine) Login(ctx context.Context, username, password string) (auth.User, error) {
	user, err := e.auth.Login(ctx, username, password)
	if err != nil {
		return auth.User{}, err
	}
	e.setOperator(user.Username)
	return user, nil
}

// Logout clears the signed-in operator.
func (e *Engine) Logout(ctx context.Context) error {
	if err := e.auth.Logout(ctx); err != nil {
		return err
	}
	e.setOperator("")
	return nil
}

// Close tears the graph down in reverse build order. Idempotent.
func (e *Engine) Close() error {
	e.driver.Close()
	e.client.Disconnect()
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("engine: close store: %w", err)
	}
	return nil
}

// Session exposes the cart session for UI wiring.
func (e *Engine) Session() *cart.Session { return e.session }

// Resolver exposes the catalog resolver.
func (e *Engine) Resolver() *catalog.Resolver { return e.resolver }

// Auth exposes the account service.
func (e *Engine) Auth() *auth.Service { return e.auth }

// History exposes the transaction recorder.
func (e *Engine) History() *history.Recorder { return e.recorder }

// Local exposes the device-local state.
func (e *Engine) Local() *localstate.State { return e.local }

// Client exposes the transport client.
func (e *Engine) Client() transport.Client { return e.client }

// NewSearcher builds a debounced catalog searcher using the configured
// tuning. The caller owns its lifecycle.
func (e *Engine) NewSearcher(deliver func(catalog.SearchResult)) *catalog.Searcher {
	return catalog.NewSearcher(e.resolver, e.Conf.SearchDebounce, e.Conf.SearchMinLength, deliver)
}

func (e *Engine) setOperator(username string) {
	e.mu.Lock()
	e.operator = username
	e.mu.Unlock()
}

// currentOperator is the driver's snapshot identity hook, evaluated at
// publish time.
func (e *Engine) currentOperator() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.operator == "" {
		return "unknown"
	}
	return e.operator
}
