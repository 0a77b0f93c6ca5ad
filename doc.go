// Package supercart keeps a self-checkout cart in sync with a cashier
// station over an MQTT broker. Each cart session is assigned a zero-padded
// cart number that doubles as its topic namespace: scanned product
// identifiers arrive on {id}/IDProducts, cart snapshots go out on
// {id}/payment once a second while the cart has contents, and the
// cashier's confirmation comes back on {id}/payment-status.
//
// The Engine wires the whole graph from a Config: a document store (in
// memory or SQLite) holding products, user accounts, and transaction
// history; a catalog resolver with a debounced free-text search; the cart
// session state machine; the transport client; and the synchronization
// driver that ties them together. An in-memory channel transport backed by
// Watermill is available for tests and offline demos, so a cashier
// simulator can run in the same process.
//
// A minimal setup fills a Config, calls NewEngine, Start, and AssignCart,
// and then feeds the session from scans arriving over the broker; see
// examples/ for runnable wiring.
package supercart
