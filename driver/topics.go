package driver

// Topics is the three-topic broker namespace derived from one session
// identifier (the zero-padded cart number).
type Topics struct {
	sessionID string
}

// NamespaceFor builds the topic namespace for a session identifier.
func NamespaceFor(sessionID string) Topics {
	return Topics{sessionID: sessionID}
}

// Products is the inbound topic carrying scanned or typed product
// identifiers.
func (t Topics) Products() string {
	return t.sessionID + "/IDProducts"
}

// Payment is the outbound topic carrying cart snapshots for the cashier.
func (t Topics) Payment() string {
	return t.sessionID + "/payment"
}

// PaymentStatus is the inbound topic carrying the cashier's payment
// confirmation.
func (t Topics) PaymentStatus() string {
	return t.sessionID + "/payment-status"
}

// SessionID returns the session identifier the namespace was derived from.
func (t Topics) SessionID() string {
	return t.sessionID
}
