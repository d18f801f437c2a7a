package webhook

import "time"

// EventKind is the canonical classification of an incoming aMember webhook.
// Every wire event name maps onto exactly one kind; names we do not know map
// onto EventUnknown and are ignored downstream.
type EventKind string

const (
	EventAccessGranted   EventKind = "access_granted"
	EventAccessUpdated   EventKind = "access_updated"
	EventAccessRevoked   EventKind = "access_revoked"
	EventUserCreated     EventKind = "user_created"
	EventUserUpdated     EventKind = "user_updated"
	EventPaymentReceived EventKind = "payment_received"
	EventPaymentRefunded EventKind = "payment_refunded"
	EventUnknown         EventKind = "unknown"
)

// AccessFields carries the normalized access record of an event. RawJSON is
// the snapshot of the access sub-payload as it arrived, stored verbatim on
// the subscription row.
type AccessFields struct {
	AccessID   uint64
	UserID     uint64
	ProductID  uint
	BeginDate  *time.Time
	ExpireDate *time.Time
	RawJSON    string
}

// UserFields carries the normalized user identity fields of an event.
type UserFields struct {
	UserID    uint64
	Email     string
	Login     string
	Name      string
	FirstName string
	LastName  string
}

// PaymentFields carries the normalized payment or refund details of an event.
type PaymentFields struct {
	PaymentID string
	InvoiceID string
	Amount    string
	Currency  string
}

// CanonicalEvent is the single shape the reconciliation engine consumes.
// Which sections are populated depends on the kind; HasAccess reports
// whether the sender included an access sub-payload at all, because revoke
// events without one fall back to matching by user and product.
type CanonicalEvent struct {
	Kind      EventKind     `json:"kind"`
	WireName  string        `json:"wire_name"`
	HasAccess bool          `json:"has_access"`
	Access    AccessFields  `json:"access"`
	User      UserFields    `json:"user"`
	Payment   PaymentFields `json:"payment"`
}

// IsUnknown reports whether the event should be ignored rather than applied.
func (e *CanonicalEvent) IsUnknown() bool {
	return e.Kind == EventUnknown
}
