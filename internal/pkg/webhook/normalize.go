package webhook

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// kindByWireName is the single mapping from sender event names to canonical
// kinds. Two wire generations exist: the am-webhooks plugin posts camelCase
// names with nested sub-objects, older senders post dotted names with one
// flat "data" object. Anything absent from this table is EventUnknown.
var kindByWireName = map[string]EventKind{
	"accessAfterInsert":    EventAccessGranted,
	"accessAfterUpdate":    EventAccessUpdated,
	"accessAfterDelete":    EventAccessRevoked,
	"subscriptionAdded":    EventAccessGranted,
	"subscriptionDeleted":  EventAccessRevoked,
	"userAfterInsert":      EventUserCreated,
	"userAfterUpdate":      EventUserUpdated,
	"paymentAfterInsert":   EventPaymentReceived,
	"invoicePaymentRefund": EventPaymentRefunded,

	"subscription.added":   EventAccessGranted,
	"subscription.updated": EventAccessUpdated,
	"subscription.deleted": EventAccessRevoked,
	"payment.completed":    EventPaymentReceived,
	"payment.refunded":     EventPaymentRefunded,
}

// EventName extracts the declared event name from a decoded payload. The
// am-webhooks plugin uses "am-event", older senders use "event".
func EventName(payload map[string]any) string {
	if name := stringField(payload, "am-event"); name != "" {
		return name
	}
	return stringField(payload, "event")
}

// Normalize maps a declared event name plus the decoded payload into the
// canonical event shape. Missing sub-objects are tolerated; the engine
// decides per kind which fields it actually requires. Unknown names are not
// an error.
func Normalize(eventName string, payload map[string]any) *CanonicalEvent {
	ev := &CanonicalEvent{
		Kind:     EventUnknown,
		WireName: eventName,
	}

	kind, ok := kindByWireName[eventName]
	if !ok {
		return ev
	}
	ev.Kind = kind

	// The dotted generation puts everything into one flat "data" object
	// which doubles as access record and user identity.
	flat := subObject(payload, "data")

	access := subObject(payload, "access")
	if access == nil && flat != nil && hasField(flat, "access_id") {
		access = flat
	}
	if access != nil {
		ev.HasAccess = true
		ev.Access = normalizeAccess(access)
	} else if product := subObject(payload, "product"); product != nil {
		// subscriptionAdded/subscriptionDeleted carry no access record,
		// only a product sub-object. Keep the product id around for the
		// user+product revoke fallback.
		ev.Access.ProductID = uint(uintField(product, "product_id"))
	}

	user := subObject(payload, "user")
	if user == nil {
		user = flat
	}
	if user != nil {
		ev.User = UserFields{
			UserID:    uintField(user, "user_id"),
			Email:     stringField(user, "email"),
			Login:     firstStringField(user, "username", "login"),
			Name:      stringField(user, "name"),
			FirstName: stringField(user, "name_f"),
			LastName:  stringField(user, "name_l"),
		}
	}

	payment := subObject(payload, "payment")
	if payment == nil {
		payment = subObject(payload, "refund")
	}
	if payment == nil && flat != nil {
		payment = flat
	}
	if payment != nil {
		ev.Payment = PaymentFields{
			PaymentID: firstStringField(payment, "payment_id", "refund_id"),
			InvoiceID: stringField(payment, "invoice_id"),
			Amount:    stringField(payment, "amount"),
			Currency:  stringField(payment, "currency"),
		}
	}

	return ev
}

func normalizeAccess(access map[string]any) AccessFields {
	raw, _ := json.Marshal(access)
	return AccessFields{
		AccessID:   uintField(access, "access_id"),
		UserID:     uintField(access, "user_id"),
		ProductID:  uint(uintField(access, "product_id")),
		BeginDate:  dateField(access, "begin_date"),
		ExpireDate: dateField(access, "expire_date"),
		RawJSON:    string(raw),
	}
}

func subObject(payload map[string]any, key string) map[string]any {
	if payload == nil {
		return nil
	}
	m, ok := payload[key].(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	return m
}

func hasField(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// stringField reads a value that may arrive as a string (form bodies) or a
// JSON number and renders it as a trimmed string.
func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func firstStringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringField(m, key); v != "" {
			return v
		}
	}
	return ""
}

func uintField(m map[string]any, key string) uint64 {
	s := stringField(m, key)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// dateFormats are the shapes aMember uses for begin_date and expire_date.
var dateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

func dateField(m map[string]any, key string) *time.Time {
	s := stringField(m, key)
	if s == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
