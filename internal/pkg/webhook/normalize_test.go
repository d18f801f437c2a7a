package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventName(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string
	}{
		{
			name:     "am-webhooks plugin field",
			payload:  map[string]any{"am-event": "accessAfterInsert"},
			expected: "accessAfterInsert",
		},
		{
			name:     "legacy dotted field",
			payload:  map[string]any{"event": "subscription.added"},
			expected: "subscription.added",
		},
		{
			name:     "am-event wins over event",
			payload:  map[string]any{"am-event": "accessAfterUpdate", "event": "subscription.updated"},
			expected: "accessAfterUpdate",
		},
		{
			name:     "no event field",
			payload:  map[string]any{"access": map[string]any{"access_id": "1"}},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EventName(tt.payload))
		})
	}
}

func TestNormalize_Kinds(t *testing.T) {
	tests := []struct {
		wireName string
		expected EventKind
	}{
		{"accessAfterInsert", EventAccessGranted},
		{"accessAfterUpdate", EventAccessUpdated},
		{"accessAfterDelete", EventAccessRevoked},
		{"subscriptionAdded", EventAccessGranted},
		{"subscriptionDeleted", EventAccessRevoked},
		{"userAfterInsert", EventUserCreated},
		{"userAfterUpdate", EventUserUpdated},
		{"paymentAfterInsert", EventPaymentReceived},
		{"invoicePaymentRefund", EventPaymentRefunded},
		{"subscription.added", EventAccessGranted},
		{"subscription.updated", EventAccessUpdated},
		{"subscription.deleted", EventAccessRevoked},
		{"payment.completed", EventPaymentReceived},
		{"payment.refunded", EventPaymentRefunded},
	}

	for _, tt := range tests {
		t.Run(tt.wireName, func(t *testing.T) {
			ev := Normalize(tt.wireName, map[string]any{})
			assert.Equal(t, tt.expected, ev.Kind)
			assert.Equal(t, tt.wireName, ev.WireName)
			assert.False(t, ev.IsUnknown())
		})
	}
}

func TestNormalize_UnknownEvent(t *testing.T) {
	for _, name := range []string{"", "somethingElse", "access.after.insert", "userAfterDelete"} {
		ev := Normalize(name, map[string]any{"user": map[string]any{"email": "a@b.c"}})
		assert.Equal(t, EventUnknown, ev.Kind, "wire name %q", name)
		assert.True(t, ev.IsUnknown())
	}
}

func TestNormalize_AccessNestedPayload(t *testing.T) {
	payload := map[string]any{
		"am-event": "accessAfterInsert",
		"access": map[string]any{
			"access_id":   "3911",
			"user_id":     "42",
			"product_id":  "7",
			"begin_date":  "2026-01-01",
			"expire_date": "2026-12-31",
		},
		"user": map[string]any{
			"user_id": "42",
			"email":   "jane@example.com",
			"login":   "jane",
			"name_f":  "Jane",
			"name_l":  "Doe",
		},
	}

	ev := Normalize("accessAfterInsert", payload)
	require.Equal(t, EventAccessGranted, ev.Kind)
	require.True(t, ev.HasAccess)

	assert.Equal(t, uint64(3911), ev.Access.AccessID)
	assert.Equal(t, uint64(42), ev.Access.UserID)
	assert.Equal(t, uint(7), ev.Access.ProductID)
	require.NotNil(t, ev.Access.BeginDate)
	require.NotNil(t, ev.Access.ExpireDate)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *ev.Access.BeginDate)
	assert.NotEmpty(t, ev.Access.RawJSON)

	assert.Equal(t, uint64(42), ev.User.UserID)
	assert.Equal(t, "jane@example.com", ev.User.Email)
	assert.Equal(t, "jane", ev.User.Login)
	assert.Equal(t, "Jane", ev.User.FirstName)
	assert.Equal(t, "Doe", ev.User.LastName)
}

func TestNormalize_FlatLegacyPayload(t *testing.T) {
	// Dotted generation: one flat "data" object doubles as access record
	// and user identity.
	payload := map[string]any{
		"event": "subscription.added",
		"data": map[string]any{
			"access_id":  "100",
			"user_id":    "5",
			"product_id": "3",
			"email":      "old@example.com",
			"username":   "olduser",
		},
	}

	ev := Normalize("subscription.added", payload)
	require.Equal(t, EventAccessGranted, ev.Kind)
	require.True(t, ev.HasAccess)
	assert.Equal(t, uint64(100), ev.Access.AccessID)
	assert.Equal(t, uint(3), ev.Access.ProductID)
	assert.Equal(t, "old@example.com", ev.User.Email)
	assert.Equal(t, "olduser", ev.User.Login)
}

func TestNormalize_SubscriptionDeletedWithoutAccess(t *testing.T) {
	// subscriptionDeleted carries no access record, only user plus product.
	// The product id must survive for the user+product revoke fallback.
	payload := map[string]any{
		"am-event": "subscriptionDeleted",
		"user": map[string]any{
			"user_id": "42",
			"email":   "jane@example.com",
		},
		"product": map[string]any{
			"product_id": "7",
			"title":      "Gold",
		},
	}

	ev := Normalize("subscriptionDeleted", payload)
	require.Equal(t, EventAccessRevoked, ev.Kind)
	assert.False(t, ev.HasAccess)
	assert.Equal(t, uint(7), ev.Access.ProductID)
	assert.Equal(t, uint64(42), ev.User.UserID)
}

func TestNormalize_PaymentAndRefund(t *testing.T) {
	payment := Normalize("paymentAfterInsert", map[string]any{
		"am-event": "paymentAfterInsert",
		"payment": map[string]any{
			"payment_id": "555",
			"invoice_id": "321",
			"amount":     "19.95",
			"currency":   "EUR",
		},
		"user": map[string]any{"user_id": "42", "email": "jane@example.com"},
	})
	require.Equal(t, EventPaymentReceived, payment.Kind)
	assert.Equal(t, "555", payment.Payment.PaymentID)
	assert.Equal(t, "321", payment.Payment.InvoiceID)
	assert.Equal(t, "19.95", payment.Payment.Amount)
	assert.Equal(t, "EUR", payment.Payment.Currency)

	refund := Normalize("invoicePaymentRefund", map[string]any{
		"am-event": "invoicePaymentRefund",
		"refund": map[string]any{
			"refund_id":  "556",
			"invoice_id": "321",
			"amount":     "19.95",
			"currency":   "EUR",
		},
	})
	require.Equal(t, EventPaymentRefunded, refund.Kind)
	assert.Equal(t, "556", refund.Payment.PaymentID)
}

func TestNormalize_NumericJSONValues(t *testing.T) {
	// JSON senders emit bare numbers where form senders emit strings.
	payload := map[string]any{
		"am-event": "accessAfterInsert",
		"access": map[string]any{
			"access_id":  float64(3911),
			"user_id":    float64(42),
			"product_id": float64(7),
		},
	}

	ev := Normalize("accessAfterInsert", payload)
	require.True(t, ev.HasAccess)
	assert.Equal(t, uint64(3911), ev.Access.AccessID)
	assert.Equal(t, uint64(42), ev.Access.UserID)
	assert.Equal(t, uint(7), ev.Access.ProductID)
}

func TestNormalize_MissingSubObjects(t *testing.T) {
	ev := Normalize("accessAfterInsert", map[string]any{"am-event": "accessAfterInsert"})
	assert.Equal(t, EventAccessGranted, ev.Kind)
	assert.False(t, ev.HasAccess)
	assert.Empty(t, ev.User.Email)
}

func TestDateField_Formats(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *time.Time
	}{
		{"datetime", "2026-03-15 10:30:00", timePtr(time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC))},
		{"date only", "2026-03-15", timePtr(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))},
		{"rfc3339", "2026-03-15T10:30:00Z", timePtr(time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC))},
		{"empty", "", nil},
		{"garbage", "not-a-date", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dateField(map[string]any{"d": tt.value}, "d")
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got))
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
