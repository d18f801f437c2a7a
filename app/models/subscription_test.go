package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name   string
		begin  *time.Time
		expire *time.Time
		want   string
	}{
		{"no dates", nil, nil, SubscriptionStatusActive},
		{"open window", &past, &future, SubscriptionStatusActive},
		{"begin in future", &future, nil, SubscriptionStatusPending},
		{"expired", &past, &past, SubscriptionStatusExpired},
		{"lifetime access", &past, nil, SubscriptionStatusActive},
		{"begins exactly now", &now, &future, SubscriptionStatusActive},
		{"expires exactly now", &past, &now, SubscriptionStatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(now, tt.begin, tt.expire))
		})
	}
}

func TestSubscription_IsActive(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	active := Subscription{BeginDate: &past, ExpireDate: &future}
	assert.True(t, active.IsActive(now))

	expired := Subscription{BeginDate: &past, ExpireDate: &past}
	assert.False(t, expired.IsActive(now))

	pending := Subscription{BeginDate: &future}
	assert.False(t, pending.IsActive(now))
}
