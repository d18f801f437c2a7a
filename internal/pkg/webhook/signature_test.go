package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	body := []byte(`{"am-event":"accessAfterInsert","access":{"access_id":"3911"}}`)
	secret := "test-webhook-secret"

	sig := Sign(body, secret)
	assert.NotEmpty(t, sig)
	assert.True(t, VerifySignature(body, sig, secret))
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	body := []byte(`{"am-event":"accessAfterInsert","access":{"access_id":"3911"}}`)
	secret := "test-webhook-secret"
	sig := Sign(body, secret)

	tampered := []byte(`{"am-event":"accessAfterInsert","access":{"access_id":"9999"}}`)
	assert.False(t, VerifySignature(tampered, sig, secret))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte("payload")
	sig := Sign(body, "secret-a")
	assert.False(t, VerifySignature(body, sig, "secret-b"))
}

func TestVerifySignature_UnsecuredInstallation(t *testing.T) {
	// An installation without a webhook secret accepts anything,
	// including requests that carry no signature at all.
	body := []byte("payload")
	assert.True(t, VerifySignature(body, "", ""))
	assert.True(t, VerifySignature(body, "deadbeef", ""))
}

func TestVerifySignature_MissingSignature(t *testing.T) {
	body := []byte("payload")
	assert.False(t, VerifySignature(body, "", "some-secret"))
}

func TestVerifySignature_GarbageSignature(t *testing.T) {
	body := []byte("payload")
	assert.False(t, VerifySignature(body, "not-hex-at-all", "some-secret"))
}
