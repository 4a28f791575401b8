package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedPayload(t *testing.T, body string, secret string) (payload []byte, header string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestStripeGatewayVerifyEvent(t *testing.T) {
	g := NewStripeGateway("sk_test_key", testWebhookSecret)

	body := `{
		"id": "evt_123",
		"object": "event",
		"api_version": "2025-07-30.basil",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_123",
				"object": "checkout.session",
				"payment_status": "paid",
				"customer_email": "ana@example.com",
				"metadata": {"userId": "u-1", "userEmail": "ana@example.com"}
			}
		}
	}`
	payload, header := signedPayload(t, body, testWebhookSecret)

	ev, err := g.VerifyEvent(payload, header)
	require.NoError(t, err)
	require.Equal(t, "evt_123", ev.ID)
	require.Equal(t, EventCheckoutCompleted, ev.Type)
	require.Equal(t, "cs_123", ev.Session.ID)
	require.True(t, ev.Session.Paid())
	require.Equal(t, "ana@example.com", ev.Session.CustomerEmail)
	require.Equal(t, "u-1", ev.Session.Metadata["userId"])
}

func TestStripeGatewayVerifyEventBadSignature(t *testing.T) {
	g := NewStripeGateway("sk_test_key", testWebhookSecret)

	payload, header := signedPayload(t, `{"id":"evt_123","type":"checkout.session.completed"}`, "whsec_wrong")
	_, err := g.VerifyEvent(payload, header)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSignatureVerification))
}

func TestStripeGatewayVerifyEventMissingHeader(t *testing.T) {
	g := NewStripeGateway("sk_test_key", testWebhookSecret)

	_, err := g.VerifyEvent([]byte("{}"), "")
	require.ErrorIs(t, err, ErrMissingSignature)
}

func TestStripeGatewayIgnoresForeignEventPayload(t *testing.T) {
	g := NewStripeGateway("sk_test_key", testWebhookSecret)

	body := `{"id":"evt_456","object":"event","api_version":"2025-07-30.basil","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`
	payload, header := signedPayload(t, body, testWebhookSecret)

	ev, err := g.VerifyEvent(payload, header)
	require.NoError(t, err)
	require.Equal(t, "invoice.paid", ev.Type)
	require.Empty(t, ev.Session.ID)
}
