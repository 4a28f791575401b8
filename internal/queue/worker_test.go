package queue

import (
	"context"
	"os"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gildgarde/backend-boutique/internal/common"
	"github.com/gildgarde/backend-boutique/internal/obs"
	"github.com/gildgarde/backend-boutique/internal/order"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	os.Exit(m.Run())
}

func TestHandleVerificationEmail(t *testing.T) {
	sender := &common.InMemoryEmail{}
	w := NewWorker(sender, zerolog.Nop())

	task, err := NewVerificationEmailTask("ana@example.com", "Ana", "https://shop.test/verify?token=abc")
	require.NoError(t, err)

	require.NoError(t, w.HandleVerificationEmail(context.Background(), task))
	require.Len(t, sender.Outbox, 1)
	require.Equal(t, "ana@example.com", sender.Outbox[0].To)
	require.Contains(t, sender.Outbox[0].HTML, "https://shop.test/verify?token=abc")
}

func TestHandleOrderConfirmation(t *testing.T) {
	sender := &common.InMemoryEmail{}
	w := NewWorker(sender, zerolog.Nop())

	o := order.Order{
		ID:         "ord-1",
		TotalMinor: 10800,
		Currency:   "usd",
		Items: []order.Item{
			{ProductName: "Silk Scarf", Quantity: 2, UnitPriceMinor: 5400},
		},
	}
	task, err := NewOrderConfirmationTask("bob@example.com", o)
	require.NoError(t, err)

	require.NoError(t, w.HandleOrderConfirmation(context.Background(), task))
	require.Len(t, sender.Outbox, 1)
	require.Equal(t, "bob@example.com", sender.Outbox[0].To)
	require.Contains(t, sender.Outbox[0].HTML, "Silk Scarf")
	require.Contains(t, sender.Outbox[0].HTML, "108.00 USD")
}

func TestHandleVerificationEmailBadPayloadSkipsRetry(t *testing.T) {
	w := NewWorker(&common.InMemoryEmail{}, zerolog.Nop())

	task := asynq.NewTask(TypeVerificationEmail, []byte("not json"))
	err := w.HandleVerificationEmail(context.Background(), task)
	require.Error(t, err)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleVerificationEmailSendFailureRetries(t *testing.T) {
	w := NewWorker(failingSender{}, zerolog.Nop())

	task, err := NewVerificationEmailTask("ana@example.com", "Ana", "https://shop.test/verify")
	require.NoError(t, err)

	err = w.HandleVerificationEmail(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

type failingSender struct{}

func (failingSender) Send(string, string, string) error {
	return context.DeadlineExceeded
}
