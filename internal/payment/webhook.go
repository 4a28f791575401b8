package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gildgarde/backend-boutique/internal/common"
	"github.com/gildgarde/backend-boutique/internal/obs"
)

const dedupKeyPrefix = "webhook:stripe:event:"

// Webhook receives Stripe event deliveries.
//
// Response contract: 400 when the signature header is missing, 500 when
// verification or processing fails (Stripe retries on 5xx), 200 with
// {"received": true} for everything handled, including events that needed no
// action. Duplicates are acknowledged, never errored.
type Webhook struct {
	gateway    Gateway
	reconciler *Reconciler
	redis      *redis.Client
	dedupTTL   time.Duration
	maxBody    int64
	log        zerolog.Logger
}

// NewWebhook wires the webhook endpoint. redis may be nil; the database
// constraint still guarantees idempotency without the fast path.
func NewWebhook(gateway Gateway, reconciler *Reconciler, rdb *redis.Client, dedupTTL time.Duration, maxBody int64, log zerolog.Logger) *Webhook {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Webhook{
		gateway:    gateway,
		reconciler: reconciler,
		redis:      rdb,
		dedupTTL:   dedupTTL,
		maxBody:    maxBody,
		log:        log,
	}
}

// HandleStripe is the POST /webhooks/stripe handler.
func (w *Webhook) HandleStripe(rw http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, w.maxBody))
	if err != nil {
		obs.PaymentWebhookTotal.WithLabelValues("unknown", "read_error").Inc()
		common.JSONError(rw, http.StatusBadRequest, "INVALID_BODY", "unable to read request body", nil)
		return
	}

	ev, err := w.gateway.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, ErrMissingSignature) {
			obs.PaymentWebhookTotal.WithLabelValues("unknown", "missing_signature").Inc()
			common.JSONError(rw, http.StatusBadRequest, "MISSING_SIGNATURE", "stripe signature header is required", nil)
			return
		}
		w.log.Error().Err(err).Msg("webhook signature verification failed")
		obs.PaymentWebhookTotal.WithLabelValues("unknown", "verification_failed").Inc()
		common.JSONError(rw, http.StatusInternalServerError, "VERIFICATION_FAILED", "webhook verification failed", nil)
		return
	}

	if w.seen(r.Context(), ev.ID) {
		obs.PaymentWebhookTotal.WithLabelValues(ev.Type, "duplicate").Inc()
		w.acknowledge(rw)
		return
	}

	res, err := w.reconciler.Process(r.Context(), ev)
	if err != nil {
		w.log.Error().Err(err).Str("event_id", ev.ID).Str("event_type", ev.Type).
			Msg("webhook processing failed")
		obs.PaymentWebhookTotal.WithLabelValues(ev.Type, "error").Inc()
		common.JSONError(rw, http.StatusInternalServerError, "PROCESSING_FAILED", "event processing failed", nil)
		return
	}

	result := "processed"
	if res.Skipped {
		result = "skipped_" + res.Reason
	}
	obs.PaymentWebhookTotal.WithLabelValues(ev.Type, result).Inc()

	// The dedup key is written only after a successful outcome so a failed
	// attempt stays retryable on redelivery.
	w.markSeen(r.Context(), ev.ID)
	w.acknowledge(rw)
}

func (w *Webhook) acknowledge(rw http.ResponseWriter) {
	common.JSON(rw, http.StatusOK, map[string]bool{"received": true})
}

func (w *Webhook) seen(ctx context.Context, eventID string) bool {
	if w.redis == nil || eventID == "" {
		return false
	}
	n, err := w.redis.Exists(ctx, dedupKeyPrefix+eventID).Result()
	if err != nil {
		w.log.Warn().Err(err).Msg("webhook dedup lookup failed")
		return false
	}
	return n > 0
}

func (w *Webhook) markSeen(ctx context.Context, eventID string) {
	if w.redis == nil || eventID == "" {
		return
	}
	if err := w.redis.Set(ctx, dedupKeyPrefix+eventID, "1", w.dedupTTL).Err(); err != nil {
		w.log.Warn().Err(err).Msg("webhook dedup store failed")
	}
}
