package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/gildgarde/backend-boutique/internal/common"
	"github.com/gildgarde/backend-boutique/internal/obs"
)

// Worker consumes email tasks and hands them to the configured sender.
type Worker struct {
	sender common.EmailSender
	log    zerolog.Logger
}

func NewWorker(sender common.EmailSender, log zerolog.Logger) *Worker {
	return &Worker{sender: sender, log: log}
}

// Register attaches the worker's handlers to the mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeVerificationEmail, w.HandleVerificationEmail)
	mux.HandleFunc(TypeOrderConfirmation, w.HandleOrderConfirmation)
}

// HandleVerificationEmail delivers the account verification email.
func (w *Worker) HandleVerificationEmail(ctx context.Context, task *asynq.Task) error {
	var p VerificationEmailPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		obs.EmailTasksTotal.WithLabelValues("verification", "bad_payload").Inc()
		return fmt.Errorf("decode verification payload: %w: %w", err, asynq.SkipRetry)
	}
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Confirm your email address by following <a href=%q>this link</a>.</p>",
		p.Name, p.Link)
	if err := w.sender.Send(p.To, "Confirm your email", body); err != nil {
		obs.EmailTasksTotal.WithLabelValues("verification", "send_error").Inc()
		return fmt.Errorf("send verification email: %w", err)
	}
	obs.EmailTasksTotal.WithLabelValues("verification", "sent").Inc()
	w.log.Info().Str("to", p.To).Msg("verification email sent")
	return nil
}

// HandleOrderConfirmation delivers the purchase confirmation email.
func (w *Worker) HandleOrderConfirmation(ctx context.Context, task *asynq.Task) error {
	var p OrderConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		obs.EmailTasksTotal.WithLabelValues("order_confirmation", "bad_payload").Inc()
		return fmt.Errorf("decode confirmation payload: %w: %w", err, asynq.SkipRetry)
	}
	var lines strings.Builder
	for _, it := range p.Items {
		fmt.Fprintf(&lines, "<li>%d x %s (%.2f %s)</li>", it.Quantity, it.ProductName, it.UnitPrice, strings.ToUpper(p.Currency))
	}
	body := fmt.Sprintf(
		"<p>Thanks for your purchase!</p><ul>%s</ul><p>Order %s, total %.2f %s.</p>",
		lines.String(), p.OrderID, p.Total, strings.ToUpper(p.Currency))
	if err := w.sender.Send(p.To, "Your order confirmation", body); err != nil {
		obs.EmailTasksTotal.WithLabelValues("order_confirmation", "send_error").Inc()
		return fmt.Errorf("send confirmation email: %w", err)
	}
	obs.EmailTasksTotal.WithLabelValues("order_confirmation", "sent").Inc()
	w.log.Info().Str("to", p.To).Str("order_id", p.OrderID).Msg("order confirmation sent")
	return nil
}
