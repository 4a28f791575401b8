package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/gildgarde/backend-boutique/internal/obs"
	"github.com/gildgarde/backend-boutique/internal/order"
)

// Enqueuer publishes email tasks onto the Redis-backed queue. It satisfies
// both the auth verification mailer and the payment confirmation mailer.
type Enqueuer struct {
	client *asynq.Client
	log    zerolog.Logger
}

func NewEnqueuer(client *asynq.Client, log zerolog.Logger) *Enqueuer {
	return &Enqueuer{client: client, log: log}
}

// EnqueueVerificationEmail queues the account verification email.
func (e *Enqueuer) EnqueueVerificationEmail(ctx context.Context, to, name, link string) error {
	task, err := NewVerificationEmailTask(to, name, link)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, "verification")
}

// EnqueueOrderConfirmation queues the purchase confirmation email.
func (e *Enqueuer) EnqueueOrderConfirmation(ctx context.Context, to string, o order.Order) error {
	task, err := NewOrderConfirmationTask(to, o)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, "order_confirmation")
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task, kind string) error {
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		obs.EmailTasksTotal.WithLabelValues(kind, "enqueue_error").Inc()
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	obs.EmailTasksTotal.WithLabelValues(kind, "enqueued").Inc()
	e.log.Debug().Str("task_id", info.ID).Str("type", task.Type()).Msg("task enqueued")
	return nil
}
