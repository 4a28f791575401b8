package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gildgarde/backend-boutique/internal/order"
	"github.com/gildgarde/backend-boutique/internal/pricing"
)

// Task type names shared between the API enqueuer and the worker.
const (
	TypeVerificationEmail = "email:verification"
	TypeOrderConfirmation = "email:order_confirmation"
)

// VerificationEmailPayload carries the data for an account verification email.
type VerificationEmailPayload struct {
	To   string `json:"to"`
	Name string `json:"name"`
	Link string `json:"link"`
}

// OrderConfirmationPayload carries the data for a purchase confirmation email.
// Amounts are major units because the payload feeds a human-facing template.
type OrderConfirmationPayload struct {
	To       string                  `json:"to"`
	OrderID  string                  `json:"order_id"`
	Total    float64                 `json:"total"`
	Currency string                  `json:"currency"`
	Items    []OrderConfirmationItem `json:"items"`
}

type OrderConfirmationItem struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// NewVerificationEmailTask builds a verification email task.
func NewVerificationEmailTask(to, name, link string) (*asynq.Task, error) {
	payload, err := json.Marshal(VerificationEmailPayload{To: to, Name: name, Link: link})
	if err != nil {
		return nil, fmt.Errorf("marshal verification payload: %w", err)
	}
	return asynq.NewTask(TypeVerificationEmail, payload,
		asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// NewOrderConfirmationTask builds a confirmation email task from an order.
func NewOrderConfirmationTask(to string, o order.Order) (*asynq.Task, error) {
	items := make([]OrderConfirmationItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderConfirmationItem{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   pricing.MajorUnits(it.UnitPriceMinor),
		})
	}
	payload, err := json.Marshal(OrderConfirmationPayload{
		To:       to,
		OrderID:  o.ID,
		Total:    pricing.MajorUnits(o.TotalMinor),
		Currency: o.Currency,
		Items:    items,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal confirmation payload: %w", err)
	}
	return asynq.NewTask(TypeOrderConfirmation, payload,
		asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}
