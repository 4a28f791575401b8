package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gildgarde/backend-boutique/internal/pricing"
)

// ErrDuplicateSession indicates an order for the Stripe session already exists.
// Creation is idempotent per session, so callers treat this as success.
var ErrDuplicateSession = errors.New("order: stripe session already materialized")

// StatusCompleted is the only status a materialized order carries today.
const StatusCompleted = "completed"

// Order is a finalized purchase attributed to a user or a guest email.
// CustomerEmail is captured at purchase time so a later account email change
// does not rewrite order history.
type Order struct {
	ID              string        `json:"id"`
	UserID          *string       `json:"user_id,omitempty"`
	GuestEmail      *string       `json:"guest_email,omitempty"`
	CustomerEmail   string        `json:"customer_email"`
	StripeSessionID string        `json:"-"`
	TotalMinor      pricing.Money `json:"-"`
	Currency        string        `json:"currency"`
	Status          string        `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	Items           []Item        `json:"items,omitempty"`
}

// Item is one purchased line within an order. The product name and price are
// captured at purchase time so later catalog edits do not rewrite history.
type Item struct {
	ID             string        `json:"id"`
	ProductName    string        `json:"product_name"`
	Quantity       int           `json:"quantity"`
	UnitPriceMinor pricing.Money `json:"-"`
}

// ItemParams describes a line to persist.
type ItemParams struct {
	ProductName    string
	Quantity       int
	UnitPriceMinor pricing.Money
}

// CreateParams describes an order to materialize. Exactly one of UserID and
// GuestEmail must be set; the database check enforces the same. CustomerEmail
// is the address the purchase resolved to, regardless of attribution.
type CreateParams struct {
	UserID          *string
	GuestEmail      *string
	CustomerEmail   string
	StripeSessionID string
	Currency        string
	Items           []ItemParams
}

// Store persists orders.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{Pool: pool} }

// Create inserts the order and its items atomically. The unique constraint on
// stripe_session_id is the idempotency guarantee: a second insert for the same
// session fails with ErrDuplicateSession and leaves the first order untouched.
func (s *Store) Create(ctx context.Context, p CreateParams) (Order, error) {
	lines := make([]pricing.Item, 0, len(p.Items))
	for _, it := range p.Items {
		lines = append(lines, pricing.Item{Qty: it.Quantity, UnitPrice: it.UnitPriceMinor})
	}
	total := pricing.Total(lines)

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var o Order
	row := tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, guest_email, customer_email, stripe_session_id, total_minor, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		p.UserID, p.GuestEmail, p.CustomerEmail, p.StripeSessionID, total, p.Currency, StatusCompleted)
	var id pgtype.UUID
	var createdAt pgtype.Timestamptz
	if err := row.Scan(&id, &createdAt); err != nil {
		if isUniqueViolation(err) {
			return Order{}, ErrDuplicateSession
		}
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	o = Order{
		ID:              uuidString(id),
		UserID:          p.UserID,
		GuestEmail:      p.GuestEmail,
		CustomerEmail:   p.CustomerEmail,
		StripeSessionID: p.StripeSessionID,
		TotalMinor:      total,
		Currency:        p.Currency,
		Status:          StatusCompleted,
		CreatedAt:       createdAt.Time,
	}

	for _, it := range p.Items {
		var itemID pgtype.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_name, quantity, unit_price_minor)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			o.ID, it.ProductName, it.Quantity, it.UnitPriceMinor).Scan(&itemID)
		if err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
		o.Items = append(o.Items, Item{
			ID:             uuidString(itemID),
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			UnitPriceMinor: it.UnitPriceMinor,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}

// isUniqueViolation reports whether err is a unique constraint violation. The
// only unique constraint hit by inserts is stripe_session_id.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ListByUser returns the user's orders newest first, items included.
func (s *Store) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, guest_email, customer_email, stripe_session_id, total_minor, currency, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	for i := range orders {
		items, err := s.itemsFor(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// GetForUser returns one order, scoped to its owner. pgx.ErrNoRows when the
// order does not exist or belongs to someone else.
func (s *Store) GetForUser(ctx context.Context, orderID, userID string) (Order, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, guest_email, customer_email, stripe_session_id, total_minor, currency, status, created_at
		FROM orders
		WHERE id = $1 AND user_id = $2`, orderID, userID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, pgx.ErrNoRows
		}
		return Order{}, err
	}
	o.Items, err = s.itemsFor(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *Store) itemsFor(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_name, quantity, unit_price_minor
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		var id pgtype.UUID
		if err := rows.Scan(&id, &it.ProductName, &it.Quantity, &it.UnitPriceMinor); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.ID = uuidString(id)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var id pgtype.UUID
	var userID pgtype.UUID
	var guestEmail pgtype.Text
	var createdAt pgtype.Timestamptz
	err := row.Scan(&id, &userID, &guestEmail, &o.CustomerEmail, &o.StripeSessionID, &o.TotalMinor, &o.Currency, &o.Status, &createdAt)
	if err != nil {
		return Order{}, err
	}
	o.ID = uuidString(id)
	if userID.Valid {
		v := uuidString(userID)
		o.UserID = &v
	}
	if guestEmail.Valid {
		v := guestEmail.String
		o.GuestEmail = &v
	}
	o.CreatedAt = createdAt.Time
	return o, nil
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
