package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/gildgarde/backend-boutique/internal/obs"
	"github.com/gildgarde/backend-boutique/internal/order"
	"github.com/gildgarde/backend-boutique/internal/user"
)

// UserLookup resolves accounts during attribution. Absent accounts surface as
// pgx.ErrNoRows; any other error aborts reconciliation.
type UserLookup interface {
	ByID(ctx context.Context, id string) (user.User, error)
	ByEmail(ctx context.Context, email string) (user.User, error)
}

// OrderCreator materializes orders. Create returns order.ErrDuplicateSession
// when the session was already materialized.
type OrderCreator interface {
	Create(ctx context.Context, p order.CreateParams) (order.Order, error)
}

// ConfirmationMailer queues the order confirmation email. Delivery is best
// effort; a queue failure never fails the reconcile.
type ConfirmationMailer interface {
	EnqueueOrderConfirmation(ctx context.Context, to string, o order.Order) error
}

// Attribution labels describing which identity source won.
const (
	AttributionUserID        = "metadata_user_id"
	AttributionUserEmail     = "metadata_user_email"
	AttributionCustomerEmail = "customer_email"
	AttributionGuest         = "guest"
)

// Result reports the outcome of processing one event.
type Result struct {
	// Skipped is true when the event required no action (wrong type, unpaid
	// session, or an already materialized session).
	Skipped bool
	// Reason explains a skip.
	Reason string
	// Attribution names the identity source used for a materialized order.
	Attribution string
	Order       order.Order
}

// Reconciler turns verified checkout events into orders.
type Reconciler struct {
	gateway       Gateway
	users         UserLookup
	orders        OrderCreator
	mailer        ConfirmationMailer
	guestFallback string
	currency      string
	log           zerolog.Logger
}

// NewReconciler wires the reconciler. mailer may be nil when confirmation
// emails are disabled.
func NewReconciler(gateway Gateway, users UserLookup, orders OrderCreator, mailer ConfirmationMailer, guestFallbackEmail, currency string, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		gateway:       gateway,
		users:         users,
		orders:        orders,
		mailer:        mailer,
		guestFallback: guestFallbackEmail,
		currency:      currency,
		log:           log,
	}
}

// Process classifies the event, resolves who paid, and materializes the order.
// It is safe to call with redelivered events: the session-level unique
// constraint collapses replays into a skip.
func (r *Reconciler) Process(ctx context.Context, ev Event) (Result, error) {
	if ev.Type != EventCheckoutCompleted {
		return Result{Skipped: true, Reason: "unsupported_event"}, nil
	}
	session := ev.Session
	if session.ID == "" {
		return Result{}, fmt.Errorf("event %s carries no session", ev.ID)
	}
	if !session.Paid() {
		r.log.Info().Str("session_id", session.ID).Str("payment_status", session.PaymentStatus).
			Msg("checkout session not paid, skipping")
		return Result{Skipped: true, Reason: "unpaid"}, nil
	}

	identity, err := r.resolveIdentity(ctx, session)
	if err != nil {
		return Result{}, err
	}

	lines, err := r.gateway.ExpandSession(ctx, session.ID)
	if err != nil {
		return Result{}, fmt.Errorf("expand session: %w", err)
	}
	items := make([]order.ItemParams, 0, len(lines))
	for _, li := range lines {
		items = append(items, order.ItemParams{
			ProductName:    li.ProductName,
			Quantity:       li.Quantity,
			UnitPriceMinor: li.UnitPrice,
		})
	}

	o, err := r.orders.Create(ctx, order.CreateParams{
		UserID:          identity.userID,
		GuestEmail:      identity.guestEmail,
		CustomerEmail:   identity.displayEmail(),
		StripeSessionID: session.ID,
		Currency:        r.currency,
		Items:           items,
	})
	if err != nil {
		if errors.Is(err, order.ErrDuplicateSession) {
			r.log.Info().Str("session_id", session.ID).Msg("session already materialized")
			return Result{Skipped: true, Reason: "duplicate_session"}, nil
		}
		return Result{}, fmt.Errorf("materialize order: %w", err)
	}
	obs.OrdersReconciledTotal.WithLabelValues(identity.attribution).Inc()

	r.notify(ctx, identity, o)

	r.log.Info().
		Str("session_id", session.ID).
		Str("order_id", o.ID).
		Str("attribution", identity.attribution).
		Int64("total_minor", o.TotalMinor).
		Msg("order reconciled")
	return Result{Attribution: identity.attribution, Order: o}, nil
}

type resolvedIdentity struct {
	userID      *string
	userEmail   string
	guestEmail  *string
	attribution string
}

// displayEmail is the address stamped onto the order record. Registered users
// contribute their account email as resolved at purchase time; guests the
// address the attribution chain settled on.
func (id resolvedIdentity) displayEmail() string {
	if id.userEmail != "" {
		return id.userEmail
	}
	if id.guestEmail != nil {
		return *id.guestEmail
	}
	return ""
}

// resolveIdentity walks the attribution chain in order. A miss moves to the
// next attempt; a lookup failure aborts so a flaky database never turns a
// registered customer into a guest.
func (r *Reconciler) resolveIdentity(ctx context.Context, session CheckoutSession) (resolvedIdentity, error) {
	type attempt struct {
		attribution string
		lookup      func(context.Context) (user.User, error)
	}
	var attempts []attempt
	if id := strings.TrimSpace(session.Metadata["userId"]); id != "" {
		attempts = append(attempts, attempt{AttributionUserID, func(ctx context.Context) (user.User, error) {
			return r.users.ByID(ctx, id)
		}})
	}
	if email := strings.TrimSpace(session.Metadata["userEmail"]); email != "" {
		attempts = append(attempts, attempt{AttributionUserEmail, func(ctx context.Context) (user.User, error) {
			return r.users.ByEmail(ctx, email)
		}})
	}
	if email := strings.TrimSpace(session.CustomerEmail); email != "" {
		attempts = append(attempts, attempt{AttributionCustomerEmail, func(ctx context.Context) (user.User, error) {
			return r.users.ByEmail(ctx, email)
		}})
	}

	for _, a := range attempts {
		u, err := a.lookup(ctx)
		if err == nil {
			id := u.ID
			return resolvedIdentity{userID: &id, userEmail: u.Email, attribution: a.attribution}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return resolvedIdentity{}, fmt.Errorf("resolve identity (%s): %w", a.attribution, err)
		}
	}

	email := r.guestEmail(session)
	return resolvedIdentity{guestEmail: &email, attribution: AttributionGuest}, nil
}

// guestEmail prefers the address Stripe collected, then the address the
// storefront passed along, then the configured fallback.
func (r *Reconciler) guestEmail(session CheckoutSession) string {
	if email := strings.TrimSpace(session.CustomerEmail); email != "" {
		return email
	}
	if email := strings.TrimSpace(session.Metadata["userEmail"]); email != "" {
		return email
	}
	return r.guestFallback
}

func (r *Reconciler) notify(ctx context.Context, identity resolvedIdentity, o order.Order) {
	if r.mailer == nil {
		return
	}
	to := identity.displayEmail()
	if to == "" || to == r.guestFallback {
		return
	}
	if err := r.mailer.EnqueueOrderConfirmation(ctx, to, o); err != nil {
		r.log.Warn().Err(err).Str("order_id", o.ID).Msg("enqueue order confirmation failed")
	}
}
