package payment

import (
	"context"
	"errors"

	"github.com/gildgarde/backend-boutique/internal/pricing"
)

// Event types and session states this pipeline cares about.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	PaymentStatusPaid      = "paid"
)

var (
	// ErrMissingSignature indicates the signature header was absent from the request.
	ErrMissingSignature = errors.New("payment: missing stripe signature")
	// ErrSignatureVerification indicates the payload could not be authenticated.
	ErrSignatureVerification = errors.New("payment: signature verification failed")
)

// Event is the verified envelope received from the payment provider.
type Event struct {
	ID      string
	Type    string
	Session CheckoutSession
}

// CheckoutSession is the provider's record of a single purchase attempt.
type CheckoutSession struct {
	ID            string
	PaymentStatus string
	CustomerEmail string
	Metadata      map[string]string
}

// Paid reports whether the session authorizes order creation.
func (s CheckoutSession) Paid() bool { return s.PaymentStatus == PaymentStatusPaid }

// LineItem is one purchased product expanded from a session.
type LineItem struct {
	ProductName string
	Quantity    int
	UnitPrice   pricing.Money
}

// CheckoutItem describes one line of a checkout session to be created.
type CheckoutItem struct {
	Name      string
	ImageURL  string
	UnitPrice pricing.Money
	Quantity  int
}

// CheckoutParams captures the inputs for creating a provider checkout session.
type CheckoutParams struct {
	Items         []CheckoutItem
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

// CheckoutRedirect is the provider-hosted payment page for a created session.
type CheckoutRedirect struct {
	SessionID string
	URL       string
}

// Gateway abstracts the operations required from the payment provider.
type Gateway interface {
	// VerifyEvent authenticates the raw request body against the signature
	// header. The body must be the exact bytes received; re-serializing a
	// parsed payload breaks verification.
	VerifyEvent(payload []byte, sigHeader string) (Event, error)
	// ExpandSession fetches the authoritative line-item breakdown for a
	// session. The event payload's items are never trusted.
	ExpandSession(ctx context.Context, sessionID string) ([]LineItem, error)
	// CreateCheckoutSession opens a provider-hosted checkout for the items.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutRedirect, error)
}
