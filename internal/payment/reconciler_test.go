package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gildgarde/backend-boutique/internal/order"
	"github.com/gildgarde/backend-boutique/internal/user"
)

type stubGateway struct {
	lines       []LineItem
	expandErr   error
	expandCalls int
}

func (g *stubGateway) VerifyEvent([]byte, string) (Event, error) {
	return Event{}, errors.New("not used")
}

func (g *stubGateway) ExpandSession(_ context.Context, _ string) ([]LineItem, error) {
	g.expandCalls++
	return g.lines, g.expandErr
}

func (g *stubGateway) CreateCheckoutSession(context.Context, CheckoutParams) (CheckoutRedirect, error) {
	return CheckoutRedirect{}, errors.New("not used")
}

type stubUsers struct {
	byID      map[string]user.User
	byEmail   map[string]user.User
	idErr     error
	emailErr  error
	idCalls   []string
	mailCalls []string
}

func (s *stubUsers) ByID(_ context.Context, id string) (user.User, error) {
	s.idCalls = append(s.idCalls, id)
	if s.idErr != nil {
		return user.User{}, s.idErr
	}
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return user.User{}, pgx.ErrNoRows
}

func (s *stubUsers) ByEmail(_ context.Context, email string) (user.User, error) {
	s.mailCalls = append(s.mailCalls, email)
	if s.emailErr != nil {
		return user.User{}, s.emailErr
	}
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return user.User{}, pgx.ErrNoRows
}

type stubOrders struct {
	created []order.CreateParams
	err     error
}

func (s *stubOrders) Create(_ context.Context, p order.CreateParams) (order.Order, error) {
	if s.err != nil {
		return order.Order{}, s.err
	}
	s.created = append(s.created, p)
	total := int64(0)
	for _, it := range p.Items {
		total += int64(it.Quantity) * it.UnitPriceMinor
	}
	var o order.Order
	o.ID = "ord_1"
	o.UserID = p.UserID
	o.GuestEmail = p.GuestEmail
	o.CustomerEmail = p.CustomerEmail
	o.StripeSessionID = p.StripeSessionID
	o.TotalMinor = total
	o.Currency = p.Currency
	return o, nil
}

type stubMailer struct {
	sentTo []string
}

func (s *stubMailer) EnqueueOrderConfirmation(_ context.Context, to string, _ order.Order) error {
	s.sentTo = append(s.sentTo, to)
	return nil
}

func newTestReconciler(g Gateway, users UserLookup, orders OrderCreator, mailer ConfirmationMailer) *Reconciler {
	return NewReconciler(g, users, orders, mailer, "unknown@guest.com", "usd", zerolog.Nop())
}

func paidEvent(session CheckoutSession) Event {
	session.PaymentStatus = PaymentStatusPaid
	return Event{ID: "evt_1", Type: EventCheckoutCompleted, Session: session}
}

func TestProcessSkipsUnsupportedEvent(t *testing.T) {
	g := &stubGateway{}
	r := newTestReconciler(g, &stubUsers{}, &stubOrders{}, nil)

	res, err := r.Process(context.Background(), Event{ID: "evt_1", Type: "invoice.paid"})
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Equal(t, "unsupported_event", res.Reason)
	require.Zero(t, g.expandCalls)
}

func TestProcessSkipsUnpaidSession(t *testing.T) {
	g := &stubGateway{}
	orders := &stubOrders{}
	r := newTestReconciler(g, &stubUsers{}, orders, nil)

	ev := Event{ID: "evt_1", Type: EventCheckoutCompleted, Session: CheckoutSession{ID: "cs_1", PaymentStatus: "unpaid"}}
	res, err := r.Process(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Equal(t, "unpaid", res.Reason)
	require.Zero(t, g.expandCalls)
	require.Empty(t, orders.created)
}

func TestProcessAttributesByMetadataUserID(t *testing.T) {
	users := &stubUsers{byID: map[string]user.User{"u-1": {ID: "u-1", Email: "ana@example.com"}}}
	orders := &stubOrders{}
	g := &stubGateway{lines: []LineItem{{ProductName: "Silk Scarf", Quantity: 2, UnitPrice: 5400}}}
	mailer := &stubMailer{}
	r := newTestReconciler(g, users, orders, mailer)

	res, err := r.Process(context.Background(), paidEvent(CheckoutSession{
		ID:            "cs_1",
		CustomerEmail: "someone-else@example.com",
		Metadata:      map[string]string{"userId": "u-1", "userEmail": "other@example.com"},
	}))
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.Equal(t, AttributionUserID, res.Attribution)
	require.Len(t, orders.created, 1)
	require.NotNil(t, orders.created[0].UserID)
	require.Equal(t, "u-1", *orders.created[0].UserID)
	require.Nil(t, orders.created[0].GuestEmail)
	// the account email is stamped onto the order, not the one Stripe collected
	require.Equal(t, "ana@example.com", orders.created[0].CustomerEmail)
	// the ID matched, so no email lookup was needed
	require.Empty(t, users.mailCalls)
	require.Equal(t, []string{"ana@example.com"}, mailer.sentTo)
	require.Equal(t, int64(10800), res.Order.TotalMinor)
}

func TestProcessFallsBackToMetadataEmail(t *testing.T) {
	users := &stubUsers{byEmail: map[string]user.User{"ana@example.com": {ID: "u-1", Email: "ana@example.com"}}}
	orders := &stubOrders{}
	r := newTestReconciler(&stubGateway{}, users, orders, nil)

	res, err := r.Process(context.Background(), paidEvent(CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"userId": "gone", "userEmail": "ana@example.com"},
	}))
	require.NoError(t, err)
	require.Equal(t, AttributionUserEmail, res.Attribution)
	require.Equal(t, []string{"gone"}, users.idCalls)
	require.Equal(t, []string{"ana@example.com"}, users.mailCalls)
}

func TestProcessFallsBackToCustomerEmail(t *testing.T) {
	users := &stubUsers{byEmail: map[string]user.User{"bob@example.com": {ID: "u-2", Email: "bob@example.com"}}}
	orders := &stubOrders{}
	r := newTestReconciler(&stubGateway{}, users, orders, nil)

	res, err := r.Process(context.Background(), paidEvent(CheckoutSession{
		ID:            "cs_1",
		CustomerEmail: "bob@example.com",
		Metadata:      map[string]string{"userEmail": "unknown@example.com"},
	}))
	require.NoError(t, err)
	require.Equal(t, AttributionCustomerEmail, res.Attribution)
	require.Len(t, orders.created, 1)
	require.Equal(t, "u-2", *orders.created[0].UserID)
}

func TestProcessGuestAttribution(t *testing.T) {
	tests := []struct {
		name      string
		session   CheckoutSession
		wantEmail string
	}{
		{
			name:      "prefers collected email",
			session:   CheckoutSession{ID: "cs_1", CustomerEmail: "guest@example.com", Metadata: map[string]string{"userEmail": "meta@example.com"}},
			wantEmail: "guest@example.com",
		},
		{
			name:      "falls back to metadata email",
			session:   CheckoutSession{ID: "cs_2", Metadata: map[string]string{"userEmail": "meta@example.com"}},
			wantEmail: "meta@example.com",
		},
		{
			name:      "configured fallback when nothing known",
			session:   CheckoutSession{ID: "cs_3", Metadata: map[string]string{}},
			wantEmail: "unknown@guest.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &stubOrders{}
			mailer := &stubMailer{}
			r := newTestReconciler(&stubGateway{}, &stubUsers{}, orders, mailer)

			res, err := r.Process(context.Background(), paidEvent(tt.session))
			require.NoError(t, err)
			require.Equal(t, AttributionGuest, res.Attribution)
			require.Len(t, orders.created, 1)
			require.Nil(t, orders.created[0].UserID)
			require.NotNil(t, orders.created[0].GuestEmail)
			require.Equal(t, tt.wantEmail, *orders.created[0].GuestEmail)
			require.Equal(t, tt.wantEmail, orders.created[0].CustomerEmail)
			if tt.wantEmail == "unknown@guest.com" {
				require.Empty(t, mailer.sentTo)
			} else {
				require.Equal(t, []string{tt.wantEmail}, mailer.sentTo)
			}
		})
	}
}

func TestProcessLookupErrorAborts(t *testing.T) {
	users := &stubUsers{idErr: errors.New("connection refused")}
	orders := &stubOrders{}
	r := newTestReconciler(&stubGateway{}, users, orders, nil)

	_, err := r.Process(context.Background(), paidEvent(CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"userId": "u-1"},
	}))
	require.Error(t, err)
	// a transient failure must never be mistaken for a guest purchase
	require.Empty(t, orders.created)
}

func TestProcessDuplicateSessionIsSkip(t *testing.T) {
	orders := &stubOrders{err: order.ErrDuplicateSession}
	r := newTestReconciler(&stubGateway{}, &stubUsers{}, orders, nil)

	res, err := r.Process(context.Background(), paidEvent(CheckoutSession{ID: "cs_1", Metadata: map[string]string{}}))
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Equal(t, "duplicate_session", res.Reason)
}

func TestProcessExpandFailurePropagates(t *testing.T) {
	g := &stubGateway{expandErr: errors.New("stripe down")}
	orders := &stubOrders{}
	r := newTestReconciler(g, &stubUsers{}, orders, nil)

	_, err := r.Process(context.Background(), paidEvent(CheckoutSession{ID: "cs_1", Metadata: map[string]string{}}))
	require.Error(t, err)
	require.Empty(t, orders.created)
}
