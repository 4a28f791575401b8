package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StripeGateway implements Gateway over the Stripe SDK.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway constructs a gateway with its own API client. The HTTP
// transport is instrumented so outbound Stripe calls appear in traces.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(httpClient))
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// VerifyEvent authenticates the payload and normalises it into an Event.
func (g *StripeGateway) VerifyEvent(payload []byte, sigHeader string) (Event, error) {
	if strings.TrimSpace(sigHeader) == "" {
		return Event{}, ErrMissingSignature
	}
	ev, err := webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}
	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type == EventCheckoutCompleted {
		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
			return Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Session = normaliseSession(&session)
	}
	return out, nil
}

// ExpandSession retrieves the session with line items and product names expanded.
func (g *StripeGateway) ExpandSession(ctx context.Context, sessionID string) ([]LineItem, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price.product")
	session, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve session %s: %w", sessionID, err)
	}
	if session.LineItems == nil {
		return []LineItem{}, nil
	}
	items := make([]LineItem, 0, len(session.LineItems.Data))
	for _, li := range session.LineItems.Data {
		item := LineItem{Quantity: int(li.Quantity)}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if li.Price != nil {
			item.UnitPrice = li.Price.UnitAmount
			if li.Price.Product != nil {
				item.ProductName = li.Price.Product.Name
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// CreateCheckoutSession opens a Stripe-hosted checkout page.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutRedirect, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.Items))
	for _, item := range p.Items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(p.Currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.UnitPrice),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
		LineItems:                lineItems,
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		SuccessURL:               stripe.String(p.SuccessURL),
		CancelURL:                stripe.String(p.CancelURL),
	}
	params.Context = ctx
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutRedirect{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutRedirect{SessionID: session.ID, URL: session.URL}, nil
}

func normaliseSession(s *stripe.CheckoutSession) CheckoutSession {
	email := s.CustomerEmail
	if email == "" && s.CustomerDetails != nil {
		email = s.CustomerDetails.Email
	}
	meta := s.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	return CheckoutSession{
		ID:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
		CustomerEmail: email,
		Metadata:      meta,
	}
}
