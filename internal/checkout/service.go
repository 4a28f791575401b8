package checkout

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gildgarde/backend-boutique/internal/catalog"
	"github.com/gildgarde/backend-boutique/internal/common"
	"github.com/gildgarde/backend-boutique/internal/obs"
	"github.com/gildgarde/backend-boutique/internal/payment"
)

// ProductLookup resolves cart slugs to catalog entries.
type ProductLookup interface {
	ListProductsBySlugs(ctx context.Context, slugs []string) ([]catalog.Product, error)
}

// CartItem is one entry of a checkout request. Quantities are capped so a
// single session cannot request an absurd amount of stock.
type CartItem struct {
	Slug     string `json:"slug" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=99"`
}

// Request is the POST body for session creation.
type Request struct {
	Items []CartItem `json:"items" validate:"required,min=1,max=50,dive"`
}

// Service creates Stripe checkout sessions from storefront carts. Prices come
// from the catalog, never from the client.
type Service struct {
	products   ProductLookup
	gateway    payment.Gateway
	successURL string
	cancelURL  string
	currency   string
	log        zerolog.Logger
	validate   *validator.Validate
}

func NewService(products ProductLookup, gateway payment.Gateway, successURL, cancelURL, currency string, log zerolog.Logger) *Service {
	return &Service{
		products:   products,
		gateway:    gateway,
		successURL: successURL,
		cancelURL:  cancelURL,
		currency:   currency,
		log:        log,
		validate:   validator.New(),
	}
}

// CreateSession validates the cart, reprices it from the catalog, and opens a
// Stripe-hosted checkout. When the caller is authenticated, identity travels
// on the session metadata so the webhook can attribute the order.
func (s *Service) CreateSession(ctx context.Context, req Request) (payment.CheckoutRedirect, error) {
	if err := s.validate.Struct(req); err != nil {
		return payment.CheckoutRedirect{}, common.NewAppError("VALIDATION_ERROR", "invalid checkout request", http.StatusBadRequest, err)
	}

	quantities := make(map[string]int, len(req.Items))
	slugs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		slug := strings.TrimSpace(item.Slug)
		if _, dup := quantities[slug]; !dup {
			slugs = append(slugs, slug)
		}
		quantities[slug] += item.Quantity
	}

	products, err := s.products.ListProductsBySlugs(ctx, slugs)
	if err != nil {
		obs.CheckoutSessionsTotal.WithLabelValues("error").Inc()
		return payment.CheckoutRedirect{}, fmt.Errorf("load products: %w", err)
	}
	bySlug := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		bySlug[p.Slug] = p
	}

	items := make([]payment.CheckoutItem, 0, len(slugs))
	for _, slug := range slugs {
		p, ok := bySlug[slug]
		if !ok {
			obs.CheckoutSessionsTotal.WithLabelValues("unknown_product").Inc()
			return payment.CheckoutRedirect{}, common.NewAppError("UNKNOWN_PRODUCT", fmt.Sprintf("no product with slug %q", slug), http.StatusBadRequest, nil)
		}
		items = append(items, payment.CheckoutItem{
			Name:      p.Title,
			ImageURL:  p.Image,
			UnitPrice: p.Price,
			Quantity:  quantities[slug],
		})
	}

	params := payment.CheckoutParams{
		Items:      items,
		Currency:   s.currency,
		Metadata:   map[string]string{},
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	}
	if id, ok := common.UserID(ctx); ok {
		params.Metadata["userId"] = id
	}
	if email, ok := common.UserEmail(ctx); ok {
		params.Metadata["userEmail"] = email
		params.CustomerEmail = email
	}

	redirect, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		obs.CheckoutSessionsTotal.WithLabelValues("error").Inc()
		return payment.CheckoutRedirect{}, fmt.Errorf("create checkout session: %w", err)
	}
	obs.CheckoutSessionsTotal.WithLabelValues("created").Inc()
	s.log.Info().Str("session_id", redirect.SessionID).Int("items", len(items)).Msg("checkout session created")
	return redirect, nil
}
