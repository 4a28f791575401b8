package checkout

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gildgarde/backend-boutique/internal/catalog"
	"github.com/gildgarde/backend-boutique/internal/common"
	"github.com/gildgarde/backend-boutique/internal/obs"
	"github.com/gildgarde/backend-boutique/internal/payment"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	os.Exit(m.Run())
}

type stubProducts struct {
	products []catalog.Product
	err      error
}

func (s *stubProducts) ListProductsBySlugs(context.Context, []string) ([]catalog.Product, error) {
	return s.products, s.err
}

type stubGateway struct {
	lastParams payment.CheckoutParams
	redirect   payment.CheckoutRedirect
	err        error
}

func (s *stubGateway) VerifyEvent([]byte, string) (payment.Event, error) {
	return payment.Event{}, errors.New("not used")
}

func (s *stubGateway) ExpandSession(context.Context, string) ([]payment.LineItem, error) {
	return nil, errors.New("not used")
}

func (s *stubGateway) CreateCheckoutSession(_ context.Context, p payment.CheckoutParams) (payment.CheckoutRedirect, error) {
	s.lastParams = p
	return s.redirect, s.err
}

func newTestService(products *stubProducts, gateway *stubGateway) *Service {
	return NewService(products, gateway, "https://shop.test/success", "https://shop.test/cancel", "usd", zerolog.Nop())
}

func TestCreateSessionRepricesFromCatalog(t *testing.T) {
	products := &stubProducts{products: []catalog.Product{
		{Slug: "silk-scarf", Title: "Silk Scarf", Price: 5400, Image: "/images/silk-scarf.jpg"},
	}}
	gateway := &stubGateway{redirect: payment.CheckoutRedirect{SessionID: "cs_1", URL: "https://stripe.test/cs_1"}}
	svc := newTestService(products, gateway)

	redirect, err := svc.CreateSession(context.Background(), Request{Items: []CartItem{{Slug: "silk-scarf", Quantity: 2}}})
	require.NoError(t, err)
	require.Equal(t, "cs_1", redirect.SessionID)
	require.Len(t, gateway.lastParams.Items, 1)
	require.Equal(t, int64(5400), gateway.lastParams.Items[0].UnitPrice)
	require.Equal(t, 2, gateway.lastParams.Items[0].Quantity)
	require.Equal(t, "Silk Scarf", gateway.lastParams.Items[0].Name)
	require.Equal(t, "https://shop.test/success", gateway.lastParams.SuccessURL)
}

func TestCreateSessionMergesDuplicateSlugs(t *testing.T) {
	products := &stubProducts{products: []catalog.Product{{Slug: "leather-belt", Title: "Leather Belt", Price: 4900}}}
	gateway := &stubGateway{}
	svc := newTestService(products, gateway)

	_, err := svc.CreateSession(context.Background(), Request{Items: []CartItem{
		{Slug: "leather-belt", Quantity: 1},
		{Slug: "leather-belt", Quantity: 2},
	}})
	require.NoError(t, err)
	require.Len(t, gateway.lastParams.Items, 1)
	require.Equal(t, 3, gateway.lastParams.Items[0].Quantity)
}

func TestCreateSessionUnknownSlug(t *testing.T) {
	svc := newTestService(&stubProducts{}, &stubGateway{})

	_, err := svc.CreateSession(context.Background(), Request{Items: []CartItem{{Slug: "ghost", Quantity: 1}}})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNKNOWN_PRODUCT", appErr.Code)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestCreateSessionValidation(t *testing.T) {
	svc := newTestService(&stubProducts{}, &stubGateway{})

	cases := []Request{
		{},
		{Items: []CartItem{{Slug: "x", Quantity: 0}}},
		{Items: []CartItem{{Slug: "", Quantity: 1}}},
	}
	for _, req := range cases {
		_, err := svc.CreateSession(context.Background(), req)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	}
}

func TestCreateSessionCarriesIdentityMetadata(t *testing.T) {
	products := &stubProducts{products: []catalog.Product{{Slug: "silk-scarf", Title: "Silk Scarf", Price: 5400}}}
	gateway := &stubGateway{}
	svc := newTestService(products, gateway)

	ctx := common.WithUser(context.Background(), "u-1", "ana@example.com")
	_, err := svc.CreateSession(ctx, Request{Items: []CartItem{{Slug: "silk-scarf", Quantity: 1}}})
	require.NoError(t, err)
	require.Equal(t, "u-1", gateway.lastParams.Metadata["userId"])
	require.Equal(t, "ana@example.com", gateway.lastParams.Metadata["userEmail"])
	require.Equal(t, "ana@example.com", gateway.lastParams.CustomerEmail)
}

func TestCreateSessionAnonymousHasNoIdentity(t *testing.T) {
	products := &stubProducts{products: []catalog.Product{{Slug: "silk-scarf", Title: "Silk Scarf", Price: 5400}}}
	gateway := &stubGateway{}
	svc := newTestService(products, gateway)

	_, err := svc.CreateSession(context.Background(), Request{Items: []CartItem{{Slug: "silk-scarf", Quantity: 1}}})
	require.NoError(t, err)
	require.Empty(t, gateway.lastParams.Metadata)
	require.Empty(t, gateway.lastParams.CustomerEmail)
}
