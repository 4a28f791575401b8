package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/gildgarde/backend-boutique/internal/common"
)

type stubReader struct {
	orders []Order
	err    error
}

func (s *stubReader) ListByUser(context.Context, string, int, int) ([]Order, error) {
	return s.orders, s.err
}

func (s *stubReader) GetForUser(_ context.Context, orderID, _ string) (Order, error) {
	if s.err != nil {
		return Order{}, s.err
	}
	for _, o := range s.orders {
		if o.ID == orderID {
			return o, nil
		}
	}
	return Order{}, pgx.ErrNoRows
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(common.WithUser(req.Context(), "u-1", "ana@example.com"))
}

func TestListRequiresAuth(t *testing.T) {
	h := &Handler{Orders: &stubReader{}}
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListConvertsToMajorUnits(t *testing.T) {
	uid := "u-1"
	h := &Handler{Orders: &stubReader{orders: []Order{{
		ID:            "ord-1",
		UserID:        &uid,
		CustomerEmail: "ana@example.com",
		TotalMinor:    14900,
		Currency:      "usd",
		Status:        StatusCompleted,
		CreatedAt:     time.Now(),
		Items: []Item{
			{ProductName: "Classic Leather Tote", Quantity: 1, UnitPriceMinor: 14900},
		},
	}}}}

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/v1/orders"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			ID            string  `json:"id"`
			Status        string  `json:"status"`
			CustomerEmail string  `json:"customer_email"`
			Total         float64 `json:"total"`
			Items         []struct {
				UnitPrice float64 `json:"unit_price"`
				LineTotal float64 `json:"line_total"`
			} `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "completed", body.Data[0].Status)
	require.Equal(t, "ana@example.com", body.Data[0].CustomerEmail)
	require.Equal(t, 149.0, body.Data[0].Total)
	require.Equal(t, 149.0, body.Data[0].Items[0].UnitPrice)
	require.Equal(t, 149.0, body.Data[0].Items[0].LineTotal)
}

func TestDetailNotFound(t *testing.T) {
	h := &Handler{Orders: &stubReader{}}

	req := authedRequest(http.MethodGet, "/api/v1/orders/ord-missing")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "ord-missing")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.Detail(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
