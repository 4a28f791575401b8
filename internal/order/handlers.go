package order

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/gildgarde/backend-boutique/internal/common"
	"github.com/gildgarde/backend-boutique/internal/pricing"
)

// Reader is the query surface the handlers need from the store.
type Reader interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	GetForUser(ctx context.Context, orderID, userID string) (Order, error)
}

// Handler exposes the authenticated order history endpoints.
type Handler struct {
	Orders Reader
}

// orderView is the API shape of an order. Amounts leave the service in major
// units; minor units stay an internal representation.
type orderView struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	CustomerEmail string     `json:"customer_email"`
	Currency      string     `json:"currency"`
	Total         float64    `json:"total"`
	CreatedAt     time.Time  `json:"created_at"`
	Items         []itemView `json:"items"`
}

type itemView struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	orders, err := h.Orders.ListByUser(r.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toView(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": views,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(views)},
	})
}

// Detail handles GET /api/v1/orders/{id}.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	o, err := h.Orders.GetForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toView(o)})
}

func toView(o Order) orderView {
	items := make([]itemView, 0, len(o.Items))
	for _, it := range o.Items {
		line := pricing.LineTotal(pricing.Item{Qty: it.Quantity, UnitPrice: it.UnitPriceMinor})
		items = append(items, itemView{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   pricing.MajorUnits(it.UnitPriceMinor),
			LineTotal:   pricing.MajorUnits(line),
		})
	}
	return orderView{
		ID:            o.ID,
		Status:        o.Status,
		CustomerEmail: o.CustomerEmail,
		Currency:      o.Currency,
		Total:         pricing.MajorUnits(o.TotalMinor),
		CreatedAt:     o.CreatedAt,
		Items:         items,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
}
