package handlers

import (
	"net/http"

	orderApp "github.com/cassiomorais/storepay/internal/application/order"
	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/interfaces/http/dto"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrderHandler handles order HTTP requests.
type OrderHandler struct {
	createUC *orderApp.CreateOrderUseCase
	getUC    *orderApp.GetOrderUseCase
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(createUC *orderApp.CreateOrderUseCase, getUC *orderApp.GetOrderUseCase) *OrderHandler {
	return &OrderHandler{createUC: createUC, getUC: getUC}
}

// Create handles POST /api/orders. Orders whose payment could not be
// confirmed yet are answered with 202.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	o, err := h.createUC.Execute(r.Context(), orderApp.CreateOrderRequest{
		UserID:      req.UserID,
		Name:        req.Name,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if o.Status == order.StatusPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, dto.OrderResponseFromDomain(o))
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Status: "error", Error: "invalid order id", Code: "invalid_id"})
		return
	}

	o, err := h.getUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OrderResponseFromDomain(o))
}
