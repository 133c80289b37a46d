package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/climastore/backend/internal/entity"
	"github.com/climastore/backend/internal/service"
)

// Handler exposes the cart and order workflows over HTTP. Authentication is
// out of scope: the identity is taken from headers populated by the auth
// layer in front of this service.
type Handler struct {
	cartSvc     *service.CartService
	checkoutSvc *service.CheckoutService
	orderSvc    *service.OrderService
	reorderSvc  *service.ReorderService
	rates       service.ShippingRates
}

func NewHandler(
	cartSvc *service.CartService,
	checkoutSvc *service.CheckoutService,
	orderSvc *service.OrderService,
	reorderSvc *service.ReorderService,
	rates service.ShippingRates,
) *Handler {
	return &Handler{
		cartSvc:     cartSvc,
		checkoutSvc: checkoutSvc,
		orderSvc:    orderSvc,
		reorderSvc:  reorderSvc,
		rates:       rates,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.handleGetCart)
	mux.HandleFunc("POST /api/cart/items", h.handleAddCartItem)
	mux.HandleFunc("PUT /api/cart/items/{variantID}", h.handleUpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{variantID}", h.handleRemoveCartItem)
	mux.HandleFunc("DELETE /api/cart", h.handleClearCart)
	mux.HandleFunc("POST /api/cart/merge", h.handleMergeCart)
	mux.HandleFunc("POST /api/checkout", h.handleCheckout)
	mux.HandleFunc("GET /api/orders", h.handleGetOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("GET /api/orders/number/{number}", h.handleGetOrderByNumber)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.handleCancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/reorder", h.handleReorder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.handleAdvanceOrder)
	mux.HandleFunc("GET /api/shipping-methods", h.handleGetShippingMethods)
}

// identityFrom reads the requester identity injected by the auth layer.
func identityFrom(r *http.Request) service.Identity {
	return service.Identity{
		UserID:         r.Header.Get("X-User-ID"),
		GuestSessionID: r.Header.Get("X-Guest-Session-ID"),
		IsAdmin:        r.Header.Get("X-Admin") == "true",
	}
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartSvc.Get(r.Context(), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

type addCartItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cart, err := h.cartSvc.AddItem(r.Context(), identityFrom(r), req.VariantID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cart, err := h.cartSvc.UpdateItemQuantity(r.Context(), identityFrom(r), r.PathValue("variantID"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartSvc.RemoveItem(r.Context(), identityFrom(r), r.PathValue("variantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartSvc.Clear(r.Context(), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

type mergeCartRequest struct {
	GuestSessionID string `json:"guest_session_id"`
}

func (h *Handler) handleMergeCart(w http.ResponseWriter, r *http.Request) {
	var req mergeCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cart, err := h.cartSvc.Merge(r.Context(), req.GuestSessionID, identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

type checkoutRequest struct {
	CustomerEmail   string         `json:"customer_email"`
	CustomerPhone   string         `json:"customer_phone"`
	ShippingAddress entity.Address `json:"shipping_address"`
	ShippingMethod  string         `json:"shipping_method"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.checkoutSvc.Checkout(r.Context(), service.CheckoutCommand{
		Identity:        identityFrom(r),
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  req.ShippingMethod,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderSvc.Recent(r.Context(), identityFrom(r), 50)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.Get(r.Context(), r.PathValue("id"), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleGetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetByNumber(r.Context(), r.PathValue("number"), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	order, err := h.orderSvc.Cancel(r.Context(), r.PathValue("id"), identityFrom(r), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	result, err := h.reorderSvc.Reorder(r.Context(), r.PathValue("id"), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type advanceOrderRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleAdvanceOrder(w http.ResponseWriter, r *http.Request) {
	var req advanceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.orderSvc.Advance(r.Context(), r.PathValue("id"), identityFrom(r), entity.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleGetShippingMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rates.Methods())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes and
// returns the specific reason so the frontend can render it.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrInvalidInput),
		errors.Is(err, entity.ErrNoIdentity),
		errors.Is(err, entity.ErrUnknownShippingMethod):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, entity.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, entity.ErrCartNotFound),
		errors.Is(err, entity.ErrCartItemNotFound),
		errors.Is(err, entity.ErrOrderNotFound),
		errors.Is(err, entity.ErrProductNotFound),
		errors.Is(err, entity.ErrVariantNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrCartEmpty),
		errors.Is(err, entity.ErrOrderCannotBeCancelled),
		errors.Is(err, entity.ErrNoItemsToReorder),
		errors.Is(err, entity.ErrInvalidStatusTransition),
		errors.Is(err, entity.ErrProductUnavailable),
		errors.Is(err, entity.ErrVariantUnavailable),
		errors.Is(err, entity.ErrInsufficientStock):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "err", err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// EnableCORS is a middleware to allow the storefront SPA to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-Guest-Session-ID, X-Admin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
