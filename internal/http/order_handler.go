package httpapi

import "net/http"

type checkoutRequest struct {
	AddressID     int64  `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// Checkout places an order from the caller's cart. A declined payment is
// still a 200: the order carries a FAILED payment.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AddressID <= 0 {
		writeError(w, http.StatusBadRequest, "addressId is required")
		return
	}
	o, err := h.d.Checkout.PlaceOrder(r.Context(), userID(r), req.AddressID, req.PaymentMethod)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.d.Orders.History(r.Context(), userID(r))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.d.Orders.Get(r.Context(), userID(r), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.d.Orders.All(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) AdminSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.d.Orders.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) AdminAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.d.Analytics.Analytics(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
