package httpapi

import "net/http"

type addToCartRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type updateCartLineRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.d.Carts.Get(r.Context(), userID(r))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}
	c, err := h.d.Carts.AddLine(r.Context(), userID(r), req.ProductID, req.Quantity)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(w, r, "lineId")
	if !ok {
		return
	}
	var req updateCartLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.d.Carts.UpdateLine(r.Context(), userID(r), lineID, req.Quantity)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(w, r, "lineId")
	if !ok {
		return
	}
	c, err := h.d.Carts.RemoveLine(r.Context(), userID(r), lineID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Carts.Clear(r.Context(), userID(r)); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
