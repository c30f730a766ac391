package httpapi

import "net/http"

func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.d.Wishlist.List(r.Context(), userID(r))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	if err := h.d.Wishlist.Add(r.Context(), userID(r), productID); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	if err := h.d.Wishlist.Remove(r.Context(), userID(r), productID); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) MoveWishlistToCart(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	c, err := h.d.Wishlist.MoveToCart(r.Context(), userID(r), productID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
