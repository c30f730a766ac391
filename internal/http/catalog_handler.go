package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	products, err := h.d.Catalog.List(r.Context(), f)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func parseFilter(r *http.Request) (catalog.Filter, error) {
	q := r.URL.Query()
	f := catalog.Filter{Query: q.Get("q")}

	var err error
	if f.Sort, err = catalog.ParseSort(q.Get("sort")); err != nil {
		return catalog.Filter{}, err
	}
	if v := strings.TrimSpace(q.Get("categoryId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return catalog.Filter{}, errBadQuery("categoryId")
		}
		f.CategoryID = &id
	}
	if f.MinPrice, err = decimalParam(q.Get("minPrice"), "minPrice"); err != nil {
		return catalog.Filter{}, err
	}
	if f.MaxPrice, err = decimalParam(q.Get("maxPrice"), "maxPrice"); err != nil {
		return catalog.Filter{}, err
	}
	return f, nil
}

func decimalParam(v, name string) (*decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, errBadQuery(name)
	}
	return &d, nil
}

type errBadQuery string

func (e errBadQuery) Error() string { return "invalid " + string(e) }

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.d.Catalog.Get(r.Context(), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.d.Catalog.Categories(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"imageUrl"`
	CategoryID  *int64          `json:"categoryId"`
}

func (p productRequest) product() catalog.Product {
	return catalog.Product{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
	}
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p := req.product()
	if err := h.d.Catalog.Create(r.Context(), &p); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p := req.product()
	p.ID = id
	if err := h.d.Catalog.Update(r.Context(), &p); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.d.Catalog.Delete(r.Context(), id); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
