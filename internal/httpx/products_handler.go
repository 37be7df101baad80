package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/William6892/barcodeverify-backend/internal/reports"
)

type ProductsHandler struct {
	Engine  Workflow
	Queries *reports.Queries
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/search", h.search)
	r.Get("/products/unassigned", h.unassigned)
	r.Get("/products/shipment/{id}", h.byShipment)
	r.Get("/products/{id}", h.byID)
	r.Delete("/products/{id}", h.remove)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Queries.Products(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []reports.ProductRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ProductsHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Queries.SearchProducts(ctx, q.Get("q"), page, pageSize)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if res.Items == nil {
		res.Items = []reports.ProductRow{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ProductsHandler) unassigned(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Queries.UnassignedProducts(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []reports.ProductRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ProductsHandler) byShipment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Queries.ProductsByShipment(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []reports.ProductRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ProductsHandler) byID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Queries.ProductByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Engine.RemoveProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted_id":  p.ID,
		"barcode":     p.Barcode,
		"shipment_id": p.ShipmentID,
	})
}
