package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/William6892/barcodeverify-backend/internal/carriers"
)

type CarriersHandler struct {
	Repo *carriers.Repo
}

// RegisterPublic: the carrier list is readable without a session so the
// login screen can populate its dropdown.
func (h *CarriersHandler) RegisterPublic(r chi.Router) {
	r.Get("/transport-companies", h.list)
	r.Get("/transport-companies/{id}", h.byID)
}

func (h *CarriersHandler) RegisterPrivate(r chi.Router) {
	r.Post("/transport-companies/user", h.create)
	r.With(RequireAdmin).Post("/transport-companies", h.create)
	r.With(RequireAdmin).Patch("/transport-companies/{id}/status", h.setActive)
}

func (h *CarriersHandler) list(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") == ""

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cs, err := h.Repo.List(ctx, activeOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if cs == nil {
		cs = []carriers.Company{}
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *CarriersHandler) byID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Repo.ByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CarriersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req carriers.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" || req.LicensePlate == "" || req.DriverName == "" {
		writeError(w, http.StatusBadRequest, "name, driver_name and license_plate are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Repo.Create(ctx, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type setActiveReq struct {
	IsActive bool `json:"is_active"`
}

func (h *CarriersHandler) setActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.SetActive(ctx, chi.URLParam(r, "id"), req.IsActive); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": chi.URLParam(r, "id"), "is_active": req.IsActive})
}
