package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/William6892/barcodeverify-backend/internal/reports"
	"github.com/William6892/barcodeverify-backend/internal/users"
)

type AdminHandler struct {
	Users   *users.Service
	Queries *reports.Queries
	Redis   *redis.Client
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/dashboard/stats", h.dashboard)
		r.Get("/stats/quick", h.quickStats)
		r.Get("/users", h.listUsers)
		r.Post("/users", h.createUser)
		r.Put("/users/{id}/role", h.setRole)
		r.Put("/users/{id}/status", h.setActive)
		r.Get("/reports/shipments", h.shipmentReport)
	})
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	d, err := h.Queries.Dashboard(ctx, time.Now().UTC())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// quickStats is the cheap path: reporter-maintained Redis counters only.
func (h *AdminHandler) quickStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	qs, err := reports.QuickStatsFor(ctx, h.Redis, time.Now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	us, err := h.Users.List(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if us == nil {
		us = []users.UserSummary{}
	}
	writeJSON(w, http.StatusOK, us)
}

type createUserReq struct {
	users.RegisterInput
	Role string `json:"role"`
}

func (h *AdminHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Role == "" {
		req.Role = users.RoleUser
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.CreateUser(ctx, req.RegisterInput, req.Role)
	if err != nil {
		if err == users.ErrInvalidCredentials {
			writeError(w, http.StatusBadRequest, "username, email and a password of at least 6 characters are required")
			return
		}
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
	})
}

type setRoleReq struct {
	Role string `json:"role"`
}

func (h *AdminHandler) setRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Users.SetRole(ctx, id, req.Role); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "role": req.Role})
}

type setUserActiveReq struct {
	IsActive bool `json:"is_active"`
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request) {
	var req setUserActiveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Users.SetActive(ctx, id, req.IsActive); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": req.IsActive})
}

// shipmentReport reuses the search filters, so the admin report can be
// narrowed the same way as the listing endpoint.
func (h *AdminHandler) shipmentReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reports.SearchFilter{
		Status:    q.Get("status"),
		CarrierID: q.Get("transport_company_id"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC3339")
			return
		}
		f.To = &t
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rows, err := h.Queries.SearchShipments(ctx, f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	stats, err := h.Queries.ShipmentStats(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []reports.ShipmentRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": time.Now().UTC(),
		"stats":        stats,
		"shipments":    rows,
	})
}
