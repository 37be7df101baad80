package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/William6892/barcodeverify-backend/internal/kafka"
	"github.com/William6892/barcodeverify-backend/internal/redisx"
	"github.com/William6892/barcodeverify-backend/internal/reports"
	"github.com/William6892/barcodeverify-backend/internal/shipping"
)

// Workflow is the slice of the engine the HTTP layer calls. Tests stub it.
type Workflow interface {
	CreateShipment(ctx context.Context, in shipping.CreateShipmentInput) (*shipping.CreateShipmentResult, error)
	StartShipment(ctx context.Context, shipmentNumber, userID string) (*shipping.StartShipmentResult, error)
	ScanProduct(ctx context.Context, in shipping.ScanInput) (*shipping.ScanResult, error)
	CompleteShipment(ctx context.Context, shipmentID, userID string) (*shipping.CompleteShipmentResult, error)
	CancelShipment(ctx context.Context, shipmentID string) (*shipping.CancelShipmentResult, error)
	ChangeStatus(ctx context.Context, shipmentID string, target shipping.Status, userID, role string) (*shipping.ChangeStatusResult, error)
	RemoveProduct(ctx context.Context, productID string) (*shipping.Product, error)
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type ShipmentsHandler struct {
	Engine   Workflow
	Queries  *reports.Queries
	Producer Publisher
	Redis    *redis.Client
	Service  string
}

func (h *ShipmentsHandler) Register(r chi.Router) {
	r.Post("/shipment/create", h.create)
	r.Post("/shipment/start", h.start)
	r.Post("/shipment/scan", h.scan)
	r.Post("/shipment/complete/{id}", h.complete)
	r.Patch("/shipment/{id}/status", h.changeStatus)
	r.With(RequireAdmin).Patch("/shipment/{id}/cancel", h.cancel)

	r.Get("/shipment/active", h.listActive)
	r.Get("/shipment/all", h.listAll)
	r.Get("/shipment/completed", h.listCompleted)
	r.Get("/shipment/cancelled", h.listCancelled)
	r.Get("/shipment/stats", h.stats)
	r.Get("/shipment/search", h.search)
	r.Get("/shipment/number/{number}", h.byNumber)
	r.Get("/shipment/{id}", h.byID)
	r.Get("/shipment/{id}/status", h.status)
}

type shipmentJSON struct {
	ID                 string          `json:"id"`
	ShipmentNumber     string          `json:"shipment_number"`
	TransportCompanyID string          `json:"transport_company_id"`
	Status             shipping.Status `json:"status"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          *time.Time      `json:"updated_at,omitempty"`
	EstimatedDeparture *time.Time      `json:"estimated_departure,omitempty"`
	ActualDeparture    *time.Time      `json:"actual_departure,omitempty"`
}

func toShipmentJSON(s *shipping.Shipment) shipmentJSON {
	return shipmentJSON{
		ID:                 s.ID,
		ShipmentNumber:     s.ShipmentNumber,
		TransportCompanyID: s.TransportCompanyID,
		Status:             s.Status,
		StartedAt:          s.StartedAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		EstimatedDeparture: s.EstimatedDeparture,
		ActualDeparture:    s.ActualDeparture,
	}
}

func (h *ShipmentsHandler) publish(r *http.Request, topic, eventType, shipmentID string, payload any) {
	if h.Producer == nil {
		return
	}
	ev := shipping.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: shipmentID,
	}
	ev.Payload = kafkax.MustMarshal(payload)
	h.Producer.Publish(topic, shipping.PartitionKey(shipmentID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// cacheStatus keeps the polling endpoint cheap; losing the write is fine.
func (h *ShipmentsHandler) cacheStatus(ctx context.Context, shipmentID string, status shipping.Status) {
	if h.Redis == nil {
		return
	}
	body, _ := json.Marshal(map[string]string{"status": string(status)})
	_ = h.Redis.Set(ctx, redisx.KeyShipmentStatus(shipmentID), body, redisx.TTLStatusCache).Err()
}

type createShipmentReq struct {
	TransportCompanyID string     `json:"transport_company_id"`
	ShipmentNumber     string     `json:"shipment_number,omitempty"`
	EstimatedDeparture *time.Time `json:"estimated_departure,omitempty"`
}

func (h *ShipmentsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createShipmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TransportCompanyID == "" {
		writeError(w, http.StatusBadRequest, "transport_company_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	caller := CallerIdentity(r)
	res, err := h.Engine.CreateShipment(ctx, shipping.CreateShipmentInput{
		TransportCompanyID: req.TransportCompanyID,
		ShipmentNumber:     req.ShipmentNumber,
		EstimatedDeparture: req.EstimatedDeparture,
		UserID:             caller.UserID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.cacheStatus(ctx, res.Shipment.ID, res.Shipment.Status)
	h.publish(r, shipping.TopicShipmentCreated, shipping.EventShipmentCreated, res.Shipment.ID,
		shipping.ShipmentCreatedPayload{
			ShipmentID:         res.Shipment.ID,
			ShipmentNumber:     res.Shipment.ShipmentNumber,
			TransportCompanyID: res.Shipment.TransportCompanyID,
			CreatedByUserID:    caller.UserID,
		})

	writeJSON(w, http.StatusCreated, map[string]any{
		"shipment":     toShipmentJSON(res.Shipment),
		"carrier_name": res.Carrier.Name,
	})
}

type startShipmentReq struct {
	ShipmentNumber string `json:"shipment_number"`
}

func (h *ShipmentsHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startShipmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ShipmentNumber == "" {
		writeError(w, http.StatusBadRequest, "shipment_number is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	caller := CallerIdentity(r)
	res, err := h.Engine.StartShipment(ctx, req.ShipmentNumber, caller.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.cacheStatus(ctx, res.Shipment.ID, res.Shipment.Status)
	h.publish(r, shipping.TopicShipmentStarted, shipping.EventShipmentStarted, res.Shipment.ID,
		shipping.ShipmentStartedPayload{
			ShipmentID:      res.Shipment.ID,
			ShipmentNumber:  res.Shipment.ShipmentNumber,
			UserID:          caller.UserID,
			ScanOperationID: res.ScanOperationID,
		})

	writeJSON(w, http.StatusOK, map[string]any{
		"shipment":          toShipmentJSON(res.Shipment),
		"carrier_name":      res.CarrierName,
		"scan_operation_id": res.ScanOperationID,
	})
}

type scanReq struct {
	ShipmentID   string `json:"shipment_id"`
	Barcode      string `json:"barcode"`
	Quantity     int    `json:"quantity,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	SKU          string `json:"sku,omitempty"`
	Category     string `json:"category,omitempty"`
	Model        string `json:"model,omitempty"`
}

func (h *ShipmentsHandler) scan(w http.ResponseWriter, r *http.Request) {
	var req scanReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ShipmentID == "" {
		writeError(w, http.StatusBadRequest, "shipment_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	caller := CallerIdentity(r)
	res, err := h.Engine.ScanProduct(ctx, shipping.ScanInput{
		ShipmentID:   req.ShipmentID,
		Barcode:      req.Barcode,
		Quantity:     req.Quantity,
		SerialNumber: req.SerialNumber,
		Name:         req.Name,
		Description:  req.Description,
		SKU:          req.SKU,
		Category:     req.Category,
		Model:        req.Model,
		UserID:       caller.UserID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.publish(r, shipping.TopicProductScanned, shipping.EventProductScanned, req.ShipmentID,
		shipping.ProductScannedPayload{
			ShipmentID:   req.ShipmentID,
			Barcode:      res.Product.Barcode,
			SerialNumber: res.Product.SerialNumber,
			Quantity:     res.Quantity,
			Action:       string(res.Action),
			TotalCount:   res.TotalCount,
			UserID:       caller.UserID,
		})

	writeJSON(w, http.StatusOK, map[string]any{
		"action":      res.Action,
		"product_id":  res.Product.ID,
		"barcode":     res.Product.Barcode,
		"name":        res.Product.Name,
		"quantity":    res.Product.Quantity,
		"total_count": res.TotalCount,
		"scanned_at":  res.ScannedAt,
	})
}

func (h *ShipmentsHandler) complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	caller := CallerIdentity(r)
	res, err := h.Engine.CompleteShipment(ctx, id, caller.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.cacheStatus(ctx, res.Shipment.ID, res.Shipment.Status)
	h.publish(r, shipping.TopicShipmentCompleted, shipping.EventShipmentCompleted, res.Shipment.ID,
		shipping.ShipmentCompletedPayload{
			ShipmentID:     res.Shipment.ID,
			ShipmentNumber: res.Shipment.ShipmentNumber,
			TotalProducts:  res.TotalCount,
			DepartedAt:     res.Shipment.ActualDeparture,
		})

	writeJSON(w, http.StatusOK, map[string]any{
		"shipment":      toShipmentJSON(res.Shipment),
		"carrier_name":  res.Carrier.Name,
		"driver_name":   res.Carrier.DriverName,
		"license_plate": res.Carrier.LicensePlate,
		"total_count":   res.TotalCount,
	})
}

func (h *ShipmentsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Engine.CancelShipment(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.cacheStatus(ctx, res.Shipment.ID, res.Shipment.Status)
	h.publish(r, shipping.TopicShipmentCancelled, shipping.EventShipmentCancelled, res.Shipment.ID,
		shipping.ShipmentCancelledPayload{
			ShipmentID:     res.Shipment.ID,
			ShipmentNumber: res.Shipment.ShipmentNumber,
			PreviousStatus: res.PreviousStatus,
		})

	writeJSON(w, http.StatusOK, map[string]any{
		"shipment":        toShipmentJSON(res.Shipment),
		"previous_status": res.PreviousStatus,
	})
}

type changeStatusReq struct {
	Status string `json:"status"`
}

func (h *ShipmentsHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req changeStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	caller := CallerIdentity(r)
	res, err := h.Engine.ChangeStatus(ctx, id, shipping.Status(req.Status), caller.UserID, caller.Role)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.cacheStatus(ctx, res.Shipment.ID, res.Shipment.Status)
	switch res.Shipment.Status {
	case shipping.StatusCompleted:
		h.publish(r, shipping.TopicShipmentCompleted, shipping.EventShipmentCompleted, res.Shipment.ID,
			shipping.ShipmentCompletedPayload{
				ShipmentID:     res.Shipment.ID,
				ShipmentNumber: res.Shipment.ShipmentNumber,
				DepartedAt:     res.Shipment.ActualDeparture,
			})
	case shipping.StatusCancelled:
		h.publish(r, shipping.TopicShipmentCancelled, shipping.EventShipmentCancelled, res.Shipment.ID,
			shipping.ShipmentCancelledPayload{
				ShipmentID:     res.Shipment.ID,
				ShipmentNumber: res.Shipment.ShipmentNumber,
				PreviousStatus: res.PreviousStatus,
			})
	case shipping.StatusInProgress:
		h.publish(r, shipping.TopicShipmentStarted, shipping.EventShipmentStarted, res.Shipment.ID,
			shipping.ShipmentStartedPayload{
				ShipmentID:     res.Shipment.ID,
				ShipmentNumber: res.Shipment.ShipmentNumber,
				UserID:         caller.UserID,
			})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"shipment":        toShipmentJSON(res.Shipment),
		"previous_status": res.PreviousStatus,
	})
}

// status serves the polling clients: Redis first, DB on miss.
func (h *ShipmentsHandler) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, redisx.KeyShipmentStatus(id)).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	detail, err := h.Queries.ShipmentByID(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.cacheStatus(ctx, id, shipping.Status(detail.Status))
	writeJSON(w, http.StatusOK, map[string]string{"status": detail.Status})
}

func (h *ShipmentsHandler) listActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context) ([]reports.ShipmentRow, error) {
		return h.Queries.ActiveShipments(ctx)
	})
}

func (h *ShipmentsHandler) listAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context) ([]reports.ShipmentRow, error) {
		return h.Queries.AllShipments(ctx)
	})
}

func (h *ShipmentsHandler) listCompleted(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context) ([]reports.ShipmentRow, error) {
		return h.Queries.ShipmentsByStatus(ctx, string(shipping.StatusCompleted))
	})
}

func (h *ShipmentsHandler) listCancelled(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context) ([]reports.ShipmentRow, error) {
		return h.Queries.ShipmentsByStatus(ctx, string(shipping.StatusCancelled))
	})
}

func (h *ShipmentsHandler) list(w http.ResponseWriter, r *http.Request, fn func(context.Context) ([]reports.ShipmentRow, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := fn(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []reports.ShipmentRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ShipmentsHandler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s, err := h.Queries.ShipmentStats(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *ShipmentsHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reports.SearchFilter{
		Number:    q.Get("number"),
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

	h.list(w, r, func(ctx context.Context) ([]reports.ShipmentRow, error) {
		return h.Queries.SearchShipments(ctx, f)
	})
}

func (h *ShipmentsHandler) byID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	detail, err := h.Queries.ShipmentByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ShipmentsHandler) byNumber(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	detail, err := h.Queries.ShipmentByNumber(ctx, chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
