package shipping

import (
	"encoding/json"
	"time"
)

const (
	EventShipmentCreated   = "ShipmentCreated"
	EventShipmentStarted   = "ShipmentStarted"
	EventProductScanned    = "ProductScanned"
	EventShipmentCompleted = "ShipmentCompleted"
	EventShipmentCancelled = "ShipmentCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // shipment id
	Payload       json.RawMessage `json:"payload"`
}

type ShipmentCreatedPayload struct {
	ShipmentID         string `json:"shipment_id"`
	ShipmentNumber     string `json:"shipment_number"`
	TransportCompanyID string `json:"transport_company_id"`
	CreatedByUserID    string `json:"created_by_user_id,omitempty"`
}

type ShipmentStartedPayload struct {
	ShipmentID      string `json:"shipment_id"`
	ShipmentNumber  string `json:"shipment_number"`
	UserID          string `json:"user_id"`
	ScanOperationID string `json:"scan_operation_id"`
}

type ProductScannedPayload struct {
	ShipmentID   string `json:"shipment_id"`
	Barcode      string `json:"barcode"`
	SerialNumber string `json:"serial_number,omitempty"`
	Quantity     int    `json:"quantity"`
	Action       string `json:"action"` // incremented | added
	TotalCount   int    `json:"total_count"`
	UserID       string `json:"user_id"`
}

type ShipmentCompletedPayload struct {
	ShipmentID     string     `json:"shipment_id"`
	ShipmentNumber string     `json:"shipment_number"`
	TotalProducts  int        `json:"total_products"`
	DepartedAt     *time.Time `json:"departed_at,omitempty"`
}

type ShipmentCancelledPayload struct {
	ShipmentID     string `json:"shipment_id"`
	ShipmentNumber string `json:"shipment_number"`
	PreviousStatus Status `json:"previous_status"`
}
