package shipping

import "time"

type Shipment struct {
	ID                 string
	ShipmentNumber     string
	TransportCompanyID string
	Status             Status
	StartedAt          *time.Time
	CreatedAt          time.Time
	CreatedByUserID    string
	UpdatedAt          *time.Time
	EstimatedDeparture *time.Time
	ActualDeparture    *time.Time
}

// Product is one scanned line item. SerialNumber and ShipmentID are empty
// strings when unset (stored as NULL).
type Product struct {
	ID              string
	Barcode         string
	Name            string
	Description     string
	SKU             string
	Quantity        int
	Category        string
	Brand           string
	Model           string
	SerialNumber    string
	ShipmentID      string
	ScannedAt       time.Time
	ScannedByUserID string
}

// ScanOperation is the audit record of one user's scanning session against
// one shipment. ProductCount is always recomputed from the product rows,
// never accumulated independently.
type ScanOperation struct {
	ID           string
	ShipmentID   string
	UserID       string
	ProductCount int
	StartTime    time.Time
	EndTime      *time.Time
	Status       ScanStatus
}

// Carrier is the view of a transport company the workflow engine needs:
// existence, active flag and display fields for responses.
type Carrier struct {
	ID           string
	Name         string
	Phone        string
	DriverName   string
	LicensePlate string
	Active       bool
}
