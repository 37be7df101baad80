package shipping

import (
	"context"
	"time"
)

// Store is the persistence surface the workflow engine drives. Lookups
// return ErrNotFound when no row matches. Implementations must map storage
// unique-constraint violations to *ConflictError so a race that slips past
// the engine's pre-check still surfaces as a conflict, not a broken row.
type Store interface {
	// InTx runs fn against a transaction-bound Store. Everything fn writes
	// commits together or not at all. Nested calls reuse the open
	// transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	CreateShipment(ctx context.Context, s *Shipment) error
	ShipmentByID(ctx context.Context, id string) (*Shipment, error)
	ShipmentByNumber(ctx context.Context, number string) (*Shipment, error)
	// UpdateShipmentState persists status, started_at, updated_at and
	// actual_departure.
	UpdateShipmentState(ctx context.Context, s *Shipment) error

	ProductByBarcode(ctx context.Context, shipmentID, barcode string) (*Product, error)
	ProductBySerial(ctx context.Context, shipmentID, serial string) (*Product, error)
	InsertProduct(ctx context.Context, p *Product) error
	AddProductQuantity(ctx context.Context, productID string, qty int, at time.Time, userID string) error
	DeleteProduct(ctx context.Context, productID string) (*Product, error)
	// ShipmentQuantityTotal sums product quantities across the shipment.
	ShipmentQuantityTotal(ctx context.Context, shipmentID string) (int, error)

	ActiveScanOperation(ctx context.Context, shipmentID, userID string) (*ScanOperation, error)
	InsertScanOperation(ctx context.Context, op *ScanOperation) error
	SetScanOperationCount(ctx context.Context, opID string, count int) error
	CloseScanOperation(ctx context.Context, opID string, status ScanStatus, end time.Time, count int) error
	// CloseActiveScanOperations finalizes every Active operation on the
	// shipment, regardless of user. Used by the cancel path.
	CloseActiveScanOperations(ctx context.Context, shipmentID string, status ScanStatus, end time.Time) error
	// RefreshActiveScanCounts sets ProductCount on every Active operation
	// for the shipment.
	RefreshActiveScanCounts(ctx context.Context, shipmentID string, count int) error

	CarrierByID(ctx context.Context, id string) (*Carrier, error)
}
