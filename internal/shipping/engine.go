package shipping

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const adminRole = "Admin"

// Engine orchestrates the shipment scanning workflow: the status state
// machine, the barcode/serial dedupe rules and the scan-operation audit
// records. It holds no mutable state of its own beyond the entropy source;
// any number of requests may run concurrently against one shared Store.
type Engine struct {
	store Store
	now   func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Engine)

// WithClock pins the engine's notion of now. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand pins the entropy source for shipment-number generation.
func WithRand(rnd *rand.Rand) Option {
	return func(e *Engine) { e.rnd = rnd }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) newShipmentNumber(now time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return GenerateShipmentNumber(now, e.rnd)
}

type CreateShipmentInput struct {
	TransportCompanyID string
	ShipmentNumber     string // generated when empty
	EstimatedDeparture *time.Time
	UserID             string
}

type CreateShipmentResult struct {
	Shipment *Shipment
	Carrier  *Carrier
}

// CreateShipment registers a new Pending shipment against an existing
// transport company. A duplicate shipment number fails with *ConflictError
// (enforced by the unique column, so concurrent creates can't both win).
func (e *Engine) CreateShipment(ctx context.Context, in CreateShipmentInput) (*CreateShipmentResult, error) {
	carrier, err := e.store.CarrierByID(ctx, in.TransportCompanyID)
	if err != nil {
		return nil, fmt.Errorf("lookup transport company: %w", err)
	}

	now := e.now().UTC()
	number := strings.TrimSpace(in.ShipmentNumber)
	if number == "" {
		number = e.newShipmentNumber(now)
	}
	sh := &Shipment{
		ID:                 uuid.NewString(),
		ShipmentNumber:     number,
		TransportCompanyID: carrier.ID,
		Status:             StatusPending,
		CreatedAt:          now,
		CreatedByUserID:    in.UserID,
		EstimatedDeparture: in.EstimatedDeparture,
	}
	if err := e.store.CreateShipment(ctx, sh); err != nil {
		return nil, err
	}
	return &CreateShipmentResult{Shipment: sh, Carrier: carrier}, nil
}

type StartShipmentResult struct {
	Shipment        *Shipment
	CarrierName     string
	ScanOperationID string
}

// StartShipment resolves a Pending shipment by number, moves it to
// InProgress and opens (or reuses) the caller's Active scan operation.
// A number that doesn't resolve to a Pending shipment is NotFound: callers
// can't distinguish "no such number" from "someone already started it".
func (e *Engine) StartShipment(ctx context.Context, shipmentNumber, userID string) (*StartShipmentResult, error) {
	var res StartShipmentResult
	err := e.store.InTx(ctx, func(tx Store) error {
		sh, err := tx.ShipmentByNumber(ctx, shipmentNumber)
		if err != nil {
			return err
		}
		if sh.Status != StatusPending {
			return ErrNotFound
		}
		now := e.now().UTC()
		if err := e.promote(ctx, tx, sh, now); err != nil {
			return err
		}
		op, err := e.ensureScanOperation(ctx, tx, sh.ID, userID, now)
		if err != nil {
			return err
		}
		carrier, err := tx.CarrierByID(ctx, sh.TransportCompanyID)
		if err != nil {
			return err
		}
		res = StartShipmentResult{Shipment: sh, CarrierName: carrier.Name, ScanOperationID: op.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// promote moves a Pending shipment to InProgress.
func (e *Engine) promote(ctx context.Context, tx Store, sh *Shipment, now time.Time) error {
	sh.Status = StatusInProgress
	sh.StartedAt = &now
	sh.UpdatedAt = &now
	return tx.UpdateShipmentState(ctx, sh)
}

// ensureScanOperation returns the caller's Active operation on the shipment,
// creating one only if none exists. At most one Active operation per
// (shipment, user) pair.
func (e *Engine) ensureScanOperation(ctx context.Context, tx Store, shipmentID, userID string, now time.Time) (*ScanOperation, error) {
	op, err := tx.ActiveScanOperation(ctx, shipmentID, userID)
	if err == nil {
		return op, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	op = &ScanOperation{
		ID:         uuid.NewString(),
		ShipmentID: shipmentID,
		UserID:     userID,
		StartTime:  now,
		Status:     ScanActive,
	}
	if err := tx.InsertScanOperation(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// ScanAction says what a scan did to the product rows.
type ScanAction string

const (
	ActionIncremented ScanAction = "incremented"
	ActionAdded       ScanAction = "added"
)

type ScanInput struct {
	ShipmentID   string
	Barcode      string
	Quantity     int
	SerialNumber string
	Name         string
	Description  string
	SKU          string
	Category     string
	Model        string
	UserID       string
}

type ScanResult struct {
	Action ScanAction
	// Quantity is what the scan actually applied, after coercing
	// sub-1 inputs to 1. Product.Quantity is the row's running total.
	Quantity   int
	Product    *Product
	TotalCount int
	ScannedAt  time.Time
}

// ScanProduct applies one scan to a shipment. Dedupe rules, in order:
//
//  1. An existing (barcode, shipment) row plus an empty incoming serial
//     increments that row's quantity.
//  2. An incoming serial that already exists in the shipment is a conflict,
//     reported with the existing row's summary.
//  3. Anything else inserts a new row.
//
// A Pending shipment is promoted to InProgress as part of the call. After
// the mutation the caller's Active scan operation gets the recomputed
// quantity total. The whole sequence is one transaction.
func (e *Engine) ScanProduct(ctx context.Context, in ScanInput) (*ScanResult, error) {
	if strings.TrimSpace(in.Barcode) == "" {
		return nil, fmt.Errorf("%w: barcode is required", ErrInvalidInput)
	}
	if in.Quantity < 1 {
		in.Quantity = 1
	}

	var res ScanResult
	err := e.store.InTx(ctx, func(tx Store) error {
		sh, err := tx.ShipmentByID(ctx, in.ShipmentID)
		if err != nil {
			return err
		}
		if sh.Status != StatusPending && sh.Status != StatusInProgress {
			return &InvalidStateError{Status: sh.Status, Allowed: []Status{StatusPending, StatusInProgress}}
		}
		now := e.now().UTC()
		if sh.Status == StatusPending {
			if err := e.promote(ctx, tx, sh, now); err != nil {
				return err
			}
		}
		op, err := e.ensureScanOperation(ctx, tx, sh.ID, in.UserID, now)
		if err != nil {
			return err
		}

		serial := strings.TrimSpace(in.SerialNumber)
		existing, err := tx.ProductByBarcode(ctx, sh.ID, strings.TrimSpace(in.Barcode))
		switch {
		case err == nil && serial == "":
			// same barcode, no serial: merge into the existing row
			if err := tx.AddProductQuantity(ctx, existing.ID, in.Quantity, now, in.UserID); err != nil {
				return err
			}
			existing.Quantity += in.Quantity
			existing.ScannedAt = now
			existing.ScannedByUserID = in.UserID
			res = ScanResult{Action: ActionIncremented, Product: existing}

		case err == nil || errors.Is(err, ErrNotFound):
			if serial != "" {
				dup, derr := tx.ProductBySerial(ctx, sh.ID, serial)
				if derr == nil {
					return &ConflictError{
						Message:  "a product with this serial number already exists in the shipment",
						Existing: summarize(dup),
					}
				}
				if !errors.Is(derr, ErrNotFound) {
					return derr
				}
			}
			p := e.buildProduct(in, serial, now)
			if err := tx.InsertProduct(ctx, p); err != nil {
				return err
			}
			res = ScanResult{Action: ActionAdded, Product: p}

		default:
			return err
		}

		total, err := tx.ShipmentQuantityTotal(ctx, sh.ID)
		if err != nil {
			return err
		}
		if err := tx.SetScanOperationCount(ctx, op.ID, total); err != nil {
			return err
		}
		res.Quantity = in.Quantity
		res.TotalCount = total
		res.ScannedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (e *Engine) buildProduct(in ScanInput, serial string, now time.Time) *Product {
	barcode := strings.TrimSpace(in.Barcode)
	p := &Product{
		ID:              uuid.NewString(),
		Barcode:         barcode,
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		SKU:             strings.TrimSpace(in.SKU),
		Quantity:        in.Quantity,
		Category:        strings.TrimSpace(in.Category),
		Brand:           "Samsung",
		Model:           strings.TrimSpace(in.Model),
		SerialNumber:    serial,
		ShipmentID:      in.ShipmentID,
		ScannedAt:       now,
		ScannedByUserID: in.UserID,
	}
	if p.Name == "" {
		p.Name = "Product " + barcode
	}
	if p.SKU == "" {
		p.SKU = barcode
	}
	if p.Category == "" {
		p.Category = "Electronics"
	}
	return p
}

type CompleteShipmentResult struct {
	Shipment   *Shipment
	Carrier    *Carrier
	TotalCount int
}

// CompleteShipment finalizes an InProgress shipment: Completed status,
// actual departure stamped, the caller's Active scan operation closed with
// the recomputed total.
func (e *Engine) CompleteShipment(ctx context.Context, shipmentID, userID string) (*CompleteShipmentResult, error) {
	var res CompleteShipmentResult
	err := e.store.InTx(ctx, func(tx Store) error {
		sh, err := tx.ShipmentByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if sh.Status != StatusInProgress {
			return ErrNotFound
		}
		now := e.now().UTC()
		sh.Status = StatusCompleted
		if sh.ActualDeparture == nil {
			sh.ActualDeparture = &now
		}
		sh.UpdatedAt = &now
		if err := tx.UpdateShipmentState(ctx, sh); err != nil {
			return err
		}

		total, err := tx.ShipmentQuantityTotal(ctx, sh.ID)
		if err != nil {
			return err
		}
		op, err := tx.ActiveScanOperation(ctx, sh.ID, userID)
		if err == nil {
			if err := tx.CloseScanOperation(ctx, op.ID, ScanCompleted, now, total); err != nil {
				return err
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		carrier, err := tx.CarrierByID(ctx, sh.TransportCompanyID)
		if err != nil {
			return err
		}
		res = CompleteShipmentResult{Shipment: sh, Carrier: carrier, TotalCount: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type CancelShipmentResult struct {
	Shipment       *Shipment
	PreviousStatus Status
}

// CancelShipment cancels a Pending or InProgress shipment and closes every
// Active scan operation on it, whoever opened them.
func (e *Engine) CancelShipment(ctx context.Context, shipmentID string) (*CancelShipmentResult, error) {
	var res CancelShipmentResult
	err := e.store.InTx(ctx, func(tx Store) error {
		sh, err := tx.ShipmentByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if sh.Status != StatusPending && sh.Status != StatusInProgress {
			return &InvalidStateError{Status: sh.Status, Allowed: []Status{StatusPending, StatusInProgress}}
		}
		prev := sh.Status
		now := e.now().UTC()
		sh.Status = StatusCancelled
		sh.UpdatedAt = &now
		if err := tx.UpdateShipmentState(ctx, sh); err != nil {
			return err
		}
		if err := tx.CloseActiveScanOperations(ctx, sh.ID, ScanCancelled, now); err != nil {
			return err
		}
		res = CancelShipmentResult{Shipment: sh, PreviousStatus: prev}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type ChangeStatusResult struct {
	Shipment       *Shipment
	PreviousStatus Status
}

// ChangeStatus is the generic entry point used outside the scan flow, e.g.
// manual correction. Only the shipment's creator or an Admin may call it.
// The transition table is enforced, and the side effects match the
// dedicated operations: InProgress opens a scan operation, Completed stamps
// departure and closes the caller's operation, Cancelled closes all of them.
func (e *Engine) ChangeStatus(ctx context.Context, shipmentID string, target Status, userID, role string) (*ChangeStatusResult, error) {
	if !ValidStatus(target) {
		return nil, &InvalidTransitionError{To: target}
	}
	var res ChangeStatusResult
	err := e.store.InTx(ctx, func(tx Store) error {
		sh, err := tx.ShipmentByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if sh.CreatedByUserID != userID && role != adminRole {
			return ErrForbidden
		}
		if !CanTransition(sh.Status, target) {
			return &InvalidTransitionError{From: sh.Status, To: target, Allowed: AllowedNext(sh.Status)}
		}
		prev := sh.Status
		now := e.now().UTC()
		sh.Status = target
		sh.UpdatedAt = &now

		switch target {
		case StatusInProgress:
			sh.StartedAt = &now
			if err := tx.UpdateShipmentState(ctx, sh); err != nil {
				return err
			}
			if _, err := e.ensureScanOperation(ctx, tx, sh.ID, userID, now); err != nil {
				return err
			}
		case StatusCompleted:
			if sh.ActualDeparture == nil {
				sh.ActualDeparture = &now
			}
			if err := tx.UpdateShipmentState(ctx, sh); err != nil {
				return err
			}
			total, err := tx.ShipmentQuantityTotal(ctx, sh.ID)
			if err != nil {
				return err
			}
			op, err := tx.ActiveScanOperation(ctx, sh.ID, userID)
			if err == nil {
				if err := tx.CloseScanOperation(ctx, op.ID, ScanCompleted, now, total); err != nil {
					return err
				}
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
		case StatusCancelled:
			if err := tx.UpdateShipmentState(ctx, sh); err != nil {
				return err
			}
			if err := tx.CloseActiveScanOperations(ctx, sh.ID, ScanCancelled, now); err != nil {
				return err
			}
		default:
			if err := tx.UpdateShipmentState(ctx, sh); err != nil {
				return err
			}
		}
		res = ChangeStatusResult{Shipment: sh, PreviousStatus: prev}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveProduct deletes a product row. If the row was assigned to a
// shipment, active scan operations get their counts recomputed so totals
// don't drift.
func (e *Engine) RemoveProduct(ctx context.Context, productID string) (*Product, error) {
	var removed *Product
	err := e.store.InTx(ctx, func(tx Store) error {
		p, err := tx.DeleteProduct(ctx, productID)
		if err != nil {
			return err
		}
		removed = p
		if p.ShipmentID == "" {
			return nil
		}
		total, err := tx.ShipmentQuantityTotal(ctx, p.ShipmentID)
		if err != nil {
			return err
		}
		return tx.RefreshActiveScanCounts(ctx, p.ShipmentID, total)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
