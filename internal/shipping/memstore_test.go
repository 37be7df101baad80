package shipping

import (
	"context"
	"time"
)

// memStore is an in-memory Store used to exercise the engine without a
// database. InTx snapshots state and restores it when fn fails, matching
// the rollback behavior of the pgx store. InsertProduct and CreateShipment
// enforce the same uniqueness rules the schema does, so constraint races
// surface as *ConflictError here too.
type memStore struct {
	shipments map[string]*Shipment
	products  map[string]*Product
	ops       map[string]*ScanOperation
	carriers  map[string]*Carrier
	inTx      bool
}

func newMemStore() *memStore {
	return &memStore{
		shipments: map[string]*Shipment{},
		products:  map[string]*Product{},
		ops:       map[string]*ScanOperation{},
		carriers:  map[string]*Carrier{},
	}
}

func (m *memStore) snapshot() *memStore {
	cp := newMemStore()
	for k, v := range m.shipments {
		s := *v
		cp.shipments[k] = &s
	}
	for k, v := range m.products {
		p := *v
		cp.products[k] = &p
	}
	for k, v := range m.ops {
		o := *v
		cp.ops[k] = &o
	}
	for k, v := range m.carriers {
		c := *v
		cp.carriers[k] = &c
	}
	return cp
}

func (m *memStore) InTx(_ context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	saved := m.snapshot()
	m.inTx = true
	err := fn(m)
	m.inTx = false
	if err != nil {
		m.shipments, m.products, m.ops, m.carriers =
			saved.shipments, saved.products, saved.ops, saved.carriers
	}
	return err
}

func (m *memStore) CreateShipment(_ context.Context, s *Shipment) error {
	for _, other := range m.shipments {
		if other.ShipmentNumber == s.ShipmentNumber {
			return &ConflictError{Message: "a shipment with this number already exists"}
		}
	}
	cp := *s
	m.shipments[s.ID] = &cp
	return nil
}

func (m *memStore) ShipmentByID(_ context.Context, id string) (*Shipment, error) {
	s, ok := m.shipments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ShipmentByNumber(_ context.Context, number string) (*Shipment, error) {
	for _, s := range m.shipments {
		if s.ShipmentNumber == number {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) UpdateShipmentState(_ context.Context, s *Shipment) error {
	cur, ok := m.shipments[s.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = s.Status
	cur.StartedAt = s.StartedAt
	cur.UpdatedAt = s.UpdatedAt
	cur.ActualDeparture = s.ActualDeparture
	return nil
}

func (m *memStore) ProductByBarcode(_ context.Context, shipmentID, barcode string) (*Product, error) {
	var found *Product
	for _, p := range m.products {
		if p.ShipmentID == shipmentID && p.Barcode == barcode {
			if found == nil || p.ScannedAt.Before(found.ScannedAt) {
				found = p
			}
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *memStore) ProductBySerial(_ context.Context, shipmentID, serial string) (*Product, error) {
	for _, p := range m.products {
		if p.ShipmentID == shipmentID && p.SerialNumber == serial && serial != "" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) InsertProduct(_ context.Context, p *Product) error {
	if p.SerialNumber != "" && p.ShipmentID != "" {
		for _, other := range m.products {
			if other.ShipmentID == p.ShipmentID && other.SerialNumber == p.SerialNumber {
				return &ConflictError{Message: "a product with this serial number already exists in the shipment"}
			}
		}
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memStore) AddProductQuantity(_ context.Context, productID string, qty int, at time.Time, userID string) error {
	p, ok := m.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.Quantity += qty
	p.ScannedAt = at
	p.ScannedByUserID = userID
	return nil
}

func (m *memStore) DeleteProduct(_ context.Context, productID string) (*Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.products, productID)
	return p, nil
}

func (m *memStore) ShipmentQuantityTotal(_ context.Context, shipmentID string) (int, error) {
	total := 0
	for _, p := range m.products {
		if p.ShipmentID == shipmentID {
			total += p.Quantity
		}
	}
	return total, nil
}

func (m *memStore) ActiveScanOperation(_ context.Context, shipmentID, userID string) (*ScanOperation, error) {
	for _, op := range m.ops {
		if op.ShipmentID == shipmentID && op.UserID == userID && op.Status == ScanActive {
			cp := *op
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) InsertScanOperation(_ context.Context, op *ScanOperation) error {
	cp := *op
	m.ops[op.ID] = &cp
	return nil
}

func (m *memStore) SetScanOperationCount(_ context.Context, opID string, count int) error {
	op, ok := m.ops[opID]
	if !ok {
		return ErrNotFound
	}
	op.ProductCount = count
	return nil
}

func (m *memStore) CloseScanOperation(_ context.Context, opID string, status ScanStatus, end time.Time, count int) error {
	op, ok := m.ops[opID]
	if !ok {
		return ErrNotFound
	}
	op.Status = status
	op.EndTime = &end
	op.ProductCount = count
	return nil
}

func (m *memStore) CloseActiveScanOperations(_ context.Context, shipmentID string, status ScanStatus, end time.Time) error {
	for _, op := range m.ops {
		if op.ShipmentID == shipmentID && op.Status == ScanActive {
			op.Status = status
			op.EndTime = &end
		}
	}
	return nil
}

func (m *memStore) RefreshActiveScanCounts(_ context.Context, shipmentID string, count int) error {
	for _, op := range m.ops {
		if op.ShipmentID == shipmentID && op.Status == ScanActive {
			op.ProductCount = count
		}
	}
	return nil
}

func (m *memStore) CarrierByID(_ context.Context, id string) (*Carrier, error) {
	c, ok := m.carriers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) activeOps(shipmentID string) []*ScanOperation {
	var out []*ScanOperation
	for _, op := range m.ops {
		if op.ShipmentID == shipmentID && op.Status == ScanActive {
			out = append(out, op)
		}
	}
	return out
}
