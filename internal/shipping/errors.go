package shipping

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("shipping: not found")
	ErrForbidden    = errors.New("shipping: forbidden")
	ErrInvalidInput = errors.New("shipping: invalid input")
)

// InvalidTransitionError reports a disallowed status change.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition shipment from %q to %q (allowed: %v)", e.From, e.To, e.Allowed)
}

// InvalidStateError reports an operation attempted against a shipment whose
// current status does not permit it.
type InvalidStateError struct {
	Status  Status
	Allowed []Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("operation not allowed while shipment is %q (requires one of %v)", e.Status, e.Allowed)
}

// ProductSummary is the slice of an existing row returned with conflicts so
// the client can show what it collided with.
type ProductSummary struct {
	ID        string    `json:"id"`
	Barcode   string    `json:"barcode"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	ScannedAt time.Time `json:"scanned_at"`
}

// ConflictError reports a uniqueness violation: duplicate serial number
// within a shipment, or duplicate shipment number. Existing is nil when the
// colliding row is not a product.
type ConflictError struct {
	Message  string
	Existing *ProductSummary
}

func (e *ConflictError) Error() string { return e.Message }

func summarize(p *Product) *ProductSummary {
	return &ProductSummary{
		ID:        p.ID,
		Barcode:   p.Barcode,
		Name:      p.Name,
		Quantity:  p.Quantity,
		ScannedAt: p.ScannedAt,
	}
}
