package shipping

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the pgx-backed Store. The zero value is not usable; construct
// with NewPGStore.
type PGStore struct {
	db   querier
	pool *pgxpool.Pool // nil when bound to an open transaction
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool, pool: pool}
}

func (s *PGStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// already inside a transaction
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PGStore{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// uniqueViolation maps postgres 23505 errors onto the conflict taxonomy.
// The partial unique index on (serial_number, shipment_id) and the unique
// shipment_number column are the source of truth for dedupe; the engine's
// pre-checks are only an optimization.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "products_serial_shipment_uniq":
		return &ConflictError{Message: "a product with this serial number already exists in the shipment"}
	case "shipments_shipment_number_key":
		return &ConflictError{Message: "a shipment with this number already exists"}
	}
	return &ConflictError{Message: "record already exists"}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const shipmentCols = `id, shipment_number, transport_company_id, status, started_at,
       created_at, COALESCE(created_by_user_id::text, ''), updated_at, estimated_departure, actual_departure`

func scanShipment(row pgx.Row) (*Shipment, error) {
	var sh Shipment
	err := row.Scan(&sh.ID, &sh.ShipmentNumber, &sh.TransportCompanyID, &sh.Status, &sh.StartedAt,
		&sh.CreatedAt, &sh.CreatedByUserID, &sh.UpdatedAt, &sh.EstimatedDeparture, &sh.ActualDeparture)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *PGStore) CreateShipment(ctx context.Context, sh *Shipment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO shipments(id, shipment_number, transport_company_id, status,
		                      created_at, created_by_user_id, estimated_departure)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sh.ID, sh.ShipmentNumber, sh.TransportCompanyID, sh.Status,
		sh.CreatedAt, nullable(sh.CreatedByUserID), sh.EstimatedDeparture,
	)
	return uniqueViolation(err)
}

func (s *PGStore) ShipmentByID(ctx context.Context, id string) (*Shipment, error) {
	return scanShipment(s.db.QueryRow(ctx, `SELECT `+shipmentCols+` FROM shipments WHERE id=$1`, id))
}

func (s *PGStore) ShipmentByNumber(ctx context.Context, number string) (*Shipment, error) {
	return scanShipment(s.db.QueryRow(ctx, `SELECT `+shipmentCols+` FROM shipments WHERE shipment_number=$1`, number))
}

func (s *PGStore) UpdateShipmentState(ctx context.Context, sh *Shipment) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE shipments
		SET status=$2, started_at=$3, updated_at=$4, actual_departure=$5
		WHERE id=$1`,
		sh.ID, sh.Status, sh.StartedAt, sh.UpdatedAt, sh.ActualDeparture,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

const productCols = `id, barcode, name, COALESCE(description, ''), sku, quantity, category, brand,
       COALESCE(model, ''), COALESCE(serial_number, ''), COALESCE(shipment_id::text, ''),
       scanned_at, COALESCE(scanned_by_user_id::text, '')`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Barcode, &p.Name, &p.Description, &p.SKU, &p.Quantity, &p.Category,
		&p.Brand, &p.Model, &p.SerialNumber, &p.ShipmentID, &p.ScannedAt, &p.ScannedByUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) ProductByBarcode(ctx context.Context, shipmentID, barcode string) (*Product, error) {
	return scanProduct(s.db.QueryRow(ctx, `
		SELECT `+productCols+` FROM products
		WHERE shipment_id=$1 AND barcode=$2
		ORDER BY scanned_at
		LIMIT 1`, shipmentID, barcode))
}

func (s *PGStore) ProductBySerial(ctx context.Context, shipmentID, serial string) (*Product, error) {
	return scanProduct(s.db.QueryRow(ctx, `
		SELECT `+productCols+` FROM products
		WHERE shipment_id=$1 AND serial_number=$2`, shipmentID, serial))
}

func (s *PGStore) InsertProduct(ctx context.Context, p *Product) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO products(id, barcode, name, description, sku, quantity, category, brand,
		                     model, serial_number, shipment_id, scanned_at, scanned_by_user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.Barcode, p.Name, nullable(p.Description), p.SKU, p.Quantity, p.Category, p.Brand,
		nullable(p.Model), nullable(p.SerialNumber), nullable(p.ShipmentID), p.ScannedAt, nullable(p.ScannedByUserID),
	)
	return uniqueViolation(err)
}

func (s *PGStore) AddProductQuantity(ctx context.Context, productID string, qty int, at time.Time, userID string) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE products
		SET quantity = quantity + $2, scanned_at=$3, scanned_by_user_id=$4
		WHERE id=$1`,
		productID, qty, at, nullable(userID),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteProduct(ctx context.Context, productID string) (*Product, error) {
	return scanProduct(s.db.QueryRow(ctx, `
		DELETE FROM products WHERE id=$1
		RETURNING `+productCols, productID))
}

func (s *PGStore) ShipmentQuantityTotal(ctx context.Context, shipmentID string) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM products WHERE shipment_id=$1`, shipmentID).Scan(&total)
	return total, err
}

func scanOperation(row pgx.Row) (*ScanOperation, error) {
	var op ScanOperation
	err := row.Scan(&op.ID, &op.ShipmentID, &op.UserID, &op.ProductCount, &op.StartTime, &op.EndTime, &op.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

const scanOpCols = `id, shipment_id, user_id, product_count, start_time, end_time, status`

func (s *PGStore) ActiveScanOperation(ctx context.Context, shipmentID, userID string) (*ScanOperation, error) {
	return scanOperation(s.db.QueryRow(ctx, `
		SELECT `+scanOpCols+` FROM scan_operations
		WHERE shipment_id=$1 AND user_id=$2 AND status=$3
		ORDER BY start_time
		LIMIT 1`, shipmentID, userID, ScanActive))
}

func (s *PGStore) InsertScanOperation(ctx context.Context, op *ScanOperation) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO scan_operations(id, shipment_id, user_id, product_count, start_time, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		op.ID, op.ShipmentID, op.UserID, op.ProductCount, op.StartTime, op.Status,
	)
	return err
}

func (s *PGStore) SetScanOperationCount(ctx context.Context, opID string, count int) error {
	_, err := s.db.Exec(ctx, `UPDATE scan_operations SET product_count=$2 WHERE id=$1`, opID, count)
	return err
}

func (s *PGStore) CloseScanOperation(ctx context.Context, opID string, status ScanStatus, end time.Time, count int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scan_operations SET status=$2, end_time=$3, product_count=$4 WHERE id=$1`,
		opID, status, end, count,
	)
	return err
}

func (s *PGStore) CloseActiveScanOperations(ctx context.Context, shipmentID string, status ScanStatus, end time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scan_operations SET status=$2, end_time=$3
		WHERE shipment_id=$1 AND status=$4`,
		shipmentID, status, end, ScanActive,
	)
	return err
}

func (s *PGStore) RefreshActiveScanCounts(ctx context.Context, shipmentID string, count int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scan_operations SET product_count=$2
		WHERE shipment_id=$1 AND status=$3`,
		shipmentID, count, ScanActive,
	)
	return err
}

func (s *PGStore) CarrierByID(ctx context.Context, id string) (*Carrier, error) {
	var c Carrier
	err := s.db.QueryRow(ctx, `
		SELECT id, name, phone, driver_name, license_plate, is_active
		FROM transport_companies WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.DriverName, &c.LicensePlate, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
