// Package reports is the read side: listing and dashboard queries that join
// across shipments, products and carriers without going through the engine.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("reports: not found")

type Queries struct{ DB *pgxpool.Pool }

// ShipmentRow is a listing row: the shipment plus the carrier display fields
// and its product totals.
type ShipmentRow struct {
	ID                 string     `json:"id"`
	ShipmentNumber     string     `json:"shipment_number"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	EstimatedDeparture *time.Time `json:"estimated_departure,omitempty"`
	ActualDeparture    *time.Time `json:"actual_departure,omitempty"`
	CarrierID          string     `json:"transport_company_id"`
	CarrierName        string     `json:"carrier_name"`
	DriverName         string     `json:"driver_name"`
	LicensePlate       string     `json:"license_plate"`
	ProductKinds       int        `json:"product_kinds"`
	TotalQuantity      int        `json:"total_quantity"`
}

type ProductRow struct {
	ID             string    `json:"id"`
	Barcode        string    `json:"barcode"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	Quantity       int       `json:"quantity"`
	Category       string    `json:"category"`
	Brand          string    `json:"brand"`
	Model          string    `json:"model,omitempty"`
	SerialNumber   string    `json:"serial_number,omitempty"`
	ShipmentID     string    `json:"shipment_id,omitempty"`
	ShipmentNumber string    `json:"shipment_number,omitempty"`
	ScannedAt      time.Time `json:"scanned_at"`
}

type ShipmentDetail struct {
	ShipmentRow
	Products []ProductRow `json:"products"`
}

type SearchFilter struct {
	Number    string
	Status    string
	CarrierID string
	From      *time.Time
	To        *time.Time
}

type ShipmentStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

type DashboardStats struct {
	Shipments        ShipmentStats `json:"shipments"`
	TotalProducts    int           `json:"total_products"`
	TotalQuantity    int           `json:"total_quantity"`
	ActiveCarriers   int           `json:"active_carriers"`
	ActiveUsers      int           `json:"active_users"`
	ScansToday       int           `json:"scans_today"`
	CompletedToday   int           `json:"completed_today"`
	ActiveOperations int           `json:"active_operations"`
}

const shipmentRowCols = `
	s.id, s.shipment_number, s.status, s.created_at, s.started_at,
	s.estimated_departure, s.actual_departure,
	tc.id, tc.name, tc.driver_name, tc.license_plate,
	COUNT(p.id), COALESCE(SUM(p.quantity), 0)`

const shipmentRowFrom = `
	FROM shipments s
	JOIN transport_companies tc ON tc.id = s.transport_company_id
	LEFT JOIN products p ON p.shipment_id = s.id`

const shipmentRowGroup = ` GROUP BY s.id, tc.id`

func scanShipmentRow(rows pgx.Row) (ShipmentRow, error) {
	var r ShipmentRow
	err := rows.Scan(&r.ID, &r.ShipmentNumber, &r.Status, &r.CreatedAt, &r.StartedAt,
		&r.EstimatedDeparture, &r.ActualDeparture,
		&r.CarrierID, &r.CarrierName, &r.DriverName, &r.LicensePlate,
		&r.ProductKinds, &r.TotalQuantity)
	return r, err
}

func (q *Queries) listShipments(ctx context.Context, where string, args ...any) ([]ShipmentRow, error) {
	sql := `SELECT` + shipmentRowCols + shipmentRowFrom
	if where != "" {
		sql += ` WHERE ` + where
	}
	sql += shipmentRowGroup + ` ORDER BY s.created_at DESC`

	rows, err := q.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ShipmentRow
	for rows.Next() {
		r, err := scanShipmentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Active means still in flight: Pending or InProgress.
func (q *Queries) ActiveShipments(ctx context.Context) ([]ShipmentRow, error) {
	return q.listShipments(ctx, `s.status IN ('Pending','InProgress')`)
}

func (q *Queries) AllShipments(ctx context.Context) ([]ShipmentRow, error) {
	return q.listShipments(ctx, "")
}

func (q *Queries) ShipmentsByStatus(ctx context.Context, status string) ([]ShipmentRow, error) {
	return q.listShipments(ctx, `s.status = $1`, status)
}

// SearchShipments applies whatever filters are set; empty filter lists all.
func (q *Queries) SearchShipments(ctx context.Context, f SearchFilter) ([]ShipmentRow, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Number != "" {
		add(`s.shipment_number ILIKE '%%' || $%d || '%%'`, f.Number)
	}
	if f.Status != "" {
		add(`s.status = $%d`, f.Status)
	}
	if f.CarrierID != "" {
		add(`s.transport_company_id = $%d`, f.CarrierID)
	}
	if f.From != nil {
		add(`s.created_at >= $%d`, *f.From)
	}
	if f.To != nil {
		add(`s.created_at <= $%d`, *f.To)
	}
	return q.listShipments(ctx, strings.Join(conds, " AND "), args...)
}

func (q *Queries) ShipmentByID(ctx context.Context, id string) (*ShipmentDetail, error) {
	return q.shipmentDetail(ctx, `s.id = $1`, id)
}

func (q *Queries) ShipmentByNumber(ctx context.Context, number string) (*ShipmentDetail, error) {
	return q.shipmentDetail(ctx, `s.shipment_number = $1`, number)
}

func (q *Queries) shipmentDetail(ctx context.Context, where string, arg any) (*ShipmentDetail, error) {
	row := q.DB.QueryRow(ctx,
		`SELECT`+shipmentRowCols+shipmentRowFrom+` WHERE `+where+shipmentRowGroup, arg)
	r, err := scanShipmentRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	products, err := q.ProductsByShipment(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return &ShipmentDetail{ShipmentRow: r, Products: products}, nil
}

func (q *Queries) ShipmentStats(ctx context.Context) (*ShipmentStats, error) {
	var s ShipmentStats
	err := q.DB.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'Pending'),
		       COUNT(*) FILTER (WHERE status = 'InProgress'),
		       COUNT(*) FILTER (WHERE status = 'Completed'),
		       COUNT(*) FILTER (WHERE status = 'Cancelled')
		FROM shipments`).
		Scan(&s.Total, &s.Pending, &s.InProgress, &s.Completed, &s.Cancelled)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (q *Queries) Dashboard(ctx context.Context, today time.Time) (*DashboardStats, error) {
	stats, err := q.ShipmentStats(ctx)
	if err != nil {
		return nil, err
	}
	d := DashboardStats{Shipments: *stats}

	err = q.DB.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM products`).
		Scan(&d.TotalProducts, &d.TotalQuantity)
	if err != nil {
		return nil, err
	}
	err = q.DB.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM transport_companies WHERE is_active),
		       (SELECT COUNT(*) FROM users WHERE is_active),
		       (SELECT COUNT(*) FROM scan_operations WHERE status = 'Active')`).
		Scan(&d.ActiveCarriers, &d.ActiveUsers, &d.ActiveOperations)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	err = q.DB.QueryRow(ctx, `
		SELECT (SELECT COALESCE(SUM(product_count), 0) FROM scan_operations WHERE start_time >= $1),
		       (SELECT COUNT(*) FROM shipments WHERE status = 'Completed' AND updated_at >= $1)`,
		dayStart).
		Scan(&d.ScansToday, &d.CompletedToday)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const productRowCols = `
	p.id, p.barcode, p.name, p.sku, p.quantity, p.category, p.brand,
	COALESCE(p.model, ''), COALESCE(p.serial_number, ''),
	COALESCE(p.shipment_id::text, ''), COALESCE(s.shipment_number, ''), p.scanned_at`

const productRowFrom = `
	FROM products p
	LEFT JOIN shipments s ON s.id = p.shipment_id`

func (q *Queries) listProducts(ctx context.Context, tail string, args ...any) ([]ProductRow, error) {
	rows, err := q.DB.Query(ctx, `SELECT`+productRowCols+productRowFrom+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductRow
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.SKU, &p.Quantity, &p.Category,
			&p.Brand, &p.Model, &p.SerialNumber, &p.ShipmentID, &p.ShipmentNumber, &p.ScannedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) Products(ctx context.Context) ([]ProductRow, error) {
	return q.listProducts(ctx, ` ORDER BY p.scanned_at DESC`)
}

func (q *Queries) ProductByID(ctx context.Context, id string) (*ProductRow, error) {
	out, err := q.listProducts(ctx, ` WHERE p.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (q *Queries) ProductsByShipment(ctx context.Context, shipmentID string) ([]ProductRow, error) {
	return q.listProducts(ctx, ` WHERE p.shipment_id = $1 ORDER BY p.scanned_at`, shipmentID)
}

func (q *Queries) UnassignedProducts(ctx context.Context) ([]ProductRow, error) {
	return q.listProducts(ctx, ` WHERE p.shipment_id IS NULL ORDER BY p.scanned_at DESC`)
}

type ProductPage struct {
	Items    []ProductRow `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// SearchProducts matches barcode, name, sku or serial, paged.
func (q *Queries) SearchProducts(ctx context.Context, term string, page, pageSize int) (*ProductPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	where := ` WHERE p.barcode ILIKE '%' || $1 || '%'
		OR p.name ILIKE '%' || $1 || '%'
		OR p.sku ILIKE '%' || $1 || '%'
		OR p.serial_number ILIKE '%' || $1 || '%'`

	var total int
	if err := q.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products p`+where, term).Scan(&total); err != nil {
		return nil, err
	}
	items, err := q.listProducts(ctx,
		where+` ORDER BY p.scanned_at DESC LIMIT $2 OFFSET $3`,
		term, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}
