// Package carriers manages the transport companies shipments are assigned to.
package carriers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("carriers: not found")

// PlateConflictError reports a create that collided on license plate, which
// is unique case-insensitively. Existing carries the row already holding it.
type PlateConflictError struct {
	Plate    string
	Existing *Company
}

func (e *PlateConflictError) Error() string {
	return fmt.Sprintf("carriers: license plate %s already registered", e.Plate)
}

type Company struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	DriverName   string    `json:"driver_name"`
	LicensePlate string    `json:"license_plate"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateInput struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	DriverName   string `json:"driver_name"`
	LicensePlate string `json:"license_plate"`
}

type Repo struct{ DB *pgxpool.Pool }

const companyCols = `id, name, phone, driver_name, license_plate, is_active, created_at`

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.DriverName, &c.LicensePlate, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ByID(ctx context.Context, id string) (*Company, error) {
	return scanCompany(r.DB.QueryRow(ctx, `SELECT `+companyCols+` FROM transport_companies WHERE id=$1`, id))
}

func (r *Repo) byPlate(ctx context.Context, plate string) (*Company, error) {
	return scanCompany(r.DB.QueryRow(ctx,
		`SELECT `+companyCols+` FROM transport_companies WHERE LOWER(license_plate)=LOWER($1)`, plate))
}

// List returns companies newest first. With activeOnly only active rows are
// included, which is what the shipment creation form wants.
func (r *Repo) List(ctx context.Context, activeOnly bool) ([]Company, error) {
	q := `SELECT ` + companyCols + ` FROM transport_companies`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, in CreateInput) (*Company, error) {
	c := &Company{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		DriverName:   strings.TrimSpace(in.DriverName),
		LicensePlate: strings.ToUpper(strings.TrimSpace(in.LicensePlate)),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO transport_companies(id, name, phone, driver_name, license_plate, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.Name, c.Phone, c.DriverName, c.LicensePlate, c.IsActive, c.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		existing, lookupErr := r.byPlate(ctx, c.LicensePlate)
		if lookupErr != nil {
			existing = nil
		}
		return nil, &PlateConflictError{Plate: c.LicensePlate, Existing: existing}
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repo) SetActive(ctx context.Context, id string, active bool) error {
	ct, err := r.DB.Exec(ctx, `UPDATE transport_companies SET is_active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
