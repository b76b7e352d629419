package plant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for outside-plant persistence.
type Repository interface {
	// GetPOP retrieves a POP by ID. Returns ErrNotFound if missing.
	GetPOP(ctx context.Context, id int64) (*POP, error)

	// ListPOPs retrieves all POPs ordered by code.
	ListPOPs(ctx context.Context) ([]POP, error)

	// CreatePOP inserts a new POP and populates its ID.
	// Returns ErrExists if the code is already taken.
	CreatePOP(ctx context.Context, pop *POP) error

	// UpdatePOP modifies an existing POP. Returns ErrNotFound if missing.
	UpdatePOP(ctx context.Context, pop *POP) error

	// DeletePOP removes a POP. Its ODPs keep their rows with pop_id
	// cleared by the schema's FK action.
	DeletePOP(ctx context.Context, id int64) error

	// GetODP retrieves an ODP by ID. Returns ErrNotFound if missing.
	GetODP(ctx context.Context, id int64) (*ODP, error)

	// ListODPs retrieves all ODPs ordered by code.
	ListODPs(ctx context.Context) ([]ODP, error)

	// ListODPsByPOP retrieves the ODPs attached to a POP.
	ListODPsByPOP(ctx context.Context, popID int64) ([]ODP, error)

	// CreateODP inserts a new ODP and populates its ID.
	// Returns ErrExists if the code is already taken.
	CreateODP(ctx context.Context, odp *ODP) error

	// UpdateODP modifies an existing ODP. Returns ErrNotFound if missing.
	UpdateODP(ctx context.Context, odp *ODP) error

	// DeleteODP removes an ODP. Returns ErrNotFound if missing.
	DeleteODP(ctx context.Context, id int64) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const popColumns = "id, name, code, address, latitude, longitude, description, created_at, updated_at"

// GetPOP retrieves a POP by ID.
func (r *SQLiteRepository) GetPOP(ctx context.Context, id int64) (*POP, error) {
	query := "SELECT " + popColumns + " FROM pops WHERE id = ?"

	pop, err := scanPOP(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying pop by id: %w", err)
	}
	return pop, nil
}

// ListPOPs retrieves all POPs ordered by code.
func (r *SQLiteRepository) ListPOPs(ctx context.Context) ([]POP, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+popColumns+" FROM pops ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("querying pops: %w", err)
	}
	defer rows.Close()

	var pops []POP
	for rows.Next() {
		pop, err := scanPOP(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pop: %w", err)
		}
		pops = append(pops, *pop)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pops: %w", err)
	}
	return pops, nil
}

// CreatePOP inserts a new POP and populates its ID.
func (r *SQLiteRepository) CreatePOP(ctx context.Context, pop *POP) error {
	if err := pop.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if pop.CreatedAt.IsZero() {
		pop.CreatedAt = now
	}
	pop.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO pops (name, code, address, latitude, longitude, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pop.Name,
		pop.Code,
		nullableString(pop.Address),
		nullableFloat(pop.Latitude),
		nullableFloat(pop.Longitude),
		nullableString(pop.Description),
		pop.CreatedAt.Format(time.RFC3339),
		pop.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting pop: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	pop.ID = id
	return nil
}

// UpdatePOP modifies an existing POP.
func (r *SQLiteRepository) UpdatePOP(ctx context.Context, pop *POP) error {
	if err := pop.Validate(); err != nil {
		return err
	}

	pop.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE pops SET name = ?, code = ?, address = ?, latitude = ?, longitude = ?,
			description = ?, updated_at = ?
		WHERE id = ?`,
		pop.Name,
		pop.Code,
		nullableString(pop.Address),
		nullableFloat(pop.Latitude),
		nullableFloat(pop.Longitude),
		nullableString(pop.Description),
		pop.UpdatedAt.Format(time.RFC3339),
		pop.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("updating pop: %w", err)
	}

	return checkAffected(result)
}

// DeletePOP removes a POP by ID.
func (r *SQLiteRepository) DeletePOP(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM pops WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting pop: %w", err)
	}
	return checkAffected(result)
}

const odpColumns = "id, name, code, pop_id, address, latitude, longitude, total_ports, description, created_at, updated_at"

// GetODP retrieves an ODP by ID.
func (r *SQLiteRepository) GetODP(ctx context.Context, id int64) (*ODP, error) {
	query := "SELECT " + odpColumns + " FROM odps WHERE id = ?"

	odp, err := scanODP(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying odp by id: %w", err)
	}
	return odp, nil
}

// ListODPs retrieves all ODPs ordered by code.
func (r *SQLiteRepository) ListODPs(ctx context.Context) ([]ODP, error) {
	return r.queryODPs(ctx, "SELECT "+odpColumns+" FROM odps ORDER BY code")
}

// ListODPsByPOP retrieves the ODPs attached to a POP.
func (r *SQLiteRepository) ListODPsByPOP(ctx context.Context, popID int64) ([]ODP, error) {
	return r.queryODPs(ctx, "SELECT "+odpColumns+" FROM odps WHERE pop_id = ? ORDER BY code", popID)
}

// CreateODP inserts a new ODP and populates its ID.
func (r *SQLiteRepository) CreateODP(ctx context.Context, odp *ODP) error {
	if err := odp.Validate(); err != nil {
		return err
	}
	if odp.TotalPorts == 0 {
		odp.TotalPorts = defaultODPPorts
	}

	now := time.Now().UTC()
	if odp.CreatedAt.IsZero() {
		odp.CreatedAt = now
	}
	odp.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO odps (name, code, pop_id, address, latitude, longitude, total_ports, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		odp.Name,
		odp.Code,
		nullableInt64(odp.POPID),
		nullableString(odp.Address),
		nullableFloat(odp.Latitude),
		nullableFloat(odp.Longitude),
		odp.TotalPorts,
		nullableString(odp.Description),
		odp.CreatedAt.Format(time.RFC3339),
		odp.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting odp: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	odp.ID = id
	return nil
}

// UpdateODP modifies an existing ODP.
func (r *SQLiteRepository) UpdateODP(ctx context.Context, odp *ODP) error {
	if err := odp.Validate(); err != nil {
		return err
	}

	odp.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE odps SET name = ?, code = ?, pop_id = ?, address = ?, latitude = ?,
			longitude = ?, total_ports = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		odp.Name,
		odp.Code,
		nullableInt64(odp.POPID),
		nullableString(odp.Address),
		nullableFloat(odp.Latitude),
		nullableFloat(odp.Longitude),
		odp.TotalPorts,
		nullableString(odp.Description),
		odp.UpdatedAt.Format(time.RFC3339),
		odp.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("updating odp: %w", err)
	}

	return checkAffected(result)
}

// DeleteODP removes an ODP by ID.
func (r *SQLiteRepository) DeleteODP(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM odps WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting odp: %w", err)
	}
	return checkAffected(result)
}

func (r *SQLiteRepository) queryODPs(ctx context.Context, query string, args ...any) ([]ODP, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying odps: %w", err)
	}
	defer rows.Close()

	var odps []ODP
	for rows.Next() {
		odp, err := scanODP(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning odp: %w", err)
		}
		odps = append(odps, *odp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating odps: %w", err)
	}
	return odps, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPOP(scanner rowScanner) (*POP, error) {
	var p POP
	var address, description sql.NullString
	var latitude, longitude sql.NullFloat64
	var createdAt, updatedAt string

	err := scanner.Scan(
		&p.ID,
		&p.Name,
		&p.Code,
		&address,
		&latitude,
		&longitude,
		&description,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if address.Valid {
		p.Address = &address.String
	}
	if latitude.Valid {
		p.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		p.Longitude = &longitude.Float64
	}
	if description.Valid {
		p.Description = &description.String
	}

	var parseErr error
	p.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	p.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &p, nil
}

func scanODP(scanner rowScanner) (*ODP, error) {
	var o ODP
	var popID sql.NullInt64
	var address, description sql.NullString
	var latitude, longitude sql.NullFloat64
	var createdAt, updatedAt string

	err := scanner.Scan(
		&o.ID,
		&o.Name,
		&o.Code,
		&popID,
		&address,
		&latitude,
		&longitude,
		&o.TotalPorts,
		&description,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if popID.Valid {
		o.POPID = &popID.Int64
	}
	if address.Valid {
		o.Address = &address.String
	}
	if latitude.Valid {
		o.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		o.Longitude = &longitude.Float64
	}
	if description.Valid {
		o.Description = &description.String
	}

	var parseErr error
	o.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	o.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &o, nil
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullableInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
