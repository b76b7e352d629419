package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain errors for the plan package, checked with errors.Is().
var (
	// ErrNotFound is returned when a package ID does not exist.
	ErrNotFound = errors.New("plan: not found")

	// ErrExists is returned when creating a package with a name that
	// already exists.
	ErrExists = errors.New("plan: already exists")

	// ErrInvalid is returned when package validation fails.
	ErrInvalid = errors.New("plan: invalid")
)

// Package is a service tier, e.g. "Home 20M" at 20 Mbps for a monthly price.
type Package struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       int64   `json:"price"`
	Bandwidth   *string `json:"bandwidth,omitempty"`
	Description *string `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to create a package.
func (p *Package) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalid
	}
	return nil
}

// Repository defines the interface for package persistence operations.
type Repository interface {
	// GetByID retrieves a package by ID.
	// Returns ErrNotFound if the package does not exist.
	GetByID(ctx context.Context, id int64) (*Package, error)

	// List retrieves all packages ordered by name.
	List(ctx context.Context) ([]Package, error)

	// Create inserts a new package and populates its ID.
	// Returns ErrExists if the name is already taken.
	Create(ctx context.Context, pkg *Package) error

	// Update modifies an existing package.
	// Returns ErrNotFound if the package does not exist.
	Update(ctx context.Context, pkg *Package) error

	// Delete removes a package by ID.
	// Returns ErrNotFound if the package does not exist.
	Delete(ctx context.Context, id int64) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const packageColumns = "id, name, price, bandwidth, description, created_at, updated_at"

// GetByID retrieves a package by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Package, error) {
	query := "SELECT " + packageColumns + " FROM packages WHERE id = ?"

	pkg, err := scanPackage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying package by id: %w", err)
	}
	return pkg, nil
}

// List retrieves all packages ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Package, error) {
	query := "SELECT " + packageColumns + " FROM packages ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying packages: %w", err)
	}
	defer rows.Close()

	var packages []Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning package: %w", err)
		}
		packages = append(packages, *pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating packages: %w", err)
	}

	return packages, nil
}

// Create inserts a new package and populates its ID.
func (r *SQLiteRepository) Create(ctx context.Context, pkg *Package) error {
	if err := pkg.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	pkg.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO packages (name, price, bandwidth, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		pkg.Name,
		pkg.Price,
		nullableString(pkg.Bandwidth),
		nullableString(pkg.Description),
		pkg.CreatedAt.Format(time.RFC3339),
		pkg.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting package: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	pkg.ID = id

	return nil
}

// Update modifies an existing package.
func (r *SQLiteRepository) Update(ctx context.Context, pkg *Package) error {
	if err := pkg.Validate(); err != nil {
		return err
	}

	pkg.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE packages SET name = ?, price = ?, bandwidth = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		pkg.Name,
		pkg.Price,
		nullableString(pkg.Bandwidth),
		nullableString(pkg.Description),
		pkg.UpdatedAt.Format(time.RFC3339),
		pkg.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("updating package: %w", err)
	}

	return checkAffected(result)
}

// Delete removes a package by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM packages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting package: %w", err)
	}

	return checkAffected(result)
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(scanner rowScanner) (*Package, error) {
	var p Package
	var bandwidth, description sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&bandwidth,
		&description,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bandwidth.Valid {
		p.Bandwidth = &bandwidth.String
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

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
