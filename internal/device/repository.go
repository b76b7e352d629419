package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
type Repository interface {
	// GetByID retrieves a device by ID.
	// Returns ErrNotFound if the device does not exist.
	GetByID(ctx context.Context, id int64) (*Device, error)

	// List retrieves all devices ordered by name.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a new device and populates its ID.
	// Returns ErrExists if the name is already taken.
	Create(ctx context.Context, dev *Device) error

	// Update modifies an existing device.
	// Returns ErrNotFound if the device does not exist.
	Update(ctx context.Context, dev *Device) error

	// Delete removes a device by ID. Subscribers referencing it keep
	// their rows with device_id cleared by the schema's FK action.
	Delete(ctx context.Context, id int64) error

	// CountAll returns the total number of devices.
	CountAll(ctx context.Context) (int, error)
}

const deviceColumns = `
	id, name, host, port, username, password, type, description,
	created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Device, error) {
	query := "SELECT" + deviceColumns + " FROM devices WHERE id = ?"

	dev, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return dev, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := "SELECT" + deviceColumns + " FROM devices ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *dev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Create inserts a new device and populates its ID.
func (r *SQLiteRepository) Create(ctx context.Context, dev *Device) error {
	if err := dev.Validate(); err != nil {
		return err
	}
	if dev.Port == 0 {
		dev.Port = 8728
	}
	if dev.Type == "" {
		dev.Type = TypeMikroTik
	}

	now := time.Now().UTC()
	if dev.CreatedAt.IsZero() {
		dev.CreatedAt = now
	}
	dev.UpdatedAt = now

	query := `
		INSERT INTO devices (name, host, port, username, password, type, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		dev.Name,
		dev.Host,
		dev.Port,
		dev.Username,
		dev.Password,
		dev.Type,
		nullableString(dev.Description),
		dev.CreatedAt.Format(time.RFC3339),
		dev.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	dev.ID = id

	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, dev *Device) error {
	if err := dev.Validate(); err != nil {
		return err
	}

	dev.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			name = ?, host = ?, port = ?, username = ?, password = ?,
			type = ?, description = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		dev.Name,
		dev.Host,
		dev.Port,
		dev.Username,
		dev.Password,
		dev.Type,
		nullableString(dev.Description),
		dev.UpdatedAt.Format(time.RFC3339),
		dev.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("updating device: %w", err)
	}

	return checkAffected(result)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	return checkAffected(result)
}

// CountAll returns the total number of devices.
func (r *SQLiteRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var description sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.Host,
		&d.Port,
		&d.Username,
		&d.Password,
		&d.Type,
		&description,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		d.Description = &description.String
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// checkAffected converts a zero-row UPDATE/DELETE into ErrNotFound.
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

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
