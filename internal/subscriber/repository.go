package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Repository defines the interface for subscriber persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a subscriber by database ID.
	// Returns ErrNotFound if the subscriber does not exist.
	GetByID(ctx context.Context, id int64) (*Subscriber, error)

	// GetByUsername retrieves a subscriber by PPPoE username.
	// Returns ErrNotFound if the subscriber does not exist.
	GetByUsername(ctx context.Context, username string) (*Subscriber, error)

	// GetAll retrieves all subscribers ordered by username.
	GetAll(ctx context.Context) ([]Subscriber, error)

	// ListByDevice retrieves all subscribers terminating on a router.
	ListByDevice(ctx context.Context, deviceID int64) ([]Subscriber, error)

	// ListByStatus retrieves all subscribers with the given status.
	ListByStatus(ctx context.Context, status Status) ([]Subscriber, error)

	// Create inserts a new subscriber and populates its ID.
	// Returns ErrExists if the username is already taken.
	Create(ctx context.Context, sub *Subscriber) error

	// Update applies a partial update. Nil params fields are unchanged.
	// Returns ErrNotFound if the subscriber does not exist.
	Update(ctx context.Context, id int64, params UpdateParams) error

	// UpdateStatus sets only the connection status.
	// Returns ErrNotFound if the subscriber does not exist.
	UpdateStatus(ctx context.Context, id int64, status Status) error

	// Delete removes a subscriber by ID.
	// Returns ErrNotFound if the subscriber does not exist.
	Delete(ctx context.Context, id int64) error

	// DeleteMany removes the given subscribers, returning how many existed.
	DeleteMany(ctx context.Context, ids []int64) (int64, error)

	// CountAll returns the total number of subscribers.
	CountAll(ctx context.Context) (int, error)

	// CountByStatus returns the number of subscribers with the given status.
	CountByStatus(ctx context.Context, status Status) (int, error)

	// NextCustomerID generates the next customer ID for the given day.
	NextCustomerID(ctx context.Context, now time.Time) (string, error)
}

// subscriberColumns is the canonical column list for SELECTs, kept in one
// place so scan order can't drift between queries.
const subscriberColumns = `
	id, username, customer_id, full_name, password, service_name,
	is_disabled, ip_address, mac_address, address, phone_number,
	latitude, longitude, device_id, odp_id, package_id, status,
	created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a subscriber by database ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Subscriber, error) {
	query := "SELECT" + subscriberColumns + " FROM pppoe_clients WHERE id = ?"

	sub, err := scanSubscriber(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying subscriber by id: %w", err)
	}
	return sub, nil
}

// GetByUsername retrieves a subscriber by PPPoE username.
func (r *SQLiteRepository) GetByUsername(ctx context.Context, username string) (*Subscriber, error) {
	query := "SELECT" + subscriberColumns + " FROM pppoe_clients WHERE username = ?"

	sub, err := scanSubscriber(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying subscriber by username: %w", err)
	}
	return sub, nil
}

// GetAll retrieves all subscribers ordered by username.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]Subscriber, error) {
	query := "SELECT" + subscriberColumns + " FROM pppoe_clients ORDER BY username"
	return r.querySubscribers(ctx, query)
}

// ListByDevice retrieves all subscribers terminating on a router.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID int64) ([]Subscriber, error) {
	query := "SELECT" + subscriberColumns + " FROM pppoe_clients WHERE device_id = ? ORDER BY username"
	return r.querySubscribers(ctx, query, deviceID)
}

// ListByStatus retrieves all subscribers with the given status.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, status Status) ([]Subscriber, error) {
	query := "SELECT" + subscriberColumns + " FROM pppoe_clients WHERE status = ? ORDER BY username"
	return r.querySubscribers(ctx, query, string(status))
}

// Create inserts a new subscriber and populates its ID.
func (r *SQLiteRepository) Create(ctx context.Context, sub *Subscriber) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if sub.ServiceName == "" {
		sub.ServiceName = DefaultServiceName
	}
	if sub.Status == "" {
		sub.Status = StatusOffline
	}

	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	query := `
		INSERT INTO pppoe_clients (
			username, customer_id, full_name, password, service_name,
			is_disabled, ip_address, mac_address, address, phone_number,
			latitude, longitude, device_id, odp_id, package_id, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		sub.Username,
		sub.CustomerID,
		sub.FullName,
		sub.Password,
		sub.ServiceName,
		boolToInt(sub.IsDisabled),
		nullableString(sub.IPAddress),
		nullableString(sub.MACAddress),
		nullableString(sub.Address),
		nullableString(sub.PhoneNumber),
		nullableString(sub.Latitude),
		nullableString(sub.Longitude),
		nullableInt64(sub.DeviceID),
		nullableInt64(sub.ODPID),
		nullableInt64(sub.PackageID),
		string(sub.Status),
		sub.CreatedAt.Format(time.RFC3339),
		sub.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting subscriber: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	sub.ID = id

	return nil
}

// Update applies a partial update to an existing subscriber.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, params UpdateParams) error {
	var sets []string
	var args []any

	addString := func(column string, v *string) {
		if v != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *v)
		}
	}
	addInt64 := func(column string, v *int64) {
		if v != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *v)
		}
	}

	addString("username", params.Username)
	addString("full_name", params.FullName)
	addString("password", params.Password)
	addString("service_name", params.ServiceName)
	if params.IsDisabled != nil {
		sets = append(sets, "is_disabled = ?")
		args = append(args, boolToInt(*params.IsDisabled))
	}
	addString("ip_address", params.IPAddress)
	addString("mac_address", params.MACAddress)
	addString("address", params.Address)
	addString("phone_number", params.PhoneNumber)
	addString("latitude", params.Latitude)
	addString("longitude", params.Longitude)
	addInt64("device_id", params.DeviceID)
	addInt64("odp_id", params.ODPID)
	addInt64("package_id", params.PackageID)

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339))
	args = append(args, id)

	query := "UPDATE pppoe_clients SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("updating subscriber: %w", err)
	}

	return checkAffected(result)
}

// UpdateStatus sets only the connection status.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}

	query := "UPDATE pppoe_clients SET status = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query,
		string(status),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating subscriber status: %w", err)
	}

	return checkAffected(result)
}

// Delete removes a subscriber by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM pppoe_clients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting subscriber: %w", err)
	}

	return checkAffected(result)
}

// DeleteMany removes the given subscribers, returning how many existed.
func (r *SQLiteRepository) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := "DELETE FROM pppoe_clients WHERE id IN (" + strings.Join(placeholders, ", ") + ")"
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting subscribers: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return affected, nil
}

// CountAll returns the total number of subscribers.
func (r *SQLiteRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pppoe_clients").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting subscribers: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of subscribers with the given status.
func (r *SQLiteRepository) CountByStatus(ctx context.Context, status Status) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pppoe_clients WHERE status = ?", string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting subscribers by status: %w", err)
	}
	return count, nil
}

// customerIDPrefixLen is the length of the YYMMDD date prefix.
const customerIDPrefixLen = 6

// NextCustomerID generates the next customer ID for the given day.
//
// IDs are the date as YYMMDD followed by a two-digit sequence starting at
// 01. The highest existing ID for the day is found by ordering on length
// first so that a three-digit sequence (overflow past 99) still sorts
// above two-digit ones. A malformed suffix resets the sequence to 01.
func (r *SQLiteRepository) NextCustomerID(ctx context.Context, now time.Time) (string, error) {
	prefix := now.UTC().Format("060102")

	var latest string
	err := r.db.QueryRowContext(ctx, `
		SELECT customer_id FROM pppoe_clients
		WHERE customer_id LIKE ?
		ORDER BY LENGTH(customer_id) DESC, customer_id DESC
		LIMIT 1`,
		prefix+"%",
	).Scan(&latest)

	seq := 1
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First subscriber of the day
	case err != nil:
		return "", fmt.Errorf("querying latest customer id: %w", err)
	default:
		if n, parseErr := strconv.Atoi(latest[customerIDPrefixLen:]); parseErr == nil {
			seq = n + 1
		}
	}

	return fmt.Sprintf("%s%02d", prefix, seq), nil
}

// querySubscribers executes a query and returns a slice of subscribers.
func (r *SQLiteRepository) querySubscribers(ctx context.Context, query string, args ...any) ([]Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscriber: %w", err)
		}
		subs = append(subs, *sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscribers: %w", err)
	}

	return subs, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSubscriber scans a row or rows result into a Subscriber.
func scanSubscriber(scanner rowScanner) (*Subscriber, error) {
	var s Subscriber
	var ipAddress, macAddress, address, phoneNumber sql.NullString
	var latitude, longitude sql.NullString
	var deviceID, odpID, packageID sql.NullInt64
	var isDisabled int
	var status string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&s.ID,
		&s.Username,
		&s.CustomerID,
		&s.FullName,
		&s.Password,
		&s.ServiceName,
		&isDisabled,
		&ipAddress,
		&macAddress,
		&address,
		&phoneNumber,
		&latitude,
		&longitude,
		&deviceID,
		&odpID,
		&packageID,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.IsDisabled = isDisabled != 0
	s.Status = Status(status)

	if ipAddress.Valid {
		s.IPAddress = &ipAddress.String
	}
	if macAddress.Valid {
		s.MACAddress = &macAddress.String
	}
	if address.Valid {
		s.Address = &address.String
	}
	if phoneNumber.Valid {
		s.PhoneNumber = &phoneNumber.String
	}
	if latitude.Valid {
		s.Latitude = &latitude.String
	}
	if longitude.Valid {
		s.Longitude = &longitude.String
	}
	if deviceID.Valid {
		s.DeviceID = &deviceID.Int64
	}
	if odpID.Valid {
		s.ODPID = &odpID.Int64
	}
	if packageID.Valid {
		s.PackageID = &packageID.Int64
	}

	var parseErr error
	s.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	s.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &s, nil
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

// nullableInt64 returns a sql.NullInt64 for optional int64 pointers.
func nullableInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
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
