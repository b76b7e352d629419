package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UserRepository defines the interface for operator account persistence.
type UserRepository interface {
	// GetByID retrieves a user by ID. Returns ErrUserNotFound if missing.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByUsername retrieves a user by login name.
	// Returns ErrUserNotFound if missing.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Create inserts a new user and populates its ID.
	// Returns ErrUserExists if the username is taken.
	Create(ctx context.Context, user *User) error

	// UpdatePassword replaces a user's password hash.
	// Returns ErrUserNotFound if missing.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// Count returns the total number of users.
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new SQLite-backed user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = "id, username, password_hash, role, created_at, updated_at"

// GetByID retrieves a user by ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by login name.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = ?"

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by username: %w", err)
	}
	return user, nil
}

// Create inserts a new user and populates its ID.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.Role == "" {
		user.Role = RoleAdmin
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.Username,
		user.PasswordHash,
		string(user.Role),
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	user.ID = id

	return nil
}

// UpdatePassword replaces a user's password hash.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the total number of users.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(scanner rowScanner) (*User, error) {
	var u User
	var role string
	var createdAt, updatedAt string

	err := scanner.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)

	var parseErr error
	u.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	u.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &u, nil
}
