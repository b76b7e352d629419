package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for a generated admin password.
const seedPasswordBytes = 16

// EnsureAdmin creates the initial admin account on first boot if no users
// exist. The configured username and password are used when set; with no
// configured password a random one is generated and logged so the operator
// can log in and change it. Returns the generated password, empty if
// seeding was skipped or the password came from configuration.
func EnsureAdmin(ctx context.Context, userRepo UserRepository, username, password string, logger *slog.Logger) (string, error) {
	count, err := userRepo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	if username == "" {
		username = "admin"
	}

	generated := ""
	if password == "" {
		passwordBytes := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(passwordBytes)
		generated = password
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         RoleAdmin,
	}

	if err := userRepo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated != "" {
		logger.Warn("seed admin account created",
			"username", username,
			"password", generated,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "username", username)
	}

	return generated, nil
}
