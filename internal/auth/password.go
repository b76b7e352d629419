package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id costs for operator console passwords. The few operator
// accounts a deployment has make the 64 MiB memory cost a non-issue.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

// HashPassword derives an Argon2id hash of password and encodes it as a
// PHC string, $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>. The costs
// travel inside the string, so hashes written under older parameters
// stay verifiable after the constants above change.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches the PHC-encoded hash,
// comparing in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	salt, want, costs, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt, costs.time, costs.memory, costs.threads, uint32(len(want))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

type argonCosts struct {
	time    uint32
	memory  uint32
	threads uint8
}

// parsePHC splits a stored Argon2id PHC string into salt, hash, and the
// costs it was produced with.
func parsePHC(encoded string) ([]byte, []byte, argonCosts, error) {
	var costs argonCosts

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, costs, fmt.Errorf("invalid PHC hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, costs, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, costs, fmt.Errorf("parsing version: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &costs.memory, &costs.time, &costs.threads); err != nil {
		return nil, nil, costs, fmt.Errorf("parsing parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, costs, fmt.Errorf("decoding salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, costs, fmt.Errorf("decoding hash: %w", err)
	}

	return salt, hash, costs, nil
}
