package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argonCost holds the Argon2id parameters recorded in every PHC string.
type argonCost struct {
	memory  uint32 // KiB
	time    uint32
	threads uint8
}

// currentCost is used for new hashes: 64 MiB, 3 passes, 1 lane.
var currentCost = argonCost{memory: 64 * 1024, time: 3, threads: 1}

const (
	saltLen = 16
	keyLen  = 32
)

var b64 = base64.RawStdEncoding

// phc is a decoded $argon2id$v=19$m=..,t=..,p=..$<salt>$<key> string.
type phc struct {
	cost argonCost
	salt []byte
	key  []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.cost.memory, p.cost.time, p.cost.threads,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

// derive computes an n-byte key for password under p's salt and cost.
func (p phc) derive(password string, n uint32) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.cost.time, p.cost.memory, p.cost.threads, n)
}

func parsePHC(encoded string) (phc, error) {
	var p phc

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return p, fmt.Errorf("want $alg$v$params$salt$key, got %d fields", len(fields))
	}
	if fields[1] != "argon2id" {
		return p, fmt.Errorf("algorithm %q is not argon2id", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return p, fmt.Errorf("version field %q: %w", fields[2], err)
	}
	if version != argon2.Version {
		return p, fmt.Errorf("argon2 version %d not supported", version)
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.cost.memory, &p.cost.time, &p.cost.threads); err != nil {
		return p, fmt.Errorf("cost field %q: %w", fields[3], err)
	}

	var err error
	if p.salt, err = b64.DecodeString(fields[4]); err != nil {
		return p, fmt.Errorf("salt: %w", err)
	}
	if p.key, err = b64.DecodeString(fields[5]); err != nil {
		return p, fmt.Errorf("key: %w", err)
	}
	if len(p.key) == 0 {
		return p, fmt.Errorf("key is empty")
	}
	return p, nil
}

// HashPassword returns an Argon2id PHC string for password, suitable for
// security.auth.operators[].password_hash. `gatehouse hash-password` prints it.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	p := phc{cost: currentCost, salt: make([]byte, saltLen)}
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}
	p.key = p.derive(password, keyLen)
	return p.String(), nil
}

// VerifyPassword reports whether password matches encodedHash.
// A malformed hash returns an error wrapping ErrInvalidHash.
func VerifyPassword(password, encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	candidate := p.derive(password, uint32(len(p.key))) //nolint:gosec // G115: decoded key length is small
	return subtle.ConstantTimeCompare(p.key, candidate) == 1, nil
}

// NeedsRehash reports whether encodedHash is malformed or was produced
// with a lower cost than HashPassword currently uses.
func NeedsRehash(encodedHash string) bool {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return true
	}
	return p.cost.memory < currentCost.memory || p.cost.time < currentCost.time || len(p.key) < keyLen
}
