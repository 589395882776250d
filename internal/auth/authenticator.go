package auth

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// minSecretLength matches the config validation rule for security.jwt.secret.
const minSecretLength = 32

// Operator is a gate operator allowed to register and move devices.
type Operator struct {
	Username     string
	PasswordHash string
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator checks operator credentials against configured Argon2id
// hashes and issues access tokens.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Authenticator struct {
	operators map[string]string // lowercased username -> PHC hash
	secret    string
	siteID    string
	ttl       time.Duration

	mu  sync.RWMutex
	now func() time.Time
}

// NewAuthenticator builds an Authenticator. Usernames are case-insensitive.
func NewAuthenticator(operators []Operator, secret, siteID string, ttl time.Duration) (*Authenticator, error) {
	if len(operators) == 0 {
		return nil, ErrNoOperators
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrWeakSecret, minSecretLength)
	}

	byName := make(map[string]string, len(operators))
	for _, op := range operators {
		byName[strings.ToLower(strings.TrimSpace(op.Username))] = op.PasswordHash
	}

	return &Authenticator{
		operators: byName,
		secret:    secret,
		siteID:    siteID,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// StaleHashes returns, sorted, the operators whose password hash is
// malformed or weaker than what HashPassword produces today.
func (a *Authenticator) StaleHashes() []string {
	var stale []string
	for name, hash := range a.operators {
		if NeedsRehash(hash) {
			stale = append(stale, name)
		}
	}
	slices.Sort(stale)
	return stale
}

// Login verifies credentials and returns a signed access token.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func (a *Authenticator) Login(username, password string) (*Token, error) {
	name := strings.ToLower(strings.TrimSpace(username))
	hash, ok := a.operators[name]
	if !ok || password == "" {
		return nil, ErrInvalidCredentials
	}

	match, err := VerifyPassword(password, hash)
	if err != nil {
		return nil, fmt.Errorf("verifying operator %q: %w", name, err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	a.mu.RLock()
	now := a.now()
	a.mu.RUnlock()

	ttl := a.ttl
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	signed, err := GenerateAccessToken(name, a.siteID, a.secret, ttl, now)
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
		ExpiresAt:   now.Add(ttl).UTC(),
	}, nil
}

// Verify parses an access token and returns the operator username.
func (a *Authenticator) Verify(token string) (string, error) {
	claims, err := ParseToken(token, a.secret)
	if err != nil {
		return "", err
	}
	if _, ok := a.operators[claims.Subject]; !ok {
		return "", fmt.Errorf("%w: unknown operator", ErrTokenInvalid)
	}
	return claims.Subject, nil
}
