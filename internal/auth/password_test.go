package auth

import (
	"errors"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("guardia-turno-noche")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		password string
		want     bool
	}{
		{"guardia-turno-noche", true},
		{"guardia-turno-dia", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := VerifyPassword(tt.password, hash)
		if err != nil {
			t.Fatalf("VerifyPassword(%q) error = %v", tt.password, err)
		}
		if got != tt.want {
			t.Errorf("VerifyPassword(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}

	again, err := HashPassword("guardia-turno-noche")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if again == hash {
		t.Error("hashing the same password twice must use fresh salts")
	}
}

func TestHashPassword_Encoding(t *testing.T) {
	hash, err := HashPassword("x")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	p, err := parsePHC(hash)
	if err != nil {
		t.Fatalf("parsePHC(%q) error = %v", hash, err)
	}
	if p.cost != currentCost {
		t.Errorf("cost = %+v, want %+v", p.cost, currentCost)
	}
	if len(p.salt) != saltLen || len(p.key) != keyLen {
		t.Errorf("salt/key lengths = %d/%d, want %d/%d", len(p.salt), len(p.key), saltLen, keyLen)
	}
	if p.String() != hash {
		t.Errorf("re-encoded = %q, want %q", p.String(), hash)
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for name, hash := range map[string]string{
		"empty":         "",
		"plaintext":     "s3cret",
		"bcrypt":        "$2a$10$abcdefghijklmnopqrstuv",
		"missing key":   "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA",
		"old version":   "$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"garbled cost":  "$argon2id$v=19$memory=lots$c2FsdA$aGFzaA",
		"bad base64":    "$argon2id$v=19$m=65536,t=3,p=1$***$aGFzaA",
		"empty key":     "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$",
		"leading chars": "x$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := VerifyPassword("s3cret", hash); !errors.Is(err, ErrInvalidHash) {
				t.Errorf("VerifyPassword() error = %v, want ErrInvalidHash", err)
			}
		})
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("HashPassword(\"\") error = %v, want ErrEmptyPassword", err)
	}
}

func TestNeedsRehash(t *testing.T) {
	current, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	weak := phc{cost: argonCost{memory: 19 * 1024, time: 2, threads: 1}, salt: []byte("0123456789abcdef")}
	weak.key = weak.derive("s3cret", keyLen)

	tests := []struct {
		name string
		hash string
		want bool
	}{
		{"current cost", current, false},
		{"lower memory and passes", weak.String(), true},
		{"malformed", "plaintext", true},
	}
	for _, tt := range tests {
		if got := NeedsRehash(tt.hash); got != tt.want {
			t.Errorf("NeedsRehash(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}

	// Weak hashes still verify so operators can log in until rotated.
	if ok, err := VerifyPassword("s3cret", weak.String()); err != nil || !ok {
		t.Errorf("VerifyPassword(weak) = %v, %v; want true", ok, err)
	}
}
