package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"strings"
	"time"
)

// Challenge is a freshly generated verification code together with the
// values the caller stores on the account. Only the digest is persisted;
// the plaintext code goes to the delivery capability and nowhere else.
type Challenge struct {
	Code      string
	CodeHash  string
	ExpiresAt time.Time
}

// Manager generates and checks one-time passcodes. Code length and TTL
// are fixed at construction.
type Manager struct {
	ttl    time.Duration
	length int
	now    func() time.Time
}

// NewManager constructs a Manager with the given challenge TTL and
// numeric code length.
func NewManager(ttl time.Duration, length int) *Manager {
	if length < 4 {
		length = 4
	}
	return &Manager{
		ttl:    ttl,
		length: length,
		now:    time.Now,
	}
}

// WithClock overrides the manager's clock. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Generate produces a fixed-length numeric code and its digest. Storing
// the returned digest and deadline replaces any prior challenge; there is
// never more than one valid code per account.
func (m *Manager) Generate() (Challenge, error) {
	code, err := numericCode(m.length)
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{
		Code:      code,
		CodeHash:  HashCode(code),
		ExpiresAt: m.now().Add(m.ttl),
	}, nil
}

// Verify checks a supplied code against the stored digest and deadline.
// It fails closed: no outstanding challenge, an expired challenge, or a
// digest mismatch all return false.
func (m *Manager) Verify(codeHash string, expiresAt *time.Time, supplied string) bool {
	if codeHash == "" || expiresAt == nil {
		return false
	}
	if m.now().After(*expiresAt) {
		return false
	}
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashCode(supplied)), []byte(codeHash)) == 1
}

// HashCode returns the hex SHA-256 digest of a code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func numericCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
