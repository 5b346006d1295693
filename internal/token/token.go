package token

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/idhub/authserver/types"
)

// Claims is the fixed claim set carried by session tokens.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim back into an account id.
func (c Claims) AccountID() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Subject), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid subject")
	}
	return id, nil
}

// Issuer mints and verifies signed session tokens. The signing key and
// token lifetime are fixed at construction and never rotate mid-process.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer with the given HS256 secret and token TTL.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the issuer's clock. Intended for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue mints a signed token for the account, carrying its id, email,
// and role. Tokens are stateless bearer credentials; nothing is stored
// server-side.
func (i *Issuer) Issue(account types.Account) (string, error) {
	now := i.now()
	claims := Claims{
		Email: account.Email,
		Role:  account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry and returns the token's claims.
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, errors.New("missing subject")
	}
	return claims, nil
}
