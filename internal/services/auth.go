package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/idhub/authserver/internal/mail"
	"github.com/idhub/authserver/internal/oauth"
	"github.com/idhub/authserver/internal/otp"
	"github.com/idhub/authserver/internal/store"
	"github.com/idhub/authserver/internal/token"
	"github.com/idhub/authserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	redirectAdmin = "/admin"
	redirectUser  = "/dashboard"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// AuthService sequences the authentication flows: local registration and
// login, OTP email verification, OAuth callbacks, and token issuance.
type AuthService struct {
	repo       AccountRepository
	otp        *otp.Manager
	tokens     *token.Issuer
	mailer     mail.Sender
	providers  map[string]oauth.Provider
	production bool
}

// NewAuthService wires the auth flows together. providers is keyed by
// provider name ("google", "github").
func NewAuthService(
	repo AccountRepository,
	otpManager *otp.Manager,
	issuer *token.Issuer,
	mailer mail.Sender,
	providers map[string]oauth.Provider,
	production bool,
) *AuthService {
	return &AuthService{
		repo:       repo,
		otp:        otpManager,
		tokens:     issuer,
		mailer:     mailer,
		providers:  providers,
		production: production,
	}
}

// RegisterInput carries a local registration request.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	AdminIntent bool
}

// LoginInput carries a local login request.
type LoginInput struct {
	Email       string
	Password    string
	AdminIntent bool
}

// Pending reports that an account is awaiting email verification. OTP is
// populated only outside production.
type Pending struct {
	Email string `json:"email"`
	OTP   string `json:"otp,omitempty"`
}

// Session is a successful authentication outcome.
type Session struct {
	Token    string        `json:"token"`
	Redirect string        `json:"redirect"`
	Account  types.Account `json:"account"`
}

// LoginResult is either a session or a pending-verification state,
// never both.
type LoginResult struct {
	Session *Session `json:"session,omitempty"`
	Pending *Pending `json:"pending,omitempty"`
}

// Register creates a local account, issues an OTP challenge, and hands
// the code to the mail capability. It never returns a token. A delivery
// failure fails the response but the created account remains; the client
// recovers via resend.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Pending, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || !emailPattern.MatchString(in.Email) {
		return Pending{}, fmt.Errorf("%w: name and a valid email are required", ErrInvalidInput)
	}
	if in.Password == "" {
		return Pending{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return Pending{}, store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return Pending{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Pending{}, err
	}

	challenge, err := s.otp.Generate()
	if err != nil {
		return Pending{}, err
	}

	role := types.RoleUser
	if in.AdminIntent {
		role = types.RoleAdmin
	}

	account := types.Account{
		Method:          types.MethodLocal,
		Name:            in.Name,
		Email:           in.Email,
		Role:            role,
		PasswordHash:    string(hashed),
		IsEmailVerified: false,
		OTPCodeHash:     challenge.CodeHash,
		OTPExpiresAt:    &challenge.ExpiresAt,
	}
	if _, err := s.repo.Create(ctx, account); err != nil {
		return Pending{}, err
	}

	// The account is already persisted at this point; a failed delivery
	// fails the response without rolling it back.
	if err := s.mailer.SendOTP(ctx, in.Email, challenge.Code); err != nil {
		return Pending{}, fmt.Errorf("%w: mail delivery: %v", ErrUpstream, err)
	}

	return s.pending(in.Email, challenge.Code), nil
}

// Login verifies local credentials. The admin and user login surfaces
// are mutually exclusive: adminIntent must match the account's role.
// Unverified accounts get a fresh OTP and a pending state, never a token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Email = normalizeEmail(in.Email)

	account, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !account.IsLocal() {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(in.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if in.AdminIntent != (account.Role == types.RoleAdmin) {
		return LoginResult{}, ErrForbidden
	}

	if !account.IsEmailVerified {
		pending, err := s.reissueChallenge(ctx, account)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Pending: &pending}, nil
	}

	session, err := s.newSession(account)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Session: &session}, nil
}

// VerifyEmail checks the supplied code against the outstanding challenge.
// The code is consumed only on success: the challenge is cleared, the
// account marked verified, and a token issued.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (Session, error) {
	account, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return Session{}, err
	}

	if !s.otp.Verify(account.OTPCodeHash, account.OTPExpiresAt, code) {
		return Session{}, ErrInvalidOTP
	}

	account.IsEmailVerified = true
	account.OTPCodeHash = ""
	account.OTPExpiresAt = nil
	account, err = s.repo.Update(ctx, account)
	if err != nil {
		return Session{}, err
	}

	return s.newSession(account)
}

// ResendVerification issues a fresh challenge for an unverified local
// account, invalidating any prior code.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (Pending, error) {
	account, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return Pending{}, err
	}
	if !account.IsLocal() || account.IsEmailVerified {
		return Pending{}, fmt.Errorf("%w: account is not pending verification", ErrInvalidInput)
	}
	return s.reissueChallenge(ctx, account)
}

// OAuthCallback exchanges the provider code and resolves the account.
// Federated accounts bypass OTP verification: the provider has already
// proven control of the contact channel. New accounts created through
// the admin-flagged callback get the admin role; a pre-existing
// user-role account on that callback fails Forbidden rather than being
// silently promoted.
func (s *AuthService) OAuthCallback(ctx context.Context, providerName, code string, adminIntent bool) (Session, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return Session{}, fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, providerName)
	}

	profile, err := provider.Exchange(ctx, code)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	account, err := s.resolveProfile(ctx, provider.Name(), profile, adminIntent)
	if err != nil {
		return Session{}, err
	}

	if adminIntent && account.Role != types.RoleAdmin {
		return Session{}, ErrForbidden
	}

	return s.newSession(account)
}

// resolveProfile finds or creates the account linked to a provider
// profile. Profile drift on existing accounts is not synced back. A
// create that loses the duplicate race returns the winner's account.
func (s *AuthService) resolveProfile(ctx context.Context, method string, profile oauth.Profile, adminIntent bool) (types.Account, error) {
	account, err := s.repo.GetByProvider(ctx, method, profile.ID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Account{}, err
	}

	role := types.RoleUser
	if adminIntent {
		role = types.RoleAdmin
	}

	draft := types.Account{
		Method:          method,
		Name:            profile.DisplayName,
		Email:           normalizeEmail(profile.PrimaryEmail()),
		AvatarURL:       profile.FirstPhoto(),
		Role:            role,
		ProviderID:      profile.ID,
		ProviderEmail:   normalizeEmail(profile.PrimaryEmail()),
		IsEmailVerified: true,
	}
	account, err = s.repo.Create(ctx, draft)
	if err == nil {
		return account, nil
	}
	if errors.Is(err, store.ErrConflict) {
		// A concurrent callback for the same provider id won the create.
		return s.repo.GetByProvider(ctx, method, profile.ID)
	}
	return types.Account{}, err
}

func (s *AuthService) reissueChallenge(ctx context.Context, account types.Account) (Pending, error) {
	challenge, err := s.otp.Generate()
	if err != nil {
		return Pending{}, err
	}
	account.OTPCodeHash = challenge.CodeHash
	account.OTPExpiresAt = &challenge.ExpiresAt
	if _, err := s.repo.Update(ctx, account); err != nil {
		return Pending{}, err
	}
	if err := s.mailer.SendOTP(ctx, account.Email, challenge.Code); err != nil {
		return Pending{}, fmt.Errorf("%w: mail delivery: %v", ErrUpstream, err)
	}
	return s.pending(account.Email, challenge.Code), nil
}

func (s *AuthService) newSession(account types.Account) (Session, error) {
	tok, err := s.tokens.Issue(account)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:    tok,
		Redirect: redirectFor(account.Role),
		Account:  account,
	}, nil
}

func (s *AuthService) pending(email, code string) Pending {
	p := Pending{Email: email}
	if !s.production {
		p.OTP = code
	}
	return p
}

func redirectFor(role string) string {
	if role == types.RoleAdmin {
		return redirectAdmin
	}
	return redirectUser
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
