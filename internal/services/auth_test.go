package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/idhub/authserver/internal/oauth"
	"github.com/idhub/authserver/internal/otp"
	"github.com/idhub/authserver/internal/store"
	"github.com/idhub/authserver/internal/token"
	"github.com/idhub/authserver/types"
)

type authFixture struct {
	service  *AuthService
	repo     *fakeRepo
	mailer   *fakeMailer
	issuer   *token.Issuer
	otp      *otp.Manager
	google   *fakeProvider
	now      time.Time
	setClock func(time.Time)
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	now := time.Now()
	clock := &now
	nowFunc := func() time.Time { return *clock }

	repo := newFakeRepo()
	mailer := &fakeMailer{}
	issuer := token.NewIssuer("test-secret", time.Hour).WithClock(nowFunc)
	otpManager := otp.NewManager(10*time.Minute, 6).WithClock(nowFunc)
	google := &fakeProvider{
		name: types.MethodGoogle,
		profile: oauth.Profile{
			ID:          "goog-123",
			DisplayName: "G User",
			Emails:      []string{"g@x.com"},
			Photos:      []string{"https://img/x.png"},
		},
	}

	providers := map[string]oauth.Provider{types.MethodGoogle: google}
	service := NewAuthService(repo, otpManager, issuer, mailer, providers, false)

	return &authFixture{
		service:  service,
		repo:     repo,
		mailer:   mailer,
		issuer:   issuer,
		otp:      otpManager,
		google:   google,
		now:      now,
		setClock: func(at time.Time) { *clock = at },
	}
}

func registerInput() RegisterInput {
	return RegisterInput{
		Name:     "A",
		Email:    "a@x.com",
		Password: "p1p1p1p1",
	}
}

func TestRegisterCreatesUnverifiedAccountWithoutToken(t *testing.T) {
	f := newAuthFixture(t)

	pending, err := f.service.Register(context.Background(), registerInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if f.repo.count() != 1 {
		t.Fatalf("expected exactly one account, got %d", f.repo.count())
	}
	account, err := f.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if account.IsEmailVerified {
		t.Fatal("expected account to be unverified")
	}
	if account.Role != types.RoleUser {
		t.Fatalf("expected user role, got %q", account.Role)
	}
	if account.PasswordHash == "" || account.PasswordHash == "p1p1p1p1" {
		t.Fatal("expected password to be stored hashed")
	}
	if pending.OTP == "" {
		t.Fatal("expected plaintext otp in non-production pending state")
	}
	if mail, ok := f.mailer.last(); !ok || mail.To != "a@x.com" || mail.Code != pending.OTP {
		t.Fatalf("expected otp delivered to a@x.com, got %+v", mail)
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	f := newAuthFixture(t)

	in := registerInput()
	in.Email = "  A@X.COM "
	if _, err := f.service.Register(context.Background(), in); err != nil {
		t.Fatalf("register: %v", err)
	}

	account, err := f.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if account.Email != "a@x.com" {
		t.Fatalf("expected lowercased email, got %q", account.Email)
	}
}

func TestRegisterAdminIntentSetsAdminRole(t *testing.T) {
	f := newAuthFixture(t)

	in := registerInput()
	in.AdminIntent = true
	if _, err := f.service.Register(context.Background(), in); err != nil {
		t.Fatalf("register: %v", err)
	}

	account, _ := f.repo.GetByEmail(context.Background(), "a@x.com")
	if account.Role != types.RoleAdmin {
		t.Fatalf("expected admin role, got %q", account.Role)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newAuthFixture(t)

	if _, err := f.service.Register(context.Background(), registerInput()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := f.service.Register(context.Background(), registerInput())
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected one account, got %d", f.repo.count())
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	f := newAuthFixture(t)

	in := registerInput()
	in.Email = "not-an-email"
	if _, err := f.service.Register(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad email, got %v", err)
	}

	in = registerInput()
	in.Password = ""
	if _, err := f.service.Register(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty password, got %v", err)
	}
}

func TestRegisterAcceptsAnyNonEmptyPassword(t *testing.T) {
	f := newAuthFixture(t)

	in := registerInput()
	in.Password = "p1"
	pending, err := f.service.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if pending.OTP == "" {
		t.Fatal("expected an otp challenge to be issued")
	}

	account, err := f.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if account.IsEmailVerified {
		t.Fatal("expected account to be unverified")
	}
	if _, err := f.service.VerifyEmail(context.Background(), "a@x.com", pending.OTP); err != nil {
		t.Fatalf("verify: %v", err)
	}

	result, err := f.service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "p1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Session == nil {
		t.Fatal("expected a session after verification")
	}
}

func TestRegisterMailFailureSurfacedAccountKept(t *testing.T) {
	f := newAuthFixture(t)
	f.mailer.fail = true

	_, err := f.service.Register(context.Background(), registerInput())
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	// The account is created before delivery and is not rolled back.
	if f.repo.count() != 1 {
		t.Fatalf("expected account to remain, got %d", f.repo.count())
	}
}

func (f *authFixture) registerAndVerify(t *testing.T, in RegisterInput) types.Account {
	t.Helper()
	pending, err := f.service.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.service.VerifyEmail(context.Background(), in.Email, pending.OTP); err != nil {
		t.Fatalf("verify: %v", err)
	}
	account, err := f.repo.GetByEmail(context.Background(), in.Email)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	return account
}

func TestLoginVerifiedAccountReturnsToken(t *testing.T) {
	f := newAuthFixture(t)
	f.registerAndVerify(t, registerInput())

	result, err := f.service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "p1p1p1p1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Session == nil || result.Pending != nil {
		t.Fatalf("expected a session, got %+v", result)
	}
	if result.Session.Redirect != redirectUser {
		t.Fatalf("expected user redirect, got %q", result.Session.Redirect)
	}

	claims, err := f.issuer.Verify(result.Session.Token)
	if err != nil {
		t.Fatalf("token verify: %v", err)
	}
	id, _ := claims.AccountID()
	if id != result.Session.Account.ID {
		t.Fatalf("token subject %d does not match account %d", id, result.Session.Account.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.registerAndVerify(t, registerInput())

	_, err := f.service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "wrongwrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginUnknownAccount(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Login(context.Background(), LoginInput{Email: "who@x.com", Password: "p1p1p1p1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginSurfacesAreMutuallyExclusive(t *testing.T) {
	f := newAuthFixture(t)
	f.registerAndVerify(t, registerInput())

	adminIn := registerInput()
	adminIn.Email = "root@x.com"
	adminIn.AdminIntent = true
	f.registerAndVerify(t, adminIn)

	// Admin surface against a user account.
	_, err := f.service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "p1p1p1p1", AdminIntent: true})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for admin intent on user account, got %v", err)
	}

	// User surface against an admin account.
	_, err = f.service.Login(context.Background(), LoginInput{Email: "root@x.com", Password: "p1p1p1p1"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for user intent on admin account, got %v", err)
	}

	// Matching surface succeeds.
	result, err := f.service.Login(context.Background(), LoginInput{Email: "root@x.com", Password: "p1p1p1p1", AdminIntent: true})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if result.Session.Redirect != redirectAdmin {
		t.Fatalf("expected admin redirect, got %q", result.Session.Redirect)
	}
}

func TestLoginUnverifiedReissuesChallenge(t *testing.T) {
	f := newAuthFixture(t)

	first, err := f.service.Register(context.Background(), registerInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := f.service.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "p1p1p1p1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Pending == nil || result.Session != nil {
		t.Fatalf("expected pending state, got %+v", result)
	}

	// The fresh challenge supersedes the registration code.
	if _, err := f.service.VerifyEmail(context.Background(), "a@x.com", first.OTP); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected superseded code to fail, got %v", err)
	}
	if _, err := f.service.VerifyEmail(context.Background(), "a@x.com", result.Pending.OTP); err != nil {
		t.Fatalf("expected fresh code to verify: %v", err)
	}
}

func TestVerifyEmailFlow(t *testing.T) {
	f := newAuthFixture(t)

	pending, err := f.service.Register(context.Background(), registerInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	wrong := "000000"
	if wrong == pending.OTP {
		wrong = "000001"
	}
	if _, err := f.service.VerifyEmail(context.Background(), "a@x.com", wrong); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected invalid otp, got %v", err)
	}
	account, _ := f.repo.GetByEmail(context.Background(), "a@x.com")
	if account.IsEmailVerified {
		t.Fatal("failed attempt must not verify the account")
	}

	// The code is not consumed by a failed attempt.
	session, err := f.service.VerifyEmail(context.Background(), "a@x.com", pending.OTP)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a token after verification")
	}
	account, _ = f.repo.GetByEmail(context.Background(), "a@x.com")
	if !account.IsEmailVerified {
		t.Fatal("expected account to be verified")
	}

	// Single use: the same code fails once consumed.
	if _, err := f.service.VerifyEmail(context.Background(), "a@x.com", pending.OTP); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected consumed code to fail, got %v", err)
	}
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	f := newAuthFixture(t)

	pending, err := f.service.Register(context.Background(), registerInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	f.setClock(f.now.Add(11 * time.Minute))
	if _, err := f.service.VerifyEmail(context.Background(), "a@x.com", pending.OTP); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected expired code to fail, got %v", err)
	}
}

func TestVerifyEmailUnknownAccount(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.VerifyEmail(context.Background(), "who@x.com", "123456")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResendInvalidatesPriorCode(t *testing.T) {
	f := newAuthFixture(t)

	first, err := f.service.Register(context.Background(), registerInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	second, err := f.service.ResendVerification(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("resend: %v", err)
	}

	if _, err := f.service.VerifyEmail(context.Background(), "a@x.com", first.OTP); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected old code to fail after resend, got %v", err)
	}
	if _, err := f.service.VerifyEmail(context.Background(), "a@x.com", second.OTP); err != nil {
		t.Fatalf("expected new code to verify: %v", err)
	}
}

func TestResendRejectsVerifiedAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.registerAndVerify(t, registerInput())

	_, err := f.service.ResendVerification(context.Background(), "a@x.com")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestOAuthCallbackCreatesAccountOnce(t *testing.T) {
	f := newAuthFixture(t)

	session, err := f.service.OAuthCallback(context.Background(), types.MethodGoogle, "code", false)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a token; federated accounts bypass OTP")
	}
	if session.Account.Role != types.RoleUser {
		t.Fatalf("expected user role, got %q", session.Account.Role)
	}
	if !session.Account.IsEmailVerified {
		t.Fatal("expected federated account to be created verified")
	}
	if session.Account.AvatarURL != "https://img/x.png" {
		t.Fatalf("expected avatar from profile, got %q", session.Account.AvatarURL)
	}

	again, err := f.service.OAuthCallback(context.Background(), types.MethodGoogle, "code", false)
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}
	if again.Account.ID != session.Account.ID {
		t.Fatal("expected the same provider id to resolve to the same account")
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected one account, got %d", f.repo.count())
	}
}

func TestOAuthCallbackAdminRouteCreatesAdmin(t *testing.T) {
	f := newAuthFixture(t)

	session, err := f.service.OAuthCallback(context.Background(), types.MethodGoogle, "code", true)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if session.Account.Role != types.RoleAdmin {
		t.Fatalf("expected admin role on admin-route creation, got %q", session.Account.Role)
	}
	if session.Redirect != redirectAdmin {
		t.Fatalf("expected admin redirect, got %q", session.Redirect)
	}
}

func TestOAuthCallbackAdminRouteDoesNotPromoteExistingUser(t *testing.T) {
	f := newAuthFixture(t)

	if _, err := f.service.OAuthCallback(context.Background(), types.MethodGoogle, "code", false); err != nil {
		t.Fatalf("user callback: %v", err)
	}

	_, err := f.service.OAuthCallback(context.Background(), types.MethodGoogle, "code", true)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden instead of silent promotion, got %v", err)
	}

	account, _ := f.repo.GetByProvider(context.Background(), types.MethodGoogle, "goog-123")
	if account.Role != types.RoleUser {
		t.Fatalf("expected role to remain user, got %q", account.Role)
	}
}

// racingRepo simulates losing the duplicate-provider create race: the
// first Create persists the row on behalf of a concurrent callback and
// reports a conflict to this caller.
type racingRepo struct {
	*fakeRepo
	raced bool
}

func (r *racingRepo) Create(ctx context.Context, account types.Account) (types.Account, error) {
	if !r.raced && account.ProviderID != "" {
		r.raced = true
		if _, err := r.fakeRepo.Create(ctx, account); err != nil {
			return types.Account{}, err
		}
		return types.Account{}, store.ErrConflict
	}
	return r.fakeRepo.Create(ctx, account)
}

func TestOAuthCallbackDuplicateCreateRaceResolvesWinner(t *testing.T) {
	f := newAuthFixture(t)
	repo := &racingRepo{fakeRepo: f.repo}
	service := NewAuthService(repo, f.otp, f.issuer, f.mailer,
		map[string]oauth.Provider{types.MethodGoogle: f.google}, false)

	session, err := service.OAuthCallback(context.Background(), types.MethodGoogle, "code", false)
	if err != nil {
		t.Fatalf("callback must absorb the lost create race: %v", err)
	}
	if !repo.raced {
		t.Fatal("expected the create conflict path to be exercised")
	}

	winner, err := f.repo.GetByProvider(context.Background(), types.MethodGoogle, "goog-123")
	if err != nil {
		t.Fatalf("winner lookup: %v", err)
	}
	if session.Account.ID != winner.ID {
		t.Fatalf("expected the winner's account %d, got %d", winner.ID, session.Account.ID)
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected exactly one account, got %d", f.repo.count())
	}
}

func TestOAuthCallbackProviderFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.google.err = oauth.ErrExchangeFailed

	_, err := f.service.OAuthCallback(context.Background(), types.MethodGoogle, "code", false)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if f.repo.count() != 0 {
		t.Fatal("provider failure must not create accounts")
	}
}

func TestOAuthCallbackUnknownProvider(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.OAuthCallback(context.Background(), "gitlab", "code", false)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUpdateRole(t *testing.T) {
	f := newAuthFixture(t)
	account := f.registerAndVerify(t, registerInput())
	accounts := NewAccountService(f.repo)

	updated, err := accounts.UpdateRole(context.Background(), account.ID, types.RoleAdmin)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if updated.Role != types.RoleAdmin {
		t.Fatalf("expected admin role, got %q", updated.Role)
	}

	if _, err := accounts.UpdateRole(context.Background(), account.ID, "owner"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}
	if _, err := accounts.UpdateRole(context.Background(), 9999, types.RoleUser); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for missing target, got %v", err)
	}
}
