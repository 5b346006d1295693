package types

import "time"

// Credential methods an account can be created with. Method is set at
// creation and never changes afterwards.
const (
	MethodLocal  = "local"
	MethodGoogle = "google"
	MethodGithub = "github"
)

// Authorization roles carried in session tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether role belongs to the closed role set.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// ValidMethod reports whether method belongs to the closed method set.
func ValidMethod(method string) bool {
	return method == MethodLocal || method == MethodGoogle || method == MethodGithub
}

// Account is the unified identity record, regardless of how the account
// was created. Method discriminates which credential fields are meaningful:
// PasswordHash for local accounts, ProviderID/ProviderEmail for federated ones.
type Account struct {
	// ID is the unique identifier of the account.
	ID int64 `json:"id" db:"id"`

	// Method is the credential method the account was created with.
	Method string `json:"method" db:"method"`

	// Name is the account's display name.
	Name string `json:"name" db:"name"`

	// Email is the account's email address, stored lowercased.
	Email string `json:"email" db:"email"`

	// AvatarURL points at the account's avatar image, if any.
	AvatarURL string `json:"avatar_url" db:"avatar_url"`

	// Role is the account's authorization level ("user" or "admin").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt digest of the local password.
	// Empty for federated accounts. Never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// ProviderID is the stable identifier assigned by the OAuth provider.
	// Empty for local accounts. Unique per provider across all accounts.
	ProviderID string `json:"-" db:"provider_id"`

	// ProviderEmail is the email the provider reported at first sign-in.
	ProviderEmail string `json:"-" db:"provider_email"`

	// IsEmailVerified reports whether a local account has completed the
	// OTP email challenge. Federated accounts are created verified.
	IsEmailVerified bool `json:"is_email_verified" db:"is_email_verified"`

	// OTPCodeHash is the digest of the outstanding verification code.
	// Empty when no challenge is outstanding. Never exposed.
	OTPCodeHash string `json:"-" db:"otp_code_hash"`

	// OTPExpiresAt is the deadline of the outstanding challenge.
	OTPExpiresAt *time.Time `json:"-" db:"otp_expires_at"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsLocal reports whether the account authenticates with a password.
func (a Account) IsLocal() bool {
	return a.Method == MethodLocal
}
