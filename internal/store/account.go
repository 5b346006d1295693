package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/idhub/authserver/types"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const accountColumns = `
	id, method, name, email, avatar_url, role, password_hash,
	provider_id, provider_email, is_email_verified,
	otp_code_hash, otp_expires_at, created_at, updated_at`

// AccountRepository handles persistence for accounts. It is the only
// component that touches account storage.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks an account up by email, case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE lower(email) = lower($1)
		ORDER BY id
		LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// GetByProvider looks an account up by its federated identity.
func (r *AccountRepository) GetByProvider(ctx context.Context, method, providerID string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE method = $1 AND provider_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, method, providerID))
}

// Create inserts a new account. It returns ErrConflict when a uniqueness
// constraint (local email, provider id) would be violated.
func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.Email = strings.ToLower(account.Email)

	const query = `
		INSERT INTO accounts (
			method, name, email, avatar_url, role, password_hash,
			provider_id, provider_email, is_email_verified,
			otp_code_hash, otp_expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		account.Method,
		account.Name,
		account.Email,
		account.AvatarURL,
		account.Role,
		account.PasswordHash,
		nullString(account.ProviderID),
		account.ProviderEmail,
		account.IsEmailVerified,
		account.OTPCodeHash,
		account.OTPExpiresAt,
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.Account{}, ErrConflict
		}
		return types.Account{}, err
	}
	return account, nil
}

// Update persists mutations to an existing account. Method is immutable
// and deliberately not part of the SET list.
func (r *AccountRepository) Update(ctx context.Context, account types.Account) (types.Account, error) {
	account.UpdatedAt = time.Now()
	account.Email = strings.ToLower(account.Email)

	const query = `
		UPDATE accounts
		SET name = $1,
			email = $2,
			avatar_url = $3,
			role = $4,
			password_hash = $5,
			provider_email = $6,
			is_email_verified = $7,
			otp_code_hash = $8,
			otp_expires_at = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		account.Name,
		account.Email,
		account.AvatarURL,
		account.Role,
		account.PasswordHash,
		account.ProviderEmail,
		account.IsEmailVerified,
		account.OTPCodeHash,
		account.OTPExpiresAt,
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		return types.Account{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Account{}, err
	}
	if affected == 0 {
		return types.Account{}, ErrNotFound
	}
	return account, nil
}

func (r *AccountRepository) scanOne(row *sql.Row) (types.Account, error) {
	var account types.Account
	var providerID sql.NullString
	var otpExpiresAt sql.NullTime
	err := row.Scan(
		&account.ID,
		&account.Method,
		&account.Name,
		&account.Email,
		&account.AvatarURL,
		&account.Role,
		&account.PasswordHash,
		&providerID,
		&account.ProviderEmail,
		&account.IsEmailVerified,
		&account.OTPCodeHash,
		&otpExpiresAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	if providerID.Valid {
		account.ProviderID = providerID.String
	}
	if otpExpiresAt.Valid {
		expires := otpExpiresAt.Time
		account.OTPExpiresAt = &expires
	}
	return account, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
