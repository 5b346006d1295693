package services

import (
	"context"
	"fmt"

	"github.com/idhub/authserver/types"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	GetByProvider(ctx context.Context, method, providerID string) (types.Account, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	Update(ctx context.Context, account types.Account) (types.Account, error)
}

// AccountService encapsulates account use-cases outside the auth flows.
type AccountService struct {
	repo AccountRepository
}

func NewAccountService(repo AccountRepository) *AccountService {
	return &AccountService{repo: repo}
}

func (s *AccountService) GetByID(ctx context.Context, id int64) (types.Account, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateRole sets the target account's role. Role must belong to the
// closed role set; authorization is enforced by the caller's middleware.
func (s *AccountService) UpdateRole(ctx context.Context, targetID int64, role string) (types.Account, error) {
	if !types.ValidRole(role) {
		return types.Account{}, fmt.Errorf("%w: role %q", ErrInvalidInput, role)
	}
	account, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.Account{}, err
	}
	account.Role = role
	return s.repo.Update(ctx, account)
}

// SetAvatar records the storage key of the account's uploaded avatar.
func (s *AccountService) SetAvatar(ctx context.Context, id int64, avatarURL string) (types.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Account{}, err
	}
	account.AvatarURL = avatarURL
	return s.repo.Update(ctx, account)
}
