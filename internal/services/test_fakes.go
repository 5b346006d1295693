package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/idhub/authserver/internal/oauth"
	"github.com/idhub/authserver/internal/store"
	"github.com/idhub/authserver/types"
)

// In-memory fakes used by the service and handler tests. They enforce
// the same uniqueness invariants the Postgres schema does.

type fakeRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]types.Account
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: map[int64]types.Account{}}
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(email)
	for id := int64(1); id <= r.nextID; id++ {
		account, ok := r.accounts[id]
		if ok && strings.ToLower(account.Email) == email {
			return account, nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (r *fakeRepo) GetByProvider(_ context.Context, method, providerID string) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Method == method && account.ProviderID == providerID {
			return account, nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (r *fakeRepo) Create(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if account.Method == types.MethodLocal &&
			existing.Method == types.MethodLocal &&
			strings.EqualFold(existing.Email, account.Email) {
			return types.Account{}, store.ErrConflict
		}
		if account.ProviderID != "" &&
			existing.Method == account.Method &&
			existing.ProviderID == account.ProviderID {
			return types.Account{}, store.ErrConflict
		}
	}
	r.nextID++
	account.ID = r.nextID
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.Email = strings.ToLower(account.Email)
	r.accounts[account.ID] = account
	return account, nil
}

func (r *fakeRepo) Update(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return types.Account{}, store.ErrNotFound
	}
	account.UpdatedAt = time.Now()
	account.Email = strings.ToLower(account.Email)
	r.accounts[account.ID] = account
	return account, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

type sentMail struct {
	To   string
	Code string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) SendOTP(_ context.Context, toAddress, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("mail backend unavailable")
	}
	m.sent = append(m.sent, sentMail{To: toAddress, Code: code})
	return nil
}

func (m *fakeMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type fakeProvider struct {
	name    string
	profile oauth.Profile
	err     error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Exchange(_ context.Context, _ string) (oauth.Profile, error) {
	if p.err != nil {
		return oauth.Profile{}, p.err
	}
	return p.profile, nil
}
