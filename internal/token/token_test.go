package token

import (
	"testing"
	"time"

	"github.com/idhub/authserver/types"
)

func testAccount() types.Account {
	return types.Account{
		ID:    42,
		Email: "a@x.com",
		Role:  types.RoleAdmin,
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	tok, err := issuer.Issue(testAccount())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	id, err := claims.AccountID()
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected subject 42, got %d", id)
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("unexpected email claim %q", claims.Email)
	}
	if claims.Role != types.RoleAdmin {
		t.Fatalf("unexpected role claim %q", claims.Role)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	now := time.Now()
	issuer := NewIssuer("test-secret", time.Minute)
	issuer.WithClock(func() time.Time { return now })

	tok, err := issuer.Issue(testAccount())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	issuer.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := issuer.Verify(tok); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	tok, err := NewIssuer("secret-one", time.Hour).Issue(testAccount())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := NewIssuer("secret-two", time.Hour).Verify(tok); err == nil {
		t.Fatal("expected token signed with another key to fail")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	if _, err := issuer.Verify("not-a-token"); err == nil {
		t.Fatal("expected malformed token to fail")
	}
}
