package otp

import (
	"testing"
	"time"
)

func TestGenerateProducesNumericCode(t *testing.T) {
	manager := NewManager(10*time.Minute, 6)

	challenge, err := manager.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(challenge.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", challenge.Code)
	}
	for _, r := range challenge.Code {
		if r < '0' || r > '9' {
			t.Fatalf("expected numeric code, got %q", challenge.Code)
		}
	}
	if challenge.CodeHash == "" || challenge.CodeHash == challenge.Code {
		t.Fatalf("expected a digest distinct from the code")
	}
}

func TestVerifyAcceptsCorrectCode(t *testing.T) {
	manager := NewManager(10*time.Minute, 6)

	challenge, err := manager.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !manager.Verify(challenge.CodeHash, &challenge.ExpiresAt, challenge.Code) {
		t.Fatal("expected correct code to verify")
	}
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	manager := NewManager(10*time.Minute, 6)

	challenge, err := manager.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	wrong := "000000"
	if wrong == challenge.Code {
		wrong = "000001"
	}
	if manager.Verify(challenge.CodeHash, &challenge.ExpiresAt, wrong) {
		t.Fatal("expected wrong code to fail")
	}
}

func TestVerifyFailsClosedWithoutChallenge(t *testing.T) {
	manager := NewManager(10*time.Minute, 6)

	if manager.Verify("", nil, "123456") {
		t.Fatal("expected verify without a challenge to fail")
	}
	expires := time.Now().Add(time.Minute)
	if manager.Verify("", &expires, "123456") {
		t.Fatal("expected verify without a stored digest to fail")
	}
}

func TestVerifyRejectsExpiredCode(t *testing.T) {
	now := time.Now()
	manager := NewManager(10*time.Minute, 6)
	manager.WithClock(func() time.Time { return now })

	challenge, err := manager.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	manager.WithClock(func() time.Time { return now.Add(11 * time.Minute) })
	if manager.Verify(challenge.CodeHash, &challenge.ExpiresAt, challenge.Code) {
		t.Fatal("expected expired code to fail")
	}
}

func TestNewChallengeInvalidatesPrior(t *testing.T) {
	manager := NewManager(10*time.Minute, 6)

	first, err := manager.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := manager.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Storing the second challenge replaces the first digest; the old
	// code no longer matches what is stored.
	if manager.Verify(second.CodeHash, &second.ExpiresAt, first.Code) && first.Code != second.Code {
		t.Fatal("expected prior code to fail against the new digest")
	}
	if !manager.Verify(second.CodeHash, &second.ExpiresAt, second.Code) {
		t.Fatal("expected the new code to verify")
	}
}
