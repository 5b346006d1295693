// Package oauth wraps the outbound OAuth 2.0 provider integrations. Each
// provider exchanges an authorization code for the caller's profile; the
// rest of the system only ever sees the Profile value.
package oauth

import (
	"context"
	"errors"
)

// ErrExchangeFailed wraps any provider-side failure during the code
// exchange or profile fetch. Callers treat it as an upstream failure,
// never as an authentication outcome.
var ErrExchangeFailed = errors.New("oauth exchange failed")

// Profile is the provider-asserted identity returned by a successful
// exchange.
type Profile struct {
	ID          string
	DisplayName string
	Emails      []string
	Photos      []string
}

// PrimaryEmail returns the first reported email, or "".
func (p Profile) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}

// FirstPhoto returns the first reported photo URL, or "".
func (p Profile) FirstPhoto() string {
	if len(p.Photos) == 0 {
		return ""
	}
	return p.Photos[0]
}

// Provider exchanges an authorization code for the holder's profile.
type Provider interface {
	// Name is the provider's stable identifier ("google", "github").
	Name() string

	// Exchange trades the authorization code for the provider profile.
	// Failures (denied consent, network errors, malformed responses)
	// are reported as errors wrapping ErrExchangeFailed.
	Exchange(ctx context.Context, code string) (Profile, error)
}
