package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/idhub/authserver/config"
	"github.com/idhub/authserver/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider implements Provider against Google's OAuth 2.0 endpoints.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userinfoURL string
}

// NewGoogleProvider constructs a Google provider from config.
func NewGoogleProvider(cfg config.OAuthProviderConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: googleUserinfoURL,
	}
}

// WithUserinfoURL overrides the userinfo endpoint. Intended for tests.
func (p *GoogleProvider) WithUserinfoURL(url string) *GoogleProvider {
	p.userinfoURL = url
	return p
}

func (p *GoogleProvider) Name() string {
	return types.MethodGoogle
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: google: %v", ErrExchangeFailed, err)
	}

	var info struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := fetchJSON(ctx, p.oauth.Client(ctx, tok), p.userinfoURL, &info); err != nil {
		return Profile{}, fmt.Errorf("%w: google userinfo: %v", ErrExchangeFailed, err)
	}
	if strings.TrimSpace(info.Sub) == "" {
		return Profile{}, fmt.Errorf("%w: google userinfo: missing subject", ErrExchangeFailed)
	}

	profile := Profile{
		ID:          info.Sub,
		DisplayName: info.Name,
	}
	if info.Email != "" {
		profile.Emails = []string{info.Email}
	}
	if info.Picture != "" {
		profile.Photos = []string{info.Picture}
	}
	return profile, nil
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
