package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/idhub/authserver/config"
	"github.com/idhub/authserver/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GithubProvider implements Provider against GitHub's OAuth endpoints.
type GithubProvider struct {
	oauth     *oauth2.Config
	userURL   string
	emailsURL string
}

// NewGithubProvider constructs a GitHub provider from config.
func NewGithubProvider(cfg config.OAuthProviderConfig) *GithubProvider {
	return &GithubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL:   githubUserURL,
		emailsURL: githubEmailsURL,
	}
}

// WithAPIURLs overrides the GitHub API endpoints. Intended for tests.
func (p *GithubProvider) WithAPIURLs(userURL, emailsURL string) *GithubProvider {
	p.userURL = userURL
	p.emailsURL = emailsURL
	return p
}

func (p *GithubProvider) Name() string {
	return types.MethodGithub
}

func (p *GithubProvider) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: github: %v", ErrExchangeFailed, err)
	}
	client := p.oauth.Client(ctx, tok)

	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := fetchJSON(ctx, client, p.userURL, &user); err != nil {
		return Profile{}, fmt.Errorf("%w: github user: %v", ErrExchangeFailed, err)
	}
	if user.ID == 0 {
		return Profile{}, fmt.Errorf("%w: github user: missing id", ErrExchangeFailed)
	}

	displayName := user.Name
	if strings.TrimSpace(displayName) == "" {
		displayName = user.Login
	}

	profile := Profile{
		ID:          strconv.FormatInt(user.ID, 10),
		DisplayName: displayName,
	}
	if user.AvatarURL != "" {
		profile.Photos = []string{user.AvatarURL}
	}
	if user.Email != "" {
		profile.Emails = []string{user.Email}
	} else if email := p.primaryEmail(ctx, client); email != "" {
		// The profile email is often hidden; the emails endpoint still
		// reports the verified primary address.
		profile.Emails = []string{email}
	}
	return profile, nil
}

func (p *GithubProvider) primaryEmail(ctx context.Context, client *http.Client) string {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := fetchJSON(ctx, client, p.emailsURL, &emails); err != nil {
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}
