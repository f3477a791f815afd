package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

const githubUserURL = "https://api.github.com/user"

type githubUser struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// GithubAuth runs the GitHub OAuth code flow and resolves the login of the
// user who granted access.
type GithubAuth struct {
	Config *oauth2.Config
	// UserURL is the GitHub user endpoint; tests point it elsewhere.
	UserURL string
}

// NewGithubAuth returns nil when conf is nil, meaning GitHub login is off.
func NewGithubAuth(conf *oauth2.Config) *GithubAuth {
	if conf == nil {
		return nil
	}
	return &GithubAuth{Config: conf, UserURL: githubUserURL}
}

func (g *GithubAuth) AuthCodeURL(state string) string {
	return g.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Login exchanges an OAuth code and returns the GitHub login of the user who
// granted it.
func (g *GithubAuth) Login(ctx context.Context, code string) (string, error) {
	token, err := g.Config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("oauth exchange: %w", err)
	}
	return g.fetchUser(ctx, g.Config.Client(ctx, token))
}

func (g *GithubAuth) fetchUser(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch github user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch github user: status %d", resp.StatusCode)
	}
	var u githubUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return "", fmt.Errorf("decode github user: %w", err)
	}
	if u.Login == "" {
		return "", fmt.Errorf("github user has no login")
	}
	return u.Login, nil
}
