package release

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"
)

const defaultGitHubAPIBase = "https://api.github.com"

// GitHubProvider fetches release metadata from the GitHub REST API.
type GitHubProvider struct {
	client  *resty.Client
	apiBase string
}

// NewGitHubProvider creates a provider. token may be empty for public
// repositories.
func NewGitHubProvider(token string) *GitHubProvider {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/vnd.github+json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &GitHubProvider{client: client, apiBase: defaultGitHubAPIBase}
}

type githubRelease struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	HTMLURL     string     `json:"html_url"`
	PublishedAt *time.Time `json:"published_at"`
	Author      struct {
		Login string `json:"login"`
	} `json:"author"`
}

// FetchRelease looks the version up under each tag variant. A 404 on every
// variant is a miss (nil, nil); any other failure is returned as an error.
func (p *GitHubProvider) FetchRelease(ctx context.Context, repositoryURL, version string) (*ReleaseInfo, error) {
	owner, repo, err := parseGitHubRepository(repositoryURL)
	if err != nil {
		return nil, err
	}

	for _, tag := range TagCandidates(version) {
		var rel githubRelease
		resp, err := p.client.R().
			SetContext(ctx).
			SetResult(&rel).
			Get(fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", p.apiBase, owner, repo, tag))
		if err != nil {
			return nil, fmt.Errorf("github release lookup: %w", err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			continue
		}
		if resp.IsError() {
			return nil, fmt.Errorf("github release lookup: status %d", resp.StatusCode())
		}

		return &ReleaseInfo{
			TagName:     rel.TagName,
			Name:        rel.Name,
			Notes:       rel.Body,
			Author:      rel.Author.Login,
			URL:         rel.HTMLURL,
			PublishedAt: rel.PublishedAt,
		}, nil
	}
	return nil, nil
}

// parseGitHubRepository extracts owner and repo from a repository URL such
// as https://github.com/owner/repo or git@github.com:owner/repo.git.
func parseGitHubRepository(repositoryURL string) (string, string, error) {
	trimmed := strings.TrimSuffix(repositoryURL, ".git")
	trimmed = strings.TrimPrefix(trimmed, "git@github.com:")
	if idx := strings.Index(trimmed, "github.com/"); idx >= 0 {
		trimmed = trimmed[idx+len("github.com/"):]
	}

	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("unsupported repository URL: %s", repositoryURL)
	}
	return parts[0], parts[1], nil
}
