package release

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v62/github"

	domain "github.com/oshokin/ghidra-grabber/internal/domain/release"
)

// Index defines read access to the release index.
type Index interface {
	List(ctx context.Context) ([]domain.Release, error)
}

// releasesPerPage is the largest page size accepted by the releases endpoint.
const releasesPerPage = 100

// errRepositoryRequired is returned when the index is created without a repository.
var errRepositoryRequired = errors.New("owner and repository must be provided")

// GitHubIndex lists releases of a GitHub repository.
type GitHubIndex struct {
	// client is the GitHub REST API client.
	client *github.Client
	// owner is the account publishing the releases.
	owner string
	// repository is the repository publishing the releases.
	repository string
}

// Option configures the GitHub index.
type Option func(*github.Client) error

// WithBaseURL points the client at a different API root (GitHub Enterprise or a test server).
func WithBaseURL(rawURL string) Option {
	return func(c *github.Client) error {
		if rawURL == "" {
			return nil
		}

		if !strings.HasSuffix(rawURL, "/") {
			rawURL += "/"
		}

		baseURL, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("parse api url: %w", err)
		}

		c.BaseURL = baseURL

		return nil
	}
}

// WithUserAgent sets the User-Agent header sent to the API.
func WithUserAgent(userAgent string) Option {
	return func(c *github.Client) error {
		if userAgent != "" {
			c.UserAgent = userAgent
		}

		return nil
	}
}

// NewGitHubIndex creates an index for owner/repository using httpClient for transport.
// A non-empty token is sent as a bearer token.
func NewGitHubIndex(
	httpClient *http.Client,
	owner, repository, token string,
	opts ...Option,
) (*GitHubIndex, error) {
	if owner == "" || repository == "" {
		return nil, errRepositoryRequired
	}

	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	return &GitHubIndex{
		client:     client,
		owner:      owner,
		repository: repository,
	}, nil
}

// List returns every release of the repository, newest first.
func (i *GitHubIndex) List(ctx context.Context) ([]domain.Release, error) {
	var (
		releases []domain.Release
		opts     = &github.ListOptions{PerPage: releasesPerPage}
	)

	for {
		page, response, err := i.client.Repositories.ListReleases(ctx, i.owner, i.repository, opts)
		if err != nil {
			return nil, fmt.Errorf("list releases of %s/%s: %w", i.owner, i.repository, err)
		}

		for _, r := range page {
			releases = append(releases, fromGitHub(r))
		}

		if response.NextPage == 0 {
			break
		}

		opts.Page = response.NextPage
	}

	domain.SortNewestFirst(releases)

	return releases, nil
}

// fromGitHub converts the API representation into the domain descriptor.
func fromGitHub(r *github.RepositoryRelease) domain.Release {
	assetURLs := make([]string, 0, len(r.Assets))
	for _, asset := range r.Assets {
		if downloadURL := asset.GetBrowserDownloadURL(); downloadURL != "" {
			assetURLs = append(assetURLs, downloadURL)
		}
	}

	return domain.Release{
		Name:      r.GetName(),
		TagName:   r.GetTagName(),
		CreatedAt: r.GetCreatedAt().Time,
		AssetURLs: assetURLs,
	}
}
