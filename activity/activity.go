// Package activity summarises who takes part in a repository's pull requests.
package activity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	gh *gh.Client
}

// NewClient builds a GitHub client. An empty token uses unauthenticated access.
func NewClient(token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	c := gh.NewClient(httpClient)
	if token = strings.TrimSpace(token); token != "" {
		c = c.WithAuthToken(token)
	}
	return &Client{gh: c}
}

// WithBaseURL points the client at another API root, such as GitHub Enterprise.
func (c *Client) WithBaseURL(raw string) (*Client, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	c.gh.BaseURL = u
	return c, nil
}

// APIError is a non-2xx GitHub response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api http %d: %s", e.StatusCode, e.Message)
}

func wrapError(err error, operation string) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return fmt.Errorf("%s: %w", operation, &APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message})
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// ParseRepo splits "owner/name".
func ParseRepo(raw string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(raw), "/")
	owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", raw)
	}
	return owner, name, nil
}

type PullActivity struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	State        string    `json:"state"`
	Author       string    `json:"author"`
	UpdatedAt    time.Time `json:"updated_at"`
	Participants []string  `json:"participants"`
}

type Options struct {
	// State is open, closed or all.
	State string
	Since time.Time
	Limit int
}

// PullRequests lists pull requests with the author and every issue commenter.
func (c *Client) PullRequests(ctx context.Context, owner, repo string, opts Options) ([]PullActivity, error) {
	state := strings.TrimSpace(opts.State)
	if state == "" {
		state = "all"
	}
	listOpts := &gh.PullRequestListOptions{
		State:       state,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var out []PullActivity
	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, listOpts)
		if err != nil {
			return nil, wrapError(err, "list pull requests")
		}
		for _, pr := range prs {
			updated := pr.GetUpdatedAt().Time
			if !opts.Since.IsZero() && updated.Before(opts.Since) {
				// sorted by updated desc
				return out, nil
			}
			commenters, err := c.commenters(ctx, owner, repo, pr.GetNumber())
			if err != nil {
				return nil, err
			}
			author := pr.GetUser().GetLogin()
			out = append(out, PullActivity{
				Number:       pr.GetNumber(),
				Title:        pr.GetTitle(),
				State:        pr.GetState(),
				Author:       author,
				UpdatedAt:    updated,
				Participants: participants(author, commenters),
			})
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return out, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		listOpts.Page = resp.NextPage
	}
}

func (c *Client) commenters(ctx context.Context, owner, repo string, number int) ([]string, error) {
	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	var out []string
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, wrapError(err, fmt.Sprintf("list comments of #%d", number))
		}
		for _, cm := range comments {
			if login := cm.GetUser().GetLogin(); login != "" {
				out = append(out, login)
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// participants is the author followed by the other logins, deduplicated and sorted.
func participants(author string, others []string) []string {
	seen := map[string]bool{}
	var rest []string
	for _, login := range others {
		if login == author || seen[login] {
			continue
		}
		seen[login] = true
		rest = append(rest, login)
	}
	sort.Strings(rest)
	if author == "" {
		return rest
	}
	return append([]string{author}, rest...)
}

// Format renders one line per pull request.
func Format(items []PullActivity) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "#%d %s (@%s) participants: %s\n", it.Number, it.Title, it.Author, strings.Join(it.Participants, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
