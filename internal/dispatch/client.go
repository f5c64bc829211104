// Package dispatch triggers workflows in a downstream repository's automation
// system once a package has been published. It speaks the GitHub
// workflow-dispatch API; any compatible endpoint works for tests.
package dispatch

import (
	"context"
	"fmt"
	"net/http"

	"resty.dev/v3"

	"github.com/shipline/shipline/internal/ctxlog"
)

const defaultBaseURL = "https://api.github.com"

// Client sends authenticated dispatch requests.
type Client struct {
	http *resty.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default API endpoint. Tests use this
// to target a local server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.http.SetBaseURL(url) }
}

// WithHTTPClient substitutes a pre-configured resty client.
func WithHTTPClient(hc *resty.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a dispatch client.
func New(opts ...Option) *Client {
	c := &Client{http: resty.New()}
	c.http.SetBaseURL(defaultBaseURL)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying HTTP client resources.
func (c *Client) Close() error {
	return c.http.Close()
}

// workflowDispatchBody is the wire payload of a workflow-dispatch request.
type workflowDispatchBody struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

// WorkflowDispatch triggers the named workflow on ref in repo ("owner/name"),
// passing inputs (for a release pipeline, the computed version string). The
// API acknowledges with 204 No Content; anything else is an error.
func (c *Client) WorkflowDispatch(ctx context.Context, token, repo, workflow, ref string, inputs map[string]string) error {
	logger := ctxlog.FromContext(ctx)

	if token == "" {
		return fmt.Errorf("dispatch requires an authentication token")
	}
	if repo == "" || workflow == "" {
		return fmt.Errorf("dispatch requires both a repository and a workflow")
	}
	if ref == "" {
		ref = "main"
	}

	logger.Debug("Sending workflow dispatch.", "repo", repo, "workflow", workflow, "ref", ref)

	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/vnd.github+json").
		SetBody(workflowDispatchBody{Ref: ref, Inputs: inputs}).
		Post(fmt.Sprintf("/repos/%s/actions/workflows/%s/dispatches", repo, workflow))
	if err != nil {
		return fmt.Errorf("workflow dispatch to %s failed: %w", repo, err)
	}
	if res.StatusCode() != http.StatusNoContent {
		return fmt.Errorf("workflow dispatch to %s rejected: %s: %s", repo, res.Status(), res.String())
	}
	return nil
}
