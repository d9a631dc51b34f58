// Package githook registers the gateway's push webhook on a GitHub repository.
package githook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// NewClient creates an authenticated GitHub client, or nil without a token.
func NewClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return nil
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// WebhookURL is the delivery URL for a service behind base.
func WebhookURL(base, service string) string {
	return strings.TrimRight(base, "/") + "/webhook/" + service
}

// Registrar manages repository webhooks.
type Registrar struct {
	client *github.Client
}

// NewRegistrar wraps an existing client.
func NewRegistrar(client *github.Client) *Registrar {
	return &Registrar{client: client}
}

// EnsureWebhook creates a push webhook for hookURL unless one already
// points there. It reports whether a hook was created.
func (r *Registrar) EnsureWebhook(ctx context.Context, owner, repo, hookURL, secret string) (bool, error) {
	opts := &github.ListOptions{PerPage: 100}
	for {
		hooks, resp, err := r.client.Repositories.ListHooks(ctx, owner, repo, opts)
		if err != nil {
			return false, fmt.Errorf("listing webhooks: %w", err)
		}

		for _, hook := range hooks {
			if hook.Config == nil {
				continue
			}
			if url, ok := hook.Config["url"].(string); ok && url == hookURL {
				return false, nil
			}
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	active := true
	hookReq := &github.Hook{
		Events: []string{"push"},
		Active: &active,
		Config: map[string]interface{}{
			"url":          hookURL,
			"content_type": "json",
			"secret":       secret,
			"insecure_ssl": "0",
		},
	}

	if _, _, err := r.client.Repositories.CreateHook(ctx, owner, repo, hookReq); err != nil {
		return false, fmt.Errorf("creating webhook: %w", err)
	}

	return true, nil
}
