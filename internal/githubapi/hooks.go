package githubapi

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
)

// WebhookEvents are the events the server needs to gate pushes and pull
// requests and to collect build reports.
var WebhookEvents = []string{"push", "pull_request", "status", "check_run"}

// RegisterWebhook creates a webhook delivering to url unless one already
// exists. created reports whether a new hook was made.
func (r *Repository) RegisterWebhook(ctx context.Context, url, secret string) (created bool, err error) {
	hooks, _, err := r.client.Repositories.ListHooks(ctx, r.owner, r.repo, nil)
	if err != nil {
		return false, fmt.Errorf("listing webhooks: %w", err)
	}

	for _, hook := range hooks {
		if hook.Config != nil {
			if existing, ok := hook.Config["url"].(string); ok && existing == url {
				return false, nil
			}
		}
	}

	hookConfig := map[string]interface{}{
		"url":          url,
		"content_type": "json",
		"secret":       secret,
		"insecure_ssl": "0",
	}

	hookReq := &github.Hook{
		Events: WebhookEvents,
		Active: github.Bool(true),
		Config: hookConfig,
	}

	if _, _, err := r.client.Repositories.CreateHook(ctx, r.owner, r.repo, hookReq); err != nil {
		return false, fmt.Errorf("creating webhook: %w", err)
	}

	return true, nil
}
