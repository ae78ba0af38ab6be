package buildhealth

import (
	"github.com/goliatone/go-buildhealth/core"
	"github.com/goliatone/go-buildhealth/providers"
	"github.com/goliatone/go-buildhealth/providers/github"
	"github.com/goliatone/go-buildhealth/providers/jenkins"
	"github.com/goliatone/go-buildhealth/webhooks"
)

func GitHubNormalizer() core.Normalizer {
	return github.NewNormalizer()
}

func JenkinsNormalizer() core.Normalizer {
	return jenkins.NewNormalizer()
}

// DefaultNormalizerRegistry registers every built-in provider
// normalizer.
func DefaultNormalizerRegistry() *providers.Registry {
	return providers.NewDefaultRegistry()
}

// GitHubWebhookRoute verifies X-Hub-Signature-256 HMAC signatures over
// the raw delivery body.
func GitHubWebhookRoute(secret string) webhooks.Route {
	return webhooks.Route{
		Kind:     core.ProviderKindGitHubActions,
		Verifier: webhooks.NewGitHubVerifier(secret),
	}
}

// JenkinsWebhookRoute verifies the shared X-Jenkins-Token header.
func JenkinsWebhookRoute(token string) webhooks.Route {
	return webhooks.Route{
		Kind:     core.ProviderKindJenkins,
		Verifier: webhooks.NewJenkinsVerifier(token),
	}
}
