package cmd

import (
	"fmt"
	"strings"

	"github.com/dukex/conveyor/pkg/secrets"
)

const envSecretPrefix = "CONVEYOR_SECRET_"

// NewSecretsResolver creates a resolver from a provider URL.
// "redis://host/db?scope=acme" resolves from a Redis hash; "env://" or
// an empty URL resolves from CONVEYOR_SECRET_* environment variables.
func NewSecretsResolver(providerURL string) secrets.Resolver {
	switch parseScheme(providerURL) {
	case "redis", "rediss":
		url, scope := splitRedisScope(providerURL)

		resolver, err := secrets.NewRedis(url, scope)
		if err != nil {
			panic(fmt.Errorf("failed to create redis secrets resolver: %w", err))
		}

		return resolver
	default:
		return secrets.NewEnv(envSecretPrefix)
	}
}

// splitRedisScope pulls the scope query parameter off the URL so the
// rest can be handed to the redis client as-is.
func splitRedisScope(providerURL string) (string, string) {
	url, query, found := strings.Cut(providerURL, "?")
	if !found {
		return providerURL, "default"
	}

	scope := "default"

	for _, pair := range strings.Split(query, "&") {
		if value, ok := strings.CutPrefix(pair, "scope="); ok {
			scope = value

			continue
		}

		if strings.Contains(url, "?") {
			url += "&" + pair
		} else {
			url += "?" + pair
		}
	}

	return url, scope
}
