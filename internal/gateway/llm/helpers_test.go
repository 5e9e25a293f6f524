package llm

import "storefront/internal/config"

func configFor(provider string) config.ChatConfig {
	return config.ChatConfig{Provider: provider}
}
