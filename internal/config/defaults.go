package config

const (
	chatSystemPrompt = "You are a helpful assistant that answers questions about the world."

	blogSystemPrompt = "You are an expert blog writer. Write a complete, well structured blog post " +
		"about the given title. Format the answer as HTML using <h2>, <h3>, <p>, <ul> and <li> " +
		"elements only, without <html>, <head> or <body> wrappers."
)

// DefaultProviders mirrors the providers the site was first deployed with:
// Groq as the fast primary and Together AI for fallback text and images.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			ID:      "groq",
			Type:    "openai",
			Name:    "Groq",
			APIKey:  "ENV:GROQ_API_KEY",
			BaseURL: "https://api.groq.com/openai/v1",
			Enabled: true,
		},
		{
			ID:      "together",
			Type:    "together",
			Name:    "Together AI",
			APIKey:  "ENV:TOGETHER_API_KEY",
			BaseURL: "https://api.together.xyz/v1",
			Enabled: true,
		},
	}
}

func DefaultRoutes() map[string]RouteConfig {
	return map[string]RouteConfig{
		"chat": {
			Attempts: []AttemptConfig{
				{Provider: "groq", Model: "llama-3.3-70b-versatile", SystemPrompt: chatSystemPrompt},
				{Provider: "together", Model: "togethercomputer/llama-2-70b-chat", SystemPrompt: chatSystemPrompt, MaxTokens: 1024},
			},
		},
		"content": {
			Attempts: []AttemptConfig{
				{Provider: "groq", Model: "llama-3.3-70b-versatile", SystemPrompt: blogSystemPrompt},
				{Provider: "together", Model: "togethercomputer/llama-2-70b-chat", SystemPrompt: blogSystemPrompt, MaxTokens: 2048},
			},
		},
		"image": {
			Attempts: []AttemptConfig{
				{Provider: "together", Model: "black-forest-labs/FLUX.1-schnell", Width: 1024, Height: 768},
			},
		},
	}
}
