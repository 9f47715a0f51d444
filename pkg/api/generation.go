package api

import "time"

// GenerationResponse wraps a single generation log for the admin API.
type GenerationResponse struct {
	Data GenerationData `json:"data"`
}

type GenerationData struct {
	ID             string    `json:"id"`
	Route          string    `json:"route"`
	ProviderName   string    `json:"provider_name,omitempty"`
	Model          string    `json:"model,omitempty"`
	Attempts       int       `json:"attempts"`
	FellBack       bool      `json:"fell_back"`
	StatusCode     int       `json:"status_code"`
	Latency        float64   `json:"latency"`
	PromptChars    int       `json:"prompt_chars"`
	OutputChars    int       `json:"output_chars"`
	FailedAttempts []string  `json:"failed_attempts,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// UsageResponse lists per-day aggregates, newest first.
type UsageResponse struct {
	Object string       `json:"object"`
	Data   []DailyUsage `json:"data"`
}

type DailyUsage struct {
	Date           string  `json:"date"`
	TotalRequests  int     `json:"total_requests"`
	Failed         int     `json:"failed"`
	FallbackServed int     `json:"fallback_served"`
	AverageLatency float64 `json:"avg_latency"`
}
