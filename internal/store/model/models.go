package model

import (
	"strings"
	"time"
)

// GenerationLog records how one request was served. It never holds the
// prompt, the generated output or the caller's credential.
type GenerationLog struct {
	ID              string    `db:"id" json:"id"`
	Route           string    `db:"route" json:"route"`
	ProviderID      string    `db:"provider_id" json:"provider_id"` // empty when every attempt failed
	Model           string    `db:"model" json:"model"`
	Attempts        int       `db:"attempts" json:"attempts"`
	FellBack        bool      `db:"fell_back" json:"fell_back"`
	FailedProviders string    `db:"failed_providers" json:"failed_providers"` // comma separated, in attempt order
	StatusCode      int       `db:"status_code" json:"status_code"`
	LatencyMS       int64     `db:"latency_ms" json:"latency_ms"`
	PromptChars     int       `db:"prompt_chars" json:"prompt_chars"`
	OutputChars     int       `db:"output_chars" json:"output_chars"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Failed splits FailedProviders back into attempt order.
func (g *GenerationLog) Failed() []string {
	if g.FailedProviders == "" {
		return nil
	}
	return strings.Split(g.FailedProviders, ",")
}

// DailyStats represents aggregated usage data for a specific day.
type DailyStats struct {
	Date           string  `db:"date" json:"date"`
	TotalRequests  int     `db:"total_requests" json:"total_requests"`
	Failed         int     `db:"failed" json:"failed"`
	FallbackServed int     `db:"fallback_served" json:"fallback_served"`
	AverageLatency float64 `db:"avg_latency" json:"avg_latency"`
}
