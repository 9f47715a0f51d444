package api

// GenerateRequest is the body accepted by every generation route.
type GenerateRequest struct {
	// prompt must be a JSON string with at least one non-whitespace character
	Prompt string `json:"prompt" binding:"required,notblank"`
}

// UsageQuery holds the query parameters of the usage overview endpoint.
type UsageQuery struct {
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

// Role is the author of a message sent upstream.
type Role string

const (
	User   Role = "user"
	System Role = "system"
)
