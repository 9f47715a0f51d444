package api

// ContentResponse is returned by the chat and content routes.
type ContentResponse struct {
	Content string `json:"content"`
}

// ImageResponse is returned by the image route. Image is a data URL.
type ImageResponse struct {
	Image string `json:"image"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
