package analysis

// Result is the successful analysis returned to clients
type Result struct {
	Summary       string   `json:"summary"`
	Nationalities []string `json:"nationalities"`
}

// AnalysisRequest is the JSON body accepted as an alternative to multipart
type AnalysisRequest struct {
	Text *string `json:"text"`
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error   string  `json:"error"`
	Details *string `json:"details"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(message string, details *string) *ErrorResponse {
	return &ErrorResponse{
		Error:   message,
		Details: details,
	}
}
