package api

// Standard error codes
const (
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeUpstream       = "UPSTREAM_ERROR"
	ErrCodeImportFailed   = "IMPORT_FAILED"
	ErrCodeNotLocatable   = "CONTENT_NOT_LOCATABLE"
)

// Standard error messages
const (
	ErrMsgInternalServer = "An internal server error occurred"
	ErrMsgBadRequest     = "Invalid request format"
	ErrMsgNotFound       = "Resource not found"
	ErrMsgValidation     = "Request validation failed"
)

// APIError is the error member of the response envelope
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// APIErrorResponse represents a structured error response
type APIErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewAPIError creates a new API error
func NewAPIError(code, message, details string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewAPIErrorResponse creates a new API error response
func NewAPIErrorResponse(code, message, details string) *APIErrorResponse {
	return &APIErrorResponse{
		Success: false,
		Error:   NewAPIError(code, message, details),
	}
}
