package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeServiceTimeout:     "Service request timeout",
	CodeServiceUnavailable: "Service temporarily unavailable",
	CodeRateLimitExceeded:  "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Feed adapter errors
	CodeBadFrame:         "Received a frame that is not a snapshot",
	CodeBadNumber:        "Failed to parse a price or amount",
	CodeHandshakeFailed:  "Venue subscription handshake failed",
	CodeFeedDisconnected: "Venue feed disconnected",

	// Orderbook errors
	CodeStreamCancelled:      "A stream has unexpectedly closed",
	CodeOrderbookBuildFailed: "Failed to build the orderbook",

	// CLI / configuration errors
	CodeUnknownVenue:     "Provided venue is unrecognised",
	CodeDepthNotPositive: "max depth must be greater than zero",

	// Circuit breaker errors
	CodeCircuitOpen: "Circuit breaker is open",
}
