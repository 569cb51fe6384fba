package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Aggregator-specific error codes
const (
	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Feed adapter errors
	CodeBadFrame         Code = "BAD_FRAME"
	CodeBadNumber        Code = "BAD_NUMBER"
	CodeHandshakeFailed  Code = "HANDSHAKE_FAILED"
	CodeFeedDisconnected Code = "FEED_DISCONNECTED"

	// Orderbook errors
	CodeStreamCancelled      Code = "STREAM_CANCELLED"
	CodeOrderbookBuildFailed Code = "ORDERBOOK_BUILD_FAILED"

	// CLI / configuration errors
	CodeUnknownVenue     Code = "UNKNOWN_VENUE"
	CodeDepthNotPositive Code = "DEPTH_NOT_POSITIVE"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
