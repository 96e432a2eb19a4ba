// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest      = "BAD_REQUEST"
	ErrorNotFound        = "NOT_FOUND"
	ErrorInternalError   = "INTERNAL_ERROR"
	ErrorRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrorPayloadTooLarge = "PAYLOAD_TOO_LARGE"

	// 市场相关错误
	ErrorArtisanNotFound = "ARTISAN_NOT_FOUND"
	ErrorProductNotFound = "PRODUCT_NOT_FOUND"
	ErrorInvalidStatus   = "INVALID_STATUS"

	// WebSocket
	ErrorInvalidMessage = "INVALID_MESSAGE"
)
