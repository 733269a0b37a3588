package errors

// ErrorCode identifies an error category in API responses and logs.
type ErrorCode string

const (
	ErrorCode_INTERNAL         ErrorCode = "INTERNAL"
	ErrorCode_INVALID_ARGUMENT ErrorCode = "INVALID_ARGUMENT"
	ErrorCode_NOT_FOUND        ErrorCode = "NOT_FOUND"
	ErrorCode_ALREADY_EXISTS   ErrorCode = "ALREADY_EXISTS"

	ErrorCode_SESSION_NOT_FOUND   ErrorCode = "SESSION_NOT_FOUND"
	ErrorCode_BOT_CREATION_FAILED ErrorCode = "BOT_CREATION_FAILED"
	ErrorCode_BOT_STOP_FAILED     ErrorCode = "BOT_STOP_FAILED"
	ErrorCode_INVALID_SIGNATURE   ErrorCode = "INVALID_SIGNATURE"

	ErrorCode_AI_ANALYSIS_FAILED ErrorCode = "AI_ANALYSIS_FAILED"
	ErrorCode_AI_SUMMARY_FAILED  ErrorCode = "AI_SUMMARY_FAILED"
	ErrorCode_ANALYSIS_NOT_FOUND ErrorCode = "ANALYSIS_NOT_FOUND"

	ErrorCode_INTEGRATION_STORAGE_FAILED      ErrorCode = "INTEGRATION_STORAGE_FAILED"
	ErrorCode_INTEGRATION_CACHE_FAILED        ErrorCode = "INTEGRATION_CACHE_FAILED"
	ErrorCode_INTEGRATION_EXTERNAL_API_FAILED ErrorCode = "INTEGRATION_EXTERNAL_API_FAILED"

	ErrorCode_DB_CONNECTION_FAILED ErrorCode = "DB_CONNECTION_FAILED"
	ErrorCode_DB_QUERY_FAILED      ErrorCode = "DB_QUERY_FAILED"

	ErrorCode_INVALID_PAYLOAD   ErrorCode = "INVALID_PAYLOAD"
	ErrorCode_PROCESSING_FAILED ErrorCode = "PROCESSING_FAILED"
)

// String returns the code as a plain string.
func (c ErrorCode) String() string {
	return string(c)
}
