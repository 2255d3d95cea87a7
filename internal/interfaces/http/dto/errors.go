package dto

import "net/http"

// API error codes, ERR_<CATEGORY> convention. Handlers emit these; clients
// switch on them rather than on status codes or message text.
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeValidation = "ERR_VALIDATION"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	// Business rule violations raised by the tracking workflow.
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeBusinessRule      = "ERR_BUSINESS_RULE"
	ErrCodeNoStorageLocation = "ERR_NO_STORAGE_LOCATION"
	ErrCodePiecesExist       = "ERR_PIECES_EXIST"

	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps each API error code onto its HTTP status.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// A batch that breaks a workflow rule is understood but not applicable;
	// duplicate piece creation is a conflict with existing state.
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:      http.StatusUnprocessableEntity,
	ErrCodeNoStorageLocation: http.StatusUnprocessableEntity,
	ErrCodePiecesExist:       http.StatusConflict,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status for an API error code, defaulting to
// 500 so an unmapped code never masquerades as a client error.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes maps the bare codes raised by the domain layer onto API
// error codes. Domain code stays transport-agnostic; the translation to the
// wire convention happens here.
var domainErrorCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,

	"INVALID_STATE":       ErrCodeInvalidState,
	"NO_STORAGE_LOCATION": ErrCodeNoStorageLocation,
	"PIECES_EXIST":        ErrCodePiecesExist,

	"INVALID_INPUT":  ErrCodeInvalidInput,
	"BAD_REQUEST":    ErrCodeBadRequest,
	"INTERNAL_ERROR": ErrCodeInternal,

	// Field-level rejections from the order and piece validators.
	"INVALID_CUSTOMER":     ErrCodeValidation,
	"INVALID_FLAG_KEY":     ErrCodeValidation,
	"INVALID_FLAG_NAME":    ErrCodeValidation,
	"INVALID_LINE":         ErrCodeValidation,
	"INVALID_ORDER":        ErrCodeValidation,
	"INVALID_ORDER_NUMBER": ErrCodeValidation,
	"INVALID_PIECE_REF":    ErrCodeValidation,
	"INVALID_PRICE":        ErrCodeValidation,
	"INVALID_QUANTITY":     ErrCodeValidation,
	"INVALID_READY_COUNT":  ErrCodeValidation,
	"INVALID_SERVICE_NAME": ErrCodeValidation,
	"INVALID_TENANT":       ErrCodeValidation,
	"VALIDATION_ERROR":     ErrCodeValidation,
}

// NormalizeErrorCode translates a domain error code into the API convention.
// Codes already in the convention, or unknown ones, pass through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainErrorCodes[code]; ok {
		return apiCode
	}
	return code
}
