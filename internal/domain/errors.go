package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Every failure that crosses a package boundary wraps one
// of these so handlers can map it to a response field without string matching.
var (
	ErrMissingCredential  = fmt.Errorf("missing credential")
	ErrUpstream           = fmt.Errorf("upstream request failed")
	ErrMalformedLocalData = fmt.Errorf("malformed local data")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrNotFound           = fmt.Errorf("not found")
	ErrBlockedURL         = fmt.Errorf("request to private/reserved address blocked")
	ErrConfigLoad         = fmt.Errorf("failed to load configuration")
	ErrDecryption         = fmt.Errorf("decryption failed")
	ErrJournalWrite       = fmt.Errorf("journal write failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Yelp.SearchBusinesses")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// UpstreamError tags err as a third-party failure for op.
// Returns nil if err is nil.
func UpstreamError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &DomainError{Op: op, Err: ErrUpstream, Detail: err.Error()}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is the short string surfaced in the `error` field of JSON bodies.
type ErrorCode string

const (
	CodeUnknown          ErrorCode = "unknown_error"
	CodeMissingKey       ErrorCode = "missing_key"
	CodeUpstream         ErrorCode = "upstream_error"
	CodeMalformedData    ErrorCode = "malformed_data"
	CodeInvalidInput     ErrorCode = "invalid_input"
	CodeNotFound         ErrorCode = "not_found"
	CodeBlockedURL       ErrorCode = "blocked url"
	CodeConfigLoad       ErrorCode = "config_load"
	CodeDecryption       ErrorCode = "decryption"
	CodeWeatherUnavail   ErrorCode = "weather_unavailable"
	CodeImageMissingURL  ErrorCode = "missing url"
	CodeImageBadUpstream ErrorCode = "bad upstream"
	CodeImageFetchFailed ErrorCode = "fetch_failed"
)

// errorCodeMap maps sentinel errors to their response codes.
var errorCodeMap = map[error]ErrorCode{
	ErrMissingCredential:  CodeMissingKey,
	ErrUpstream:           CodeUpstream,
	ErrMalformedLocalData: CodeMalformedData,
	ErrInvalidInput:       CodeInvalidInput,
	ErrNotFound:           CodeNotFound,
	ErrBlockedURL:         CodeBlockedURL,
	ErrConfigLoad:         CodeConfigLoad,
	ErrDecryption:         CodeDecryption,
}

// ErrorCodeOf returns the response code for err.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
