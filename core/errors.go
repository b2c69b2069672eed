package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorAuthorityUnavailable = "RISKAUTH_AUTHORITY_UNAVAILABLE"
	ErrorSignatureInvalid     = "RISKAUTH_SIGNATURE_INVALID"
	ErrorTimestampTooOld      = "RISKAUTH_TIMESTAMP_TOO_OLD"
	ErrorTimestampTooNew      = "RISKAUTH_TIMESTAMP_TOO_NEW"
	ErrorPublicKeyMissing     = "RISKAUTH_PUBLIC_KEY_MISSING"
	ErrorPublicKeyExpired     = "RISKAUTH_PUBLIC_KEY_EXPIRED"
	ErrorBadInput             = "RISKAUTH_BAD_INPUT"
	ErrorNotFound             = "RISKAUTH_NOT_FOUND"
	ErrorRateLimited          = "RISKAUTH_RATE_LIMITED"
	ErrorInternal             = "RISKAUTH_INTERNAL_ERROR"
)

// NewAuthorityUnavailable marks a remote authority call that failed after the
// retry policy exhausted its attempts. Fatal to the operation, never to the
// process: schedulers log it and try again on their next cycle.
func NewAuthorityUnavailable(message string, source error) error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorAuthorityUnavailable)
	}
	return goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorAuthorityUnavailable)
}

// NewSignatureInvalid covers malformed signatures, undecodable keys or
// timestamps, and cryptographic mismatches. Always a caller-side rejection.
func NewSignatureInvalid(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorSignatureInvalid)
}

func NewTimestampTooOld(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorTimestampTooOld)
}

func NewTimestampTooNew(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorTimestampTooNew)
}

// NewPublicKeyMissing and NewPublicKeyExpired reflect this service's own
// operational state, not caller error, so they carry a 500-class code.
func NewPublicKeyMissing(message string) error {
	return goerrors.New(message, goerrors.CategoryOperation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorPublicKeyMissing)
}

func NewPublicKeyExpired(message string) error {
	return goerrors.New(message, goerrors.CategoryOperation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorPublicKeyExpired)
}

// TextCode extracts the riskauth text code from an error, or "" when the
// error does not carry one.
func TextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return strings.TrimSpace(richErr.TextCode)
	}
	return ""
}

func IsAuthorityUnavailable(err error) bool { return TextCode(err) == ErrorAuthorityUnavailable }

func IsSignatureInvalid(err error) bool { return TextCode(err) == ErrorSignatureInvalid }

func IsTimestampTooOld(err error) bool { return TextCode(err) == ErrorTimestampTooOld }

func IsTimestampTooNew(err error) bool { return TextCode(err) == ErrorTimestampTooNew }

func IsPublicKeyMissing(err error) bool { return TextCode(err) == ErrorPublicKeyMissing }

func IsPublicKeyExpired(err error) bool { return TextCode(err) == ErrorPublicKeyExpired }

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unreachable"), strings.Contains(msg, "connection refused"):
		return ensureServiceErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).
				WithTextCode(ErrorAuthorityUnavailable),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return ensureServiceErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryBadInput).
				WithTextCode(ErrorBadInput),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorSignatureInvalid
	case goerrors.CategoryExternal:
		return ErrorAuthorityUnavailable
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusBadRequest
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
