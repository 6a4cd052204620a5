package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	KeyringErrorBadInput        = "KEYRING_BAD_INPUT"
	KeyringErrorServiceNotFound = "KEYRING_SERVICE_NOT_FOUND"
	KeyringErrorTokenNotFound   = "KEYRING_TOKEN_NOT_FOUND"
	KeyringErrorAmbiguousToken  = "KEYRING_AMBIGUOUS_TOKEN"
	KeyringErrorInvalidNonce    = "KEYRING_INVALID_NONCE"
	KeyringErrorStateNoHash     = "KEYRING_STATE_NO_HASH"
	KeyringErrorStateSignature  = "KEYRING_STATE_SIGNATURE"
	KeyringErrorStateExpired    = "KEYRING_STATE_EXPIRED"
	KeyringErrorRemoteService   = "KEYRING_REMOTE_SERVICE"
	KeyringErrorStore           = "KEYRING_STORE"
	KeyringErrorInternal        = "KEYRING_INTERNAL"
)

var (
	ErrServiceNotFound = errors.New("core: service not found")
	ErrTokenNotFound   = errors.New("core: token not found")
	// ErrAmbiguousToken means a lookup without a token id matched more than
	// one stored token for the (service, user) pair.
	ErrAmbiguousToken         = errors.New("core: ambiguous token reference")
	ErrInvalidNonce           = errors.New("core: invalid nonce")
	ErrStateNoHash            = errors.New("core: state parameters carry no hash")
	ErrStateSignatureMismatch = errors.New("core: state signature mismatch")
	ErrStateExpired           = errors.New("core: state blob expired")
)

func keyringErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureKeyringErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrTokenNotFound):
		return newKeyringError(err.Error(), goerrors.CategoryNotFound, KeyringErrorTokenNotFound)
	case errors.Is(err, ErrServiceNotFound):
		return newKeyringError(err.Error(), goerrors.CategoryNotFound, KeyringErrorServiceNotFound)
	case errors.Is(err, ErrAmbiguousToken):
		return newKeyringError(err.Error(), goerrors.CategoryConflict, KeyringErrorAmbiguousToken)
	case errors.Is(err, ErrInvalidNonce):
		return newKeyringError(err.Error(), goerrors.CategoryAuth, KeyringErrorInvalidNonce)
	case errors.Is(err, ErrStateNoHash):
		return newKeyringError(err.Error(), goerrors.CategoryAuth, KeyringErrorStateNoHash)
	case errors.Is(err, ErrStateSignatureMismatch):
		return newKeyringError(err.Error(), goerrors.CategoryAuth, KeyringErrorStateSignature)
	case errors.Is(err, ErrStateExpired):
		return newKeyringError(err.Error(), goerrors.CategoryAuth, KeyringErrorStateExpired)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "service") && strings.Contains(msg, "not registered"):
		return newKeyringError(err.Error(), goerrors.CategoryNotFound, KeyringErrorServiceNotFound)
	case strings.Contains(msg, "remote service"), strings.Contains(msg, "token endpoint"):
		return newKeyringError(err.Error(), goerrors.CategoryExternal, KeyringErrorRemoteService)
	case strings.Contains(msg, "token store"), strings.Contains(msg, "store failed"):
		return newKeyringError(err.Error(), goerrors.CategoryInternal, KeyringErrorStore)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newKeyringError(err.Error(), goerrors.CategoryBadInput, KeyringErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureKeyringErrorEnvelope(mapped)
}

func newKeyringError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureKeyringErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureKeyringErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = keyringHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultKeyringTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultKeyringTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return KeyringErrorBadInput
	case goerrors.CategoryNotFound:
		return KeyringErrorTokenNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return KeyringErrorInvalidNonce
	case goerrors.CategoryConflict:
		return KeyringErrorAmbiguousToken
	case goerrors.CategoryExternal:
		return KeyringErrorRemoteService
	default:
		return KeyringErrorInternal
	}
}

func keyringHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
