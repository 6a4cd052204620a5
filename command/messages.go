package command

import (
	"strings"

	"github.com/goliatone/go-keyring/core"
)

const (
	TypeBeginAuth    = "keyring.command.auth.begin"
	TypeCompleteAuth = "keyring.command.auth.complete"
	TypeDeleteToken  = "keyring.command.token.delete"
)

type BeginAuthMessage struct {
	Request core.AuthorizationRequest
}

func (BeginAuthMessage) Type() string { return TypeBeginAuth }

func (m BeginAuthMessage) Validate() error {
	if strings.TrimSpace(m.Request.ServiceName) == "" {
		return commandValidationError("service_name", "service name is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type CompleteAuthMessage struct {
	Request core.CallbackRequest
}

func (CompleteAuthMessage) Type() string { return TypeCompleteAuth }

func (m CompleteAuthMessage) Validate() error {
	if strings.TrimSpace(m.Request.ServiceName) == "" {
		return commandValidationError("service_name", "service name is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

// DeleteTokenMessage removes one stored token. TokenID may be empty when
// the (service, user) pair holds at most one token; the store resolves it.
type DeleteTokenMessage struct {
	ServiceName string
	UserID      string
	TokenID     string
}

func (DeleteTokenMessage) Type() string { return TypeDeleteToken }

func (m DeleteTokenMessage) Validate() error {
	if strings.TrimSpace(m.ServiceName) == "" {
		return commandValidationError("service_name", "service name is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}
