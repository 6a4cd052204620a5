package query

import (
	"strings"

	"github.com/goliatone/go-keyring/core"
)

const (
	TypeGetToken    = "keyring.query.token.get"
	TypeListTokens  = "keyring.query.token.list"
	TypeCountTokens = "keyring.query.token.count"
)

// GetTokenMessage loads one stored token. TokenID may be empty when the
// (service, user) pair holds exactly one token.
type GetTokenMessage struct {
	ServiceName string
	UserID      string
	TokenID     string
}

func (GetTokenMessage) Type() string { return TypeGetToken }

func (m GetTokenMessage) Validate() error {
	if strings.TrimSpace(m.ServiceName) == "" {
		return queryValidationError("service_name", "service name is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

// ListTokensMessage enumerates stored tokens. An empty filter lists
// everything; service and user narrow independently.
type ListTokensMessage struct {
	Filter core.TokenFilter
}

func (ListTokensMessage) Type() string { return TypeListTokens }

func (ListTokensMessage) Validate() error { return nil }

type CountTokensMessage struct {
	ServiceName string
	UserID      string
}

func (CountTokensMessage) Type() string { return TypeCountTokens }

func (m CountTokensMessage) Validate() error {
	if strings.TrimSpace(m.ServiceName) == "" {
		return queryValidationError("service_name", "service name is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}
