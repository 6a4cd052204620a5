package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-keyring/core"
)

// BasicConfig configures a service whose credential arrives out-of-band: an
// API key pair or a username/password the user types in. No remote round
// trip happens during the handshake.
type BasicConfig struct {
	Name  string
	Label string
	// RequiresToken false marks the service usable without any stored
	// credential; its handshake completes without persisting anything.
	RequiresToken bool
}

type BasicService struct {
	cfg BasicConfig
}

func NewBasicService(cfg BasicConfig) (*BasicService, error) {
	cfg.Name = strings.TrimSpace(strings.ToLower(cfg.Name))
	if cfg.Name == "" {
		return nil, fmt.Errorf("providers: service name is required")
	}
	return &BasicService{cfg: cfg}, nil
}

func (s *BasicService) Name() string {
	if s == nil {
		return ""
	}
	return s.cfg.Name
}

func (s *BasicService) Label() string {
	if s == nil {
		return ""
	}
	return serviceLabel(s.cfg.Label, s.cfg.Name)
}

func (s *BasicService) RequiresToken() bool {
	if s == nil {
		return false
	}
	return s.cfg.RequiresToken
}

// BeginAuthorization has no remote to redirect to. The empty URL tells the
// host to render its own credential form and come straight back with the
// verify step.
func (s *BasicService) BeginAuthorization(_ context.Context, req core.AuthorizationRequest) (core.AuthorizationRedirect, error) {
	if s == nil {
		return core.AuthorizationRedirect{}, fmt.Errorf("providers: basic service is nil")
	}
	return core.AuthorizationRedirect{State: req.State}, nil
}

func (s *BasicService) FinishAuthorization(_ context.Context, req core.CallbackRequest) (core.Token, error) {
	if s == nil {
		return core.Token{}, fmt.Errorf("providers: basic service is nil")
	}
	if !s.cfg.RequiresToken {
		return core.Token{}, nil
	}

	key := strings.TrimSpace(firstValue(req.Params, "key", "username", "api_key"))
	secret := strings.TrimSpace(firstValue(req.Params, "secret", "password", "api_secret"))
	if secret == "" {
		return core.Token{}, fmt.Errorf("providers: a secret is required for service %q", s.cfg.Name)
	}

	if key == "" {
		return core.NewToken(s.cfg.Name, core.TokenKindSecret, core.TokenPayload{
			Secret: secret,
		}), nil
	}
	token := core.NewToken(s.cfg.Name, core.TokenKindKeyPair, core.TokenPayload{
		Key:    key,
		Secret: secret,
	})
	return token.WithMeta(map[string]any{"username": key}), nil
}

func firstValue(params map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(params[key]); value != "" {
			return value
		}
	}
	return ""
}

var _ core.Service = (*BasicService)(nil)
