package core

import (
	"context"
	"sync"
	"time"
)

type testService struct {
	name          string
	label         string
	requiresToken bool

	beginErr  error
	finishErr error
	token     *Token

	beginCalls  int
	finishCalls int
}

func (s *testService) Name() string { return s.name }

func (s *testService) Label() string {
	if s.label != "" {
		return s.label
	}
	return s.name
}

func (s *testService) RequiresToken() bool { return s.requiresToken }

func (s *testService) BeginAuthorization(_ context.Context, req AuthorizationRequest) (AuthorizationRedirect, error) {
	s.beginCalls++
	if s.beginErr != nil {
		return AuthorizationRedirect{}, s.beginErr
	}
	return AuthorizationRedirect{
		URL:   "https://example.com/authorize?service=" + s.name,
		State: req.State,
	}, nil
}

func (s *testService) FinishAuthorization(context.Context, CallbackRequest) (Token, error) {
	s.finishCalls++
	if s.finishErr != nil {
		return Token{}, s.finishErr
	}
	if s.token != nil {
		return s.token.clone(), nil
	}
	expires := time.Now().UTC().Add(time.Hour)
	token := NewToken(s.name, TokenKindAccess, TokenPayload{
		AccessToken:  "access-" + s.name,
		RefreshToken: "refresh-" + s.name,
		TokenType:    "bearer",
		Scope:        []string{"read"},
		ExpiresAt:    &expires,
	})
	return token.WithMeta(map[string]any{"username": "tester"}), nil
}

func newTestService(name string) *testService {
	return &testService{name: name, requiresToken: true}
}

type captureHook struct {
	mu     sync.Mutex
	name   string
	err    error
	events []ActionEvent
}

func (h *captureHook) Name() string {
	if h.name != "" {
		return h.name
	}
	return "capture"
}

func (h *captureHook) OnEvent(_ context.Context, event ActionEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *captureHook) named(name string) []ActionEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []ActionEvent{}
	for _, event := range h.events {
		if event.Name == name {
			out = append(out, event)
		}
	}
	return out
}

type failingTokenStore struct {
	err error
}

func (s failingTokenStore) Save(context.Context, string, Token) (TokenRef, error) {
	return TokenRef{}, s.err
}

func (s failingTokenStore) Get(context.Context, string, string, string) (Token, error) {
	return Token{}, s.err
}

func (s failingTokenStore) List(context.Context, TokenFilter) ([]Token, error) {
	return nil, s.err
}

func (s failingTokenStore) Delete(context.Context, string, string, string) (bool, error) {
	return false, s.err
}

func (s failingTokenStore) Count(context.Context, string, string) (int, error) {
	return 0, s.err
}

func newAccessToken(serviceName, accessToken string) Token {
	return NewToken(serviceName, TokenKindAccess, TokenPayload{
		AccessToken: accessToken,
		TokenType:   "bearer",
	})
}

func mustKeyring(cfg Config, options ...Option) (*Keyring, error) {
	base := []Option{WithSigningSecret([]byte("test-signing-secret"))}
	return New(cfg, append(base, options...)...)
}
