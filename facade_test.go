package keyring

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	keyringcommand "github.com/goliatone/go-keyring/command"
	"github.com/goliatone/go-keyring/core"
	keyringquery "github.com/goliatone/go-keyring/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.BeginAuth == nil || commands.CompleteAuth == nil || commands.DeleteToken == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetToken == nil || queries.ListTokens == nil || queries.CountTokens == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.AuthorizationRedirect]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().BeginAuth.Execute(ctx, keyringcommand.BeginAuthMessage{
		Request: core.AuthorizationRequest{ServiceName: "github", UserID: "u1"},
	}); err != nil {
		t.Fatalf("execute begin auth command: %v", err)
	}
	if svc.lastBeginService != "github" {
		t.Fatalf("unexpected begin auth delegation payload: %q", svc.lastBeginService)
	}
	redirect, ok := collector.Load()
	if !ok || redirect.URL == "" {
		t.Fatalf("expected redirect result, got %#v", redirect)
	}

	token, err := facade.Queries().GetToken.Query(context.Background(), keyringquery.GetTokenMessage{
		ServiceName: "github",
		UserID:      "u1",
		TokenID:     "tok_1",
	})
	if err != nil {
		t.Fatalf("query get token: %v", err)
	}
	if token.Payload.AccessToken != "acc_1" {
		t.Fatalf("unexpected get token result: %#v", token)
	}

	count, err := facade.Queries().CountTokens.Query(context.Background(), keyringquery.CountTokensMessage{
		ServiceName: "github",
		UserID:      "u1",
	})
	if err != nil {
		t.Fatalf("query count tokens: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}

func TestFacade_WithTokenReaderRoutesQueries(t *testing.T) {
	svc := &stubFacadeService{}
	alternate := &stubFacadeService{countResult: 7}

	facade, err := NewFacade(svc, WithTokenReader(alternate))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	count, err := facade.Queries().CountTokens.Query(context.Background(), keyringquery.CountTokensMessage{
		ServiceName: "github",
		UserID:      "u1",
	})
	if err != nil {
		t.Fatalf("query count tokens: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected alternate reader count 7, got %d", count)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastBeginService string
	countResult      int
}

func (s *stubFacadeService) BeginAuthorization(_ context.Context, req core.AuthorizationRequest) (core.AuthorizationRedirect, error) {
	s.lastBeginService = req.ServiceName
	return core.AuthorizationRedirect{URL: "https://example.com/authorize", State: "state"}, nil
}

func (s *stubFacadeService) FinishAuthorization(_ context.Context, req core.CallbackRequest) (core.TokenRef, error) {
	return core.TokenRef{ID: "tok_1", ServiceName: req.ServiceName, UserID: req.UserID}, nil
}

func (s *stubFacadeService) DeleteToken(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func (s *stubFacadeService) GetToken(context.Context, string, string, string) (core.Token, error) {
	return core.Token{ServiceName: "github", Kind: core.TokenKindAccess, Payload: core.TokenPayload{AccessToken: "acc_1"}}, nil
}

func (s *stubFacadeService) ListTokens(context.Context, core.TokenFilter) ([]core.Token, error) {
	return []core.Token{{ServiceName: "github"}}, nil
}

func (s *stubFacadeService) CountTokens(context.Context, string, string) (int, error) {
	if s.countResult != 0 {
		return s.countResult, nil
	}
	return 1, nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)
