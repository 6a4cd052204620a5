package keyring_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gocmd "github.com/goliatone/go-command"
	keyring "github.com/goliatone/go-keyring"
	keyringcommand "github.com/goliatone/go-keyring/command"
	"github.com/goliatone/go-keyring/core"
	keyringquery "github.com/goliatone/go-keyring/query"
	"github.com/goliatone/go-keyring/providers"
)

func TestDownstreamComposition_FullHandshakeThroughFacade(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse token form: %v", err)
		}
		if got := r.PostForm.Get("code"); got != "grant_123" {
			t.Fatalf("unexpected code at token endpoint: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "acc_123",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	oauth2, err := keyring.OAuth2Service(providers.OAuth2Config{
		Name:     "github",
		AuthURL:  tokenServer.URL + "/authorize",
		TokenURL: tokenServer.URL + "/token",
		ClientID: "client_1",
	})
	if err != nil {
		t.Fatalf("build oauth2 service: %v", err)
	}

	var deletions []string
	hooks := keyring.NewExtensionHooks()
	if err := hooks.RegisterServicePack(keyring.ServicePack{
		Name:     "github-pack",
		Services: []core.Service{oauth2},
	}); err != nil {
		t.Fatalf("register service pack: %v", err)
	}
	if err := hooks.RegisterActionHookPack(keyring.ActionHookPack{
		Name: "audit-pack",
		Hooks: []core.ActionHook{compositionHook{
			hookName: "audit",
			onEvent: func(event core.ActionEvent) {
				if event.Name == "connection_deleted" {
					deletions = append(deletions, event.ServiceName)
				}
			},
		}},
	}); err != nil {
		t.Fatalf("register action hook pack: %v", err)
	}

	registry := core.NewServiceRegistry()
	if err := hooks.ApplyServicePacks(registry); err != nil {
		t.Fatalf("apply service packs: %v", err)
	}
	coordinator := core.NewActionHookCoordinator()
	if err := hooks.ApplyActionHookPacks(coordinator); err != nil {
		t.Fatalf("apply action hook packs: %v", err)
	}

	ring, err := keyring.Setup(keyring.DefaultConfig(),
		keyring.WithRegistry(registry),
		keyring.WithHooks(coordinator),
		keyring.WithSigningSecret([]byte("composition-secret")),
	)
	if err != nil {
		t.Fatalf("setup keyring: %v", err)
	}

	facade, err := keyring.NewFacade(ring)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	beginCollector := gocmd.NewResult[core.AuthorizationRedirect]()
	beginCtx := gocmd.ContextWithResult(context.Background(), beginCollector)
	if err := facade.Commands().BeginAuth.Execute(beginCtx, keyringcommand.BeginAuthMessage{
		Request: core.AuthorizationRequest{
			ServiceName: "github",
			UserID:      "u1",
			CallbackURL: "https://host.example.com/callback",
			State:       "st_1",
		},
	}); err != nil {
		t.Fatalf("execute begin auth: %v", err)
	}
	redirect, ok := beginCollector.Load()
	if !ok {
		t.Fatalf("expected redirect result")
	}
	if !strings.Contains(redirect.URL, "client_id=client_1") || !strings.Contains(redirect.URL, "state=st_1") {
		t.Fatalf("unexpected authorize url: %q", redirect.URL)
	}

	completeCollector := gocmd.NewResult[core.TokenRef]()
	completeCtx := gocmd.ContextWithResult(context.Background(), completeCollector)
	if err := facade.Commands().CompleteAuth.Execute(completeCtx, keyringcommand.CompleteAuthMessage{
		Request: core.CallbackRequest{
			ServiceName: "github",
			UserID:      "u1",
			Code:        "grant_123",
		},
	}); err != nil {
		t.Fatalf("execute complete auth: %v", err)
	}
	ref, ok := completeCollector.Load()
	if !ok || ref.ID == "" {
		t.Fatalf("expected stored token ref, got %#v", ref)
	}

	token, err := facade.Queries().GetToken.Query(context.Background(), keyringquery.GetTokenMessage{
		ServiceName: "github",
		UserID:      "u1",
		TokenID:     ref.ID,
	})
	if err != nil {
		t.Fatalf("query get token: %v", err)
	}
	if token.Payload.AccessToken != "acc_123" {
		t.Fatalf("unexpected stored access token: %#v", token)
	}

	count, err := facade.Queries().CountTokens.Query(context.Background(), keyringquery.CountTokensMessage{
		ServiceName: "github",
		UserID:      "u1",
	})
	if err != nil {
		t.Fatalf("query count tokens: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stored token, got %d", count)
	}

	deleteCollector := gocmd.NewResult[bool]()
	deleteCtx := gocmd.ContextWithResult(context.Background(), deleteCollector)
	if err := facade.Commands().DeleteToken.Execute(deleteCtx, keyringcommand.DeleteTokenMessage{
		ServiceName: "github",
		UserID:      "u1",
		TokenID:     ref.ID,
	}); err != nil {
		t.Fatalf("execute delete token: %v", err)
	}
	if deleted, ok := deleteCollector.Load(); !ok || !deleted {
		t.Fatalf("expected delete to report removal")
	}
	if len(deletions) != 1 || deletions[0] != "github" {
		t.Fatalf("expected connection_deleted hook delivery, got %#v", deletions)
	}
}

type compositionHook struct {
	hookName string
	onEvent  func(event core.ActionEvent)
}

func (h compositionHook) Name() string { return h.hookName }

func (h compositionHook) OnEvent(_ context.Context, event core.ActionEvent) error {
	if h.onEvent != nil {
		h.onEvent(event)
	}
	return nil
}
