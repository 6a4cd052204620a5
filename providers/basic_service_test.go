package providers

import (
	"context"
	"testing"

	"github.com/goliatone/go-keyring/core"
)

func TestBasicService_StoresKeyPair(t *testing.T) {
	service, err := NewBasicService(BasicConfig{Name: "internal-api", RequiresToken: true})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	token, err := service.FinishAuthorization(context.Background(), core.CallbackRequest{
		Params: map[string]string{
			"username": "alice",
			"password": "hunter2",
		},
	})
	if err != nil {
		t.Fatalf("finish authorization: %v", err)
	}
	if token.Kind != core.TokenKindKeyPair {
		t.Fatalf("expected key pair kind, got %q", token.Kind)
	}
	if token.Payload.Key != "alice" || token.Payload.Secret != "hunter2" {
		t.Fatalf("unexpected credential: %+v", token.Payload)
	}
	if token.DisplayName() != "alice" {
		t.Fatalf("expected username as display name, got %q", token.DisplayName())
	}
}

func TestBasicService_SecretOnly(t *testing.T) {
	service, err := NewBasicService(BasicConfig{Name: "webhook", RequiresToken: true})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	token, err := service.FinishAuthorization(context.Background(), core.CallbackRequest{
		Params: map[string]string{"api_secret": "s3cr3t"},
	})
	if err != nil {
		t.Fatalf("finish authorization: %v", err)
	}
	if token.Kind != core.TokenKindSecret {
		t.Fatalf("expected secret kind, got %q", token.Kind)
	}
	if token.Payload.Secret != "s3cr3t" {
		t.Fatalf("unexpected secret: %q", token.Payload.Secret)
	}

	if _, err := service.FinishAuthorization(context.Background(), core.CallbackRequest{}); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestBasicService_CredentialLess(t *testing.T) {
	service, err := NewBasicService(BasicConfig{Name: "rss"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if service.RequiresToken() {
		t.Fatalf("expected credential-less service")
	}

	token, err := service.FinishAuthorization(context.Background(), core.CallbackRequest{})
	if err != nil {
		t.Fatalf("finish authorization: %v", err)
	}
	if token.Payload.Secret != "" || token.Payload.AccessToken != "" {
		t.Fatalf("expected empty token, got %+v", token.Payload)
	}
}
