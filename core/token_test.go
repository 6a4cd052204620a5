package core

import (
	"testing"
	"time"
)

func TestToken_UniqueIDStable(t *testing.T) {
	tokenA := newAccessToken("example", "access-1")
	tokenB := newAccessToken("example", "access-1")

	if tokenA.UniqueID() != tokenB.UniqueID() {
		t.Fatalf("expected identical credentials to share unique id")
	}
	if tokenA.UniqueID() != tokenA.WithMeta(map[string]any{"name": "renamed"}).UniqueID() {
		t.Fatalf("expected meta changes to keep unique id stable")
	}
}

func TestToken_UniqueIDDistinguishesPayloads(t *testing.T) {
	seen := map[string]string{}
	for label, token := range map[string]Token{
		"different secret":  newAccessToken("example", "access-2"),
		"different service": newAccessToken("other", "access-1"),
		"different kind": NewToken("example", TokenKindSecret, TokenPayload{
			Secret: "access-1",
		}),
	} {
		id := token.UniqueID()
		if previous, ok := seen[id]; ok {
			t.Fatalf("unique id collision between %q and %q", previous, label)
		}
		seen[id] = label
	}

	base := newAccessToken("example", "access-1").UniqueID()
	if _, ok := seen[base]; ok {
		t.Fatalf("expected base token to differ from all variants")
	}
}

func TestToken_DisplayNameFallbackChain(t *testing.T) {
	token := newAccessToken("example", "access-1")
	if got := token.DisplayName(); got != "example" {
		t.Fatalf("expected service name fallback, got %q", got)
	}

	token = token.WithMeta(map[string]any{"username": "octocat"})
	if got := token.DisplayName(); got != "octocat" {
		t.Fatalf("expected username, got %q", got)
	}

	token = token.WithMeta(map[string]any{"name": "The Octocat"})
	if got := token.DisplayName(); got != "The Octocat" {
		t.Fatalf("expected name to win, got %q", got)
	}
}

func TestToken_WithMetaDoesNotMutateReceiver(t *testing.T) {
	original := newAccessToken("example", "access-1")
	modified := original.WithMeta(map[string]any{"name": "label"})

	if _, ok := original.Meta["name"]; ok {
		t.Fatalf("expected receiver meta untouched")
	}
	if modified.Meta["name"] != "label" {
		t.Fatalf("expected merged meta on the copy")
	}
}

func TestToken_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(-time.Minute)
	token := NewToken("example", TokenKindAccess, TokenPayload{
		AccessToken: "access-1",
		ExpiresAt:   &expires,
	})
	if !token.IsExpired(now) {
		t.Fatalf("expected expired token")
	}

	token.Payload.ExpiresAt = nil
	if token.IsExpired(now) {
		t.Fatalf("expected tokens without expiry to never expire")
	}
}

func TestJSONTokenCodec_RoundTrip(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := JSONTokenCodec{}
	token := NewToken("example", TokenKindAccess, TokenPayload{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "bearer",
		Scope:        []string{"read", "write"},
		ExpiresAt:    &expires,
	}).WithMeta(map[string]any{"username": "octocat"})

	encoded, err := codec.Encode(token)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.UniqueID() != token.UniqueID() {
		t.Fatalf("expected unique id to survive the round trip")
	}
	if decoded.Payload.TokenType != "bearer" || len(decoded.Payload.Scope) != 2 {
		t.Fatalf("unexpected payload after decode: %+v", decoded.Payload)
	}
	if decoded.DisplayName() != "octocat" {
		t.Fatalf("expected meta to survive the round trip")
	}
}

func TestLegacySecretCodec(t *testing.T) {
	codec := LegacySecretCodec{}

	encoded, err := codec.Encode(NewToken("example", TokenKindSecret, TokenPayload{Secret: "s3cret"}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(encoded) != "s3cret" {
		t.Fatalf("expected bare secret, got %q", string(encoded))
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != TokenKindSecret || decoded.Payload.Secret != "s3cret" {
		t.Fatalf("unexpected decoded token: %+v", decoded)
	}

	if _, err := codec.Encode(Token{Kind: TokenKindSecret}); err == nil {
		t.Fatalf("expected empty secret to fail encoding")
	}
}
