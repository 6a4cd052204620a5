package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

type TokenKind string

const (
	// TokenKindSecret holds a single opaque secret string.
	TokenKindSecret TokenKind = "secret"
	// TokenKindKeyPair holds a key plus secret, the OAuth 1.0a shape.
	TokenKindKeyPair TokenKind = "key_pair"
	// TokenKindAccess holds a full OAuth 2.0 style access credential.
	TokenKindAccess TokenKind = "access"
)

func (k TokenKind) Validate() error {
	switch k {
	case TokenKindSecret, TokenKindKeyPair, TokenKindAccess:
		return nil
	}
	return fmt.Errorf("core: unknown token kind: %s", string(k))
}

// TokenPayload carries the credential material for every kind. Unused
// fields stay empty; Kind on the owning Token decides which ones matter.
type TokenPayload struct {
	Secret       string
	Key          string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        []string
	ExpiresAt    *time.Time
}

// Token is an immutable credential obtained from an external service for a
// user. Meta carries human context (display name, external account id) and
// never participates in identity.
type Token struct {
	ServiceName string
	Kind        TokenKind
	Payload     TokenPayload
	Meta        map[string]any
	CreatedAt   time.Time
}

func NewToken(serviceName string, kind TokenKind, payload TokenPayload) Token {
	return Token{
		ServiceName: strings.TrimSpace(serviceName),
		Kind:        kind,
		Payload:     clonePayload(payload),
		Meta:        map[string]any{},
		CreatedAt:   time.Now().UTC(),
	}
}

// UniqueID is a stable identity for the credential material: the same
// service, kind, and secrets always hash to the same value. Meta and
// timestamps are excluded so renaming a connection never changes identity.
func (t Token) UniqueID() string {
	h := sha256.New()
	for _, part := range []string{
		strings.TrimSpace(t.ServiceName),
		string(t.Kind),
		t.Payload.Key,
		t.Payload.Secret,
		t.Payload.AccessToken,
		t.Payload.RefreshToken,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DisplayName resolves a human label from meta, falling back to the service
// name when the connection carries no identity hints.
func (t Token) DisplayName() string {
	for _, key := range []string{"name", "username", "user_id", "external_id"} {
		if value, ok := t.Meta[key]; ok {
			if text := strings.TrimSpace(anyToString(value)); text != "" {
				return text
			}
		}
	}
	return strings.TrimSpace(t.ServiceName)
}

// WithMeta returns a copy with the given entries merged on top of the
// existing meta. The receiver is left untouched.
func (t Token) WithMeta(meta map[string]any) Token {
	out := t.clone()
	for key, value := range meta {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out.Meta[key] = value
	}
	return out
}

func (t Token) IsExpired(now time.Time) bool {
	if t.Payload.ExpiresAt == nil {
		return false
	}
	return now.UTC().After(t.Payload.ExpiresAt.UTC())
}

func (t Token) clone() Token {
	out := t
	out.Payload = clonePayload(t.Payload)
	out.Meta = copyAnyMap(t.Meta)
	return out
}

func clonePayload(payload TokenPayload) TokenPayload {
	out := payload
	out.Scope = append([]string(nil), payload.Scope...)
	out.ExpiresAt = cloneTimePointer(payload.ExpiresAt)
	return out
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func anyToString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}
