package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	TokenPayloadFormatLegacySecret = "legacy_secret"
	TokenPayloadFormatJSONV1       = "keyring_token_json"
	TokenPayloadVersionV1          = 1
)

// TokenCodec turns token payloads into bytes for storage. The encoded form
// is what the secret provider encrypts at rest.
type TokenCodec interface {
	Format() string
	Version() int
	Encode(token Token) ([]byte, error)
	Decode(payload []byte) (Token, error)
}

type JSONTokenCodec struct{}

func (JSONTokenCodec) Format() string {
	return TokenPayloadFormatJSONV1
}

func (JSONTokenCodec) Version() int {
	return TokenPayloadVersionV1
}

type jsonTokenPayload struct {
	ServiceName  string         `json:"service_name,omitempty"`
	Kind         string         `json:"kind,omitempty"`
	Secret       string         `json:"secret,omitempty"`
	Key          string         `json:"key,omitempty"`
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type,omitempty"`
	Scope        []string       `json:"scope,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

func (JSONTokenCodec) Encode(token Token) ([]byte, error) {
	if err := token.Kind.Validate(); err != nil {
		return nil, err
	}
	payload := jsonTokenPayload{
		ServiceName:  strings.TrimSpace(token.ServiceName),
		Kind:         string(token.Kind),
		Secret:       token.Payload.Secret,
		Key:          token.Payload.Key,
		AccessToken:  token.Payload.AccessToken,
		RefreshToken: token.Payload.RefreshToken,
		TokenType:    strings.TrimSpace(token.Payload.TokenType),
		Scope:        append([]string(nil), token.Payload.Scope...),
		ExpiresAt:    cloneTimePointer(token.Payload.ExpiresAt),
		Meta:         copyAnyMap(token.Meta),
	}
	if !token.CreatedAt.IsZero() {
		created := token.CreatedAt.UTC()
		payload.CreatedAt = &created
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode token payload: %w", err)
	}
	return encoded, nil
}

func (JSONTokenCodec) Decode(payload []byte) (Token, error) {
	if len(payload) == 0 {
		return Token{}, fmt.Errorf("core: token payload is empty")
	}
	decoded := jsonTokenPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Token{}, fmt.Errorf("core: decode token payload: %w", err)
	}
	token := Token{
		ServiceName: strings.TrimSpace(decoded.ServiceName),
		Kind:        TokenKind(decoded.Kind),
		Payload: TokenPayload{
			Secret:       decoded.Secret,
			Key:          decoded.Key,
			AccessToken:  decoded.AccessToken,
			RefreshToken: decoded.RefreshToken,
			TokenType:    strings.TrimSpace(decoded.TokenType),
			Scope:        append([]string(nil), decoded.Scope...),
			ExpiresAt:    cloneTimePointer(decoded.ExpiresAt),
		},
		Meta: copyAnyMap(decoded.Meta),
	}
	if decoded.CreatedAt != nil {
		token.CreatedAt = decoded.CreatedAt.UTC()
	}
	if err := token.Kind.Validate(); err != nil {
		return Token{}, err
	}
	return token, nil
}

// LegacySecretCodec stores the bare secret string, the shape older
// installations used before structured payloads.
type LegacySecretCodec struct{}

func (LegacySecretCodec) Format() string {
	return TokenPayloadFormatLegacySecret
}

func (LegacySecretCodec) Version() int {
	return TokenPayloadVersionV1
}

func (LegacySecretCodec) Encode(token Token) ([]byte, error) {
	secret := strings.TrimSpace(token.Payload.Secret)
	if secret == "" {
		secret = strings.TrimSpace(token.Payload.AccessToken)
	}
	if secret == "" {
		return nil, fmt.Errorf("core: legacy token payload requires a secret")
	}
	return []byte(secret), nil
}

func (LegacySecretCodec) Decode(payload []byte) (Token, error) {
	secret := strings.TrimSpace(string(payload))
	if secret == "" {
		return Token{}, fmt.Errorf("core: legacy token payload is empty")
	}
	return Token{
		Kind:    TokenKindSecret,
		Payload: TokenPayload{Secret: secret},
		Meta:    map[string]any{},
	}, nil
}
