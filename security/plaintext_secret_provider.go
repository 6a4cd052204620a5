package security

import (
	"context"
	"fmt"

	"github.com/goliatone/go-keyring/core"
)

// PlaintextSecretProvider passes payloads through untouched. It exists for
// tests and local development; never deploy it.
type PlaintextSecretProvider struct{}

func NewPlaintextSecretProvider() PlaintextSecretProvider {
	return PlaintextSecretProvider{}
}

func (PlaintextSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	return append([]byte(nil), plaintext...), nil
}

func (PlaintextSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}
	return append([]byte(nil), ciphertext...), nil
}

var _ core.SecretProvider = PlaintextSecretProvider{}
