// Package keyring wires the credential handshake core, its stores, and the
// built-in service implementations into one importable surface. Hosts that
// want finer control can import the subpackages directly.
package keyring

import "github.com/goliatone/go-keyring/core"

type Config = core.Config
type StoreConfig = core.StoreConfig
type NonceConfig = core.NonceConfig
type StateConfig = core.StateConfig

type Option = core.Option

type Keyring = core.Keyring
type KeyringDependencies = core.KeyringDependencies

type Service = core.Service
type Registry = core.Registry
type Token = core.Token
type TokenKind = core.TokenKind
type TokenPayload = core.TokenPayload
type TokenRef = core.TokenRef
type TokenFilter = core.TokenFilter
type TokenStore = core.TokenStore
type TokenCodec = core.TokenCodec
type StateCodec = core.StateCodec
type NonceService = core.NonceService
type SecretProvider = core.SecretProvider
type ActionEvent = core.ActionEvent
type ActionHook = core.ActionHook
type ActionHookCoordinator = core.ActionHookCoordinator
type URLBuilder = core.URLBuilder
type StorePolicy = core.StorePolicy

type AuthorizationRequest = core.AuthorizationRequest
type AuthorizationRedirect = core.AuthorizationRedirect
type CallbackRequest = core.CallbackRequest

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithSecretProvider    = core.WithSecretProvider
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithRegistry          = core.WithRegistry
	WithTokenStore        = core.WithTokenStore
	WithTokenCodec        = core.WithTokenCodec
	WithStateCodec        = core.WithStateCodec
	WithNonceService      = core.WithNonceService
	WithHooks             = core.WithHooks
	WithURLBuilder        = core.WithURLBuilder
	WithSigningSecret     = core.WithSigningSecret
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func New(cfg Config, opts ...Option) (*Keyring, error) {
	return core.New(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Keyring, error) {
	return core.Setup(cfg, opts...)
}
