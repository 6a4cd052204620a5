package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// AuthorizationRequest starts a handshake for a user against a registered
// service.
type AuthorizationRequest struct {
	ServiceName string
	UserID      string
	CallbackURL string
	State       string
	Extra       map[string]any
}

// AuthorizationRedirect is where the user agent must be sent to approve the
// connection. Metadata carries handshake material that must survive the
// round trip (request token secrets and the like); the dispatcher folds it
// into the signed state blob.
type AuthorizationRedirect struct {
	URL      string
	State    string
	Metadata map[string]any
}

// CallbackRequest carries the remote service's answer back into the
// handshake. Params holds the raw callback query parameters after
// normalization; Code and Verifier are the protocol-specific grant proofs.
type CallbackRequest struct {
	ServiceName string
	UserID      string
	Code        string
	Verifier    string
	RequestKey  string
	Params      map[string]string
	Extra       map[string]any
}

// Service is one external destination a user can connect to. Implementations
// cover one protocol family each; shared behavior lives in helpers, not in
// an embedded base.
type Service interface {
	Name() string
	Label() string
	// RequiresToken reports whether a stored token is needed before the
	// service is usable. Credential-less services skip persistence.
	RequiresToken() bool

	BeginAuthorization(ctx context.Context, req AuthorizationRequest) (AuthorizationRedirect, error)
	FinishAuthorization(ctx context.Context, req CallbackRequest) (Token, error)
}

type Registry interface {
	Register(service Service) error
	Get(name string) (Service, bool)
	List() []Service
}

// TokenRef identifies a stored token without exposing its payload.
type TokenRef struct {
	ID          string
	ServiceName string
	UserID      string
	UniqueID    string
}

type TokenFilter struct {
	ServiceName string
	UserID      string
}

// TokenStore persists tokens keyed by (service, user, token id). Save
// honors the configured policy: singleton replaces whatever the pair holds,
// multi keeps one row per distinct UniqueID. Delete is idempotent and
// reports whether a row was removed.
type TokenStore interface {
	Save(ctx context.Context, userID string, token Token) (TokenRef, error)
	Get(ctx context.Context, serviceName, userID, tokenID string) (Token, error)
	List(ctx context.Context, filter TokenFilter) ([]Token, error)
	Delete(ctx context.Context, serviceName, userID, tokenID string) (bool, error)
	Count(ctx context.Context, serviceName, userID string) (int, error)
}

// StateCodec round-trips request parameters through an untrusted channel
// with tamper evidence.
type StateCodec interface {
	Encode(params map[string]any) (string, error)
	Decode(blob string) (map[string]any, error)
}

// NonceService gates every handshake action. Nonces are scoped to an action
// and a user and expire on a rolling time window rather than being
// single-use.
type NonceService interface {
	Issue(action, userID string) string
	Verify(nonce, action, userID string) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// ActionEvent is emitted around handshake actions. Name follows the
// pre_<service>_<action> / <service>_<action> convention, plus the
// connection_deleted and error events.
type ActionEvent struct {
	Name        string
	ServiceName string
	Action      string
	UserID      string
	TokenID     string
	OccurredAt  time.Time
	Payload     map[string]any
}

type ActionHook interface {
	Name() string
	OnEvent(ctx context.Context, event ActionEvent) error
}

// URLBuilder renders links back into the hosting application's management
// surface. The core never assembles those URLs itself.
type URLBuilder interface {
	BuildActionURL(serviceName, action string, params map[string]string) string
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type StoreProvider interface {
	TokenStore() TokenStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type CommandMessage interface {
	Type() string
}
