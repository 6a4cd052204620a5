package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-keyring/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory wires bun-backed token stores from a persistence client
// or a raw *bun.DB.
type RepositoryFactory struct {
	db *bun.DB

	policy  core.StorePolicy
	codec   core.TokenCodec
	secrets core.SecretProvider

	encryptionKeyID   string
	encryptionVersion int

	tokenStore *TokenStore
}

type FactoryOption func(*RepositoryFactory)

func WithStorePolicy(policy core.StorePolicy) FactoryOption {
	return func(f *RepositoryFactory) {
		if policy != "" {
			f.policy = policy
		}
	}
}

func WithTokenCodec(codec core.TokenCodec) FactoryOption {
	return func(f *RepositoryFactory) {
		if codec != nil {
			f.codec = codec
		}
	}
}

func WithSecretProvider(secrets core.SecretProvider) FactoryOption {
	return func(f *RepositoryFactory) {
		f.secrets = secrets
	}
}

func WithEncryptionMetadata(keyID string, version int) FactoryOption {
	return func(f *RepositoryFactory) {
		if keyID != "" {
			f.encryptionKeyID = keyID
		}
		if version > 0 {
			f.encryptionVersion = version
		}
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{
		policy:            core.StorePolicySingleton,
		codec:             core.JSONTokenCodec{},
		encryptionKeyID:   "app-key",
		encryptionVersion: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.tokenStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) TokenStore() core.TokenStore {
	if f == nil || f.tokenStore == nil {
		return nil
	}
	return f.tokenStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	tokenRepo := repository.NewRepository[*tokenRecord](f.db, tokenHandlers())
	if validator, ok := tokenRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid token repository wiring: %w", err)
		}
	}

	f.tokenStore = &TokenStore{
		db:                f.db,
		repo:              tokenRepo,
		policy:            f.policy,
		codec:             f.codec,
		secrets:           f.secrets,
		encryptionKeyID:   f.encryptionKeyID,
		encryptionVersion: f.encryptionVersion,
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
