package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Keyring orchestrates handshakes against registered services and owns the
// token store. It is an explicit value a host constructs and passes around;
// there is no package-level instance.
type Keyring struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	secretProvider  SecretProvider
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	registry        Registry
	tokenStore      TokenStore
	tokenCodec      TokenCodec
	stateCodec      StateCodec
	nonceService    NonceService
	hooks           *ActionHookCoordinator
	urlBuilder      URLBuilder
}

type KeyringDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	SecretProvider  SecretProvider
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Registry        Registry
	TokenStore      TokenStore
	TokenCodec      TokenCodec
	StateCodec      StateCodec
	NonceService    NonceService
	Hooks           *ActionHookCoordinator
	URLBuilder      URLBuilder
}

func New(cfg Config, options ...Option) (*Keyring, error) {
	builder := defaultKeyringBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("keyring", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("keyring"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewServiceRegistry()
	}
	if builder.tokenCodec == nil {
		builder.tokenCodec = JSONTokenCodec{}
	}
	if builder.hooks == nil {
		builder.hooks = NewActionHookCoordinator()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.tokenStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				builder.tokenStore = storeProvider.TokenStore()
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.tokenStore = storeProvider.TokenStore()
		}
	}
	if builder.tokenStore == nil {
		builder.tokenStore = NewMemoryTokenStore(finalConfig.StorePolicy())
	}

	if builder.stateCodec == nil || builder.nonceService == nil {
		secret := builder.signingSecret
		if len(secret) == 0 {
			// Without a host-provided secret, in-flight handshakes do not
			// survive a restart.
			secret, err = generateSigningSecret()
			if err != nil {
				return nil, mapBuildError(builder.errorMapper, err)
			}
		}
		if builder.stateCodec == nil {
			codec, codecErr := NewHMACStateCodec(secret, normalizeTTL(finalConfig.State.TTL, defaultStateTTL))
			if codecErr != nil {
				return nil, mapBuildError(builder.errorMapper, codecErr)
			}
			builder.stateCodec = codec
		}
		if builder.nonceService == nil {
			nonces, nonceErr := NewHMACNonceService(secret, normalizeTTL(finalConfig.Nonce.TTL, defaultNonceTTL))
			if nonceErr != nil {
				return nil, mapBuildError(builder.errorMapper, nonceErr)
			}
			builder.nonceService = nonces
		}
	}

	return &Keyring{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		secretProvider:  builder.secretProvider,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		registry:        builder.registry,
		tokenStore:      builder.tokenStore,
		tokenCodec:      builder.tokenCodec,
		stateCodec:      builder.stateCodec,
		nonceService:    builder.nonceService,
		hooks:           builder.hooks,
		urlBuilder:      builder.urlBuilder,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Keyring, error) {
	return New(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (k *Keyring) Config() Config {
	if k == nil {
		return Config{}
	}
	return k.config
}

func (k *Keyring) Dependencies() KeyringDependencies {
	if k == nil {
		return KeyringDependencies{}
	}
	return KeyringDependencies{
		Logger:          k.logger,
		LoggerProvider:  k.loggerProvider,
		MetricsRecorder: k.metricsRecorder,
		ErrorFactory:    k.errorFactory,
		ErrorMapper:     k.errorMapper,
		SecretProvider:  k.secretProvider,
		ConfigProvider:  k.configProvider,
		OptionsResolver: k.optionsResolver,
		Registry:        k.registry,
		TokenStore:      k.tokenStore,
		TokenCodec:      k.tokenCodec,
		StateCodec:      k.stateCodec,
		NonceService:    k.nonceService,
		Hooks:           k.hooks,
		URLBuilder:      k.urlBuilder,
	}
}

func (k *Keyring) Registry() Registry {
	if k == nil {
		return nil
	}
	return k.registry
}

func (k *Keyring) StateCodec() StateCodec {
	if k == nil {
		return nil
	}
	return k.stateCodec
}

func (k *Keyring) NonceService() NonceService {
	if k == nil {
		return nil
	}
	return k.nonceService
}

func (k *Keyring) Hooks() *ActionHookCoordinator {
	if k == nil {
		return nil
	}
	return k.hooks
}

func (k *Keyring) BeginAuthorization(ctx context.Context, req AuthorizationRequest) (redirect AuthorizationRedirect, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"service_name": req.ServiceName,
		"user_id":      req.UserID,
	}
	defer func() {
		k.observeOperation(ctx, startedAt, "begin_authorization", err, fields)
	}()

	if strings.TrimSpace(req.UserID) == "" {
		err = k.mapError(fmt.Errorf("core: user id is required"))
		return AuthorizationRedirect{}, err
	}
	service, err := k.resolveService(req.ServiceName)
	if err != nil {
		return AuthorizationRedirect{}, err
	}

	redirect, err = service.BeginAuthorization(ctx, req)
	if err != nil {
		err = k.mapError(err)
		return AuthorizationRedirect{}, err
	}
	if strings.TrimSpace(redirect.State) == "" {
		redirect.State = strings.TrimSpace(req.State)
	}
	return redirect, nil
}

// FinishAuthorization exchanges the callback proof for a durable token. The
// token is only persisted once the full remote exchange has succeeded, so a
// failed handshake never leaves a partial write behind.
func (k *Keyring) FinishAuthorization(ctx context.Context, req CallbackRequest) (ref TokenRef, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"service_name": req.ServiceName,
		"user_id":      req.UserID,
	}
	defer func() {
		if ref.ID != "" {
			fields["token_id"] = ref.ID
		}
		k.observeOperation(ctx, startedAt, "finish_authorization", err, fields)
	}()

	if strings.TrimSpace(req.UserID) == "" {
		err = k.mapError(fmt.Errorf("core: user id is required"))
		return TokenRef{}, err
	}
	service, err := k.resolveService(req.ServiceName)
	if err != nil {
		return TokenRef{}, err
	}

	token, err := service.FinishAuthorization(ctx, req)
	if err != nil {
		err = k.mapError(err)
		return TokenRef{}, err
	}
	if strings.TrimSpace(token.ServiceName) == "" {
		token.ServiceName = service.Name()
	}

	if service.RequiresToken() {
		ref, err = k.tokenStore.Save(ctx, req.UserID, token)
		if err != nil {
			err = k.mapError(err)
			return TokenRef{}, err
		}
	} else {
		ref = TokenRef{
			ServiceName: token.ServiceName,
			UserID:      strings.TrimSpace(req.UserID),
			UniqueID:    token.UniqueID(),
		}
	}

	k.emitEvent(ctx, ActionEvent{
		Name:        ActionEventName(token.ServiceName, "created"),
		ServiceName: token.ServiceName,
		Action:      "created",
		UserID:      strings.TrimSpace(req.UserID),
		TokenID:     ref.ID,
		Payload: map[string]any{
			"unique_id":    ref.UniqueID,
			"display_name": token.DisplayName(),
		},
	})
	return ref, nil
}

// DeleteToken removes a stored token. Deleting an absent token is not an
// error; the boolean reports whether anything was actually removed.
func (k *Keyring) DeleteToken(ctx context.Context, serviceName, userID, tokenID string) (deleted bool, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"service_name": serviceName,
		"user_id":      userID,
		"token_id":     tokenID,
	}
	defer func() {
		fields["deleted"] = deleted
		k.observeOperation(ctx, startedAt, "delete_token", err, fields)
	}()

	if k == nil || k.tokenStore == nil {
		return false, fmt.Errorf("core: token store is not configured")
	}
	deleted, err = k.tokenStore.Delete(ctx, serviceName, userID, tokenID)
	if err != nil {
		err = k.mapError(err)
		return false, err
	}
	if deleted {
		k.emitEvent(ctx, ActionEvent{
			Name:        EventConnectionDeleted,
			ServiceName: strings.TrimSpace(serviceName),
			Action:      "delete",
			UserID:      strings.TrimSpace(userID),
			TokenID:     strings.TrimSpace(tokenID),
		})
	}
	return deleted, nil
}

func (k *Keyring) GetToken(ctx context.Context, serviceName, userID, tokenID string) (token Token, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"service_name": serviceName,
		"user_id":      userID,
		"token_id":     tokenID,
	}
	defer func() {
		k.observeOperation(ctx, startedAt, "get_token", err, fields)
	}()

	if k == nil || k.tokenStore == nil {
		return Token{}, fmt.Errorf("core: token store is not configured")
	}
	token, err = k.tokenStore.Get(ctx, serviceName, userID, tokenID)
	if err != nil {
		err = k.mapError(err)
		return Token{}, err
	}
	return token, nil
}

func (k *Keyring) ListTokens(ctx context.Context, filter TokenFilter) (tokens []Token, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"service_name": filter.ServiceName,
		"user_id":      filter.UserID,
	}
	defer func() {
		fields["count"] = len(tokens)
		k.observeOperation(ctx, startedAt, "list_tokens", err, fields)
	}()

	if k == nil || k.tokenStore == nil {
		return nil, fmt.Errorf("core: token store is not configured")
	}
	tokens, err = k.tokenStore.List(ctx, filter)
	if err != nil {
		err = k.mapError(err)
		return nil, err
	}
	return tokens, nil
}

func (k *Keyring) CountTokens(ctx context.Context, serviceName, userID string) (count int, err error) {
	if k == nil || k.tokenStore == nil {
		return 0, fmt.Errorf("core: token store is not configured")
	}
	count, err = k.tokenStore.Count(ctx, serviceName, userID)
	if err != nil {
		return 0, k.mapError(err)
	}
	return count, nil
}

func (k *Keyring) resolveService(serviceName string) (Service, error) {
	if k == nil || k.registry == nil {
		return nil, k.mapError(fmt.Errorf("core: registry unavailable"))
	}
	serviceName = strings.TrimSpace(serviceName)
	service, ok := k.registry.Get(serviceName)
	if ok {
		return service, nil
	}
	wrapped := k.errorFactory(
		fmt.Sprintf("service %q is not registered", serviceName),
		goerrors.CategoryNotFound,
	).WithTextCode(KeyringErrorServiceNotFound)
	return nil, wrapped.WithMetadata(map[string]any{"service_name": serviceName})
}

func (k *Keyring) emitEvent(ctx context.Context, event ActionEvent) {
	if k == nil || k.hooks == nil {
		return
	}
	if err := k.hooks.Emit(ctx, event); err != nil {
		k.logError(ctx, "action hooks failed", map[string]any{
			"event": event.Name,
			"error": err.Error(),
		})
	}
}

func (k *Keyring) mapError(err error) error {
	if err == nil {
		return nil
	}
	if k == nil || k.errorMapper == nil {
		return err
	}
	mapped := k.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func generateSigningSecret() ([]byte, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("core: generate signing secret: %w", err)
	}
	out := make([]byte, base64.RawURLEncoding.EncodedLen(len(raw)))
	base64.RawURLEncoding.Encode(out, raw)
	return out, nil
}
