// Package dispatch drives the handshake state machine: it normalizes
// incoming request parameters, gates every action behind a nonce, unpacks
// signed state blobs, and routes recognized actions into the keyring.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-keyring/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	ActionRequest = "request"
	ActionVerify  = "verify"
	ActionCreated = "created"
	ActionDelete  = "delete"
	ActionManage  = "manage"
)

const (
	paramService = "service"
	paramAction  = "action"
	paramNonce   = "kr_nonce"
	paramUserID  = "user_id"
	paramTokenID = "token"

	// doubleEncodedPrefix shows up when an upstream layer HTML-encodes an
	// already encoded query string: &foo becomes &amp;foo and the parameter
	// arrives named "amp;foo".
	doubleEncodedPrefix = "amp;"
)

// Request is one inbound handshake step. Params are the raw query
// parameters; Service, Action, Nonce, and State may also arrive inside
// Params or the signed state blob.
type Request struct {
	Service string
	Action  string
	UserID  string
	Nonce   string
	State   string
	TokenID string
	Params  map[string]string
}

// Result reports what a handshake step did. State is the signed blob the
// host must round-trip to the verify step; for remotes that echo the state
// query parameter it already rides RedirectURL, for OAuth 1.0a remotes the
// host carries it itself (session or callback URL).
type Result struct {
	Handled     bool
	Action      string
	ServiceName string
	RedirectURL string
	State       string
	TokenRef    *core.TokenRef
	Tokens      []core.Token
	Deleted     bool
}

type Dispatcher struct {
	keyring *core.Keyring
	logger  core.Logger

	mu      sync.RWMutex
	actions map[string]struct{}
}

type Option func(*Dispatcher)

func WithLogger(logger core.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithActions replaces the recognized action set. Hosts extending the
// handshake register their extra actions here.
func WithActions(actions ...string) Option {
	return func(d *Dispatcher) {
		d.actions = map[string]struct{}{}
		for _, action := range actions {
			if action = normalizeToken(action); action != "" {
				d.actions[action] = struct{}{}
			}
		}
	}
}

func NewDispatcher(keyring *core.Keyring, options ...Option) *Dispatcher {
	d := &Dispatcher{
		keyring: keyring,
		actions: map[string]struct{}{
			ActionRequest: {},
			ActionVerify:  {},
			ActionCreated: {},
			ActionDelete:  {},
			ActionManage:  {},
		},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(d)
	}
	if d.logger == nil && keyring != nil {
		d.logger = keyring.Dependencies().Logger
	}
	d.logger = glog.Ensure(d.logger)
	return d
}

// Dispatch runs one handshake step. Unknown services and unknown actions
// are silent no-ops; security failures (nonce, state signature) abort the
// step before any service code runs and fire the error event.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if d == nil || d.keyring == nil {
		return Result{}, dispatchInternal("dispatch: dispatcher is not configured", nil)
	}

	req.Params = NormalizeParams(req.Params)
	d.promoteParams(&req)

	if req.State != "" {
		if err := d.unpackState(&req); err != nil {
			d.emitError(ctx, req, err)
			return Result{}, err
		}
	}

	service := normalizeToken(req.Service)
	action := normalizeToken(req.Action)
	if service == "" || action == "" {
		return Result{}, nil
	}
	if !d.recognizes(action) {
		return Result{}, nil
	}
	registry := d.keyring.Registry()
	if registry == nil {
		return Result{}, dispatchInternal("dispatch: registry unavailable", nil)
	}
	if _, ok := registry.Get(service); !ok {
		return Result{}, nil
	}

	if strings.TrimSpace(req.UserID) == "" {
		err := dispatchBadInput("dispatch: user id is required", map[string]any{
			"service": service,
			"action":  action,
		})
		d.emitError(ctx, req, err)
		return Result{}, err
	}

	if err := d.verifyNonce(req, service, action); err != nil {
		d.emitError(ctx, req, err)
		return Result{}, err
	}

	d.emit(ctx, core.ActionEvent{
		Name:        core.PreActionEventName(service, action),
		ServiceName: service,
		Action:      action,
		UserID:      req.UserID,
		TokenID:     req.TokenID,
	})

	result, err := d.run(ctx, req, service, action)
	if err != nil {
		d.emitError(ctx, req, err)
		return Result{}, err
	}

	d.emit(ctx, core.ActionEvent{
		Name:        core.ActionEventName(service, action),
		ServiceName: service,
		Action:      action,
		UserID:      req.UserID,
		TokenID:     req.TokenID,
	})

	result.Handled = true
	result.Action = action
	result.ServiceName = service
	return result, nil
}

func (d *Dispatcher) run(ctx context.Context, req Request, service, action string) (Result, error) {
	switch action {
	case ActionRequest:
		return d.runRequest(ctx, req, service)
	case ActionVerify:
		return d.runVerify(ctx, req, service)
	case ActionDelete:
		return d.runDelete(ctx, req, service)
	case ActionManage:
		return d.runManage(ctx, req, service)
	case ActionCreated:
		// Side-effect-only announcement; the surrounding events are the
		// whole point.
		return Result{}, nil
	}
	return Result{}, nil
}

// runRequest starts the handshake. The redirect carries a signed state blob
// that pre-authorizes the matching verify step, so the callback can be
// routed without trusting anything the remote service echoes back.
func (d *Dispatcher) runRequest(ctx context.Context, req Request, service string) (Result, error) {
	stateParams := map[string]any{
		paramService: service,
		paramAction:  ActionVerify,
		paramUserID:  req.UserID,
	}
	if nonces := d.keyring.NonceService(); nonces != nil {
		stateParams[paramNonce] = nonces.Issue(ActionVerify, req.UserID)
	}
	for key, value := range req.Params {
		if key = strings.TrimSpace(key); key == "" {
			continue
		}
		if _, reserved := stateParams[key]; reserved {
			continue
		}
		stateParams[key] = value
	}

	state := ""
	if codec := d.keyring.StateCodec(); codec != nil {
		encoded, err := codec.Encode(stateParams)
		if err != nil {
			return Result{}, dispatchWrapError(
				err,
				goerrors.CategoryInternal,
				"dispatch: encode handshake state",
				http.StatusInternalServerError,
				core.KeyringErrorInternal,
				map[string]any{"service_name": service},
			)
		}
		state = encoded
	}

	redirect, err := d.keyring.BeginAuthorization(ctx, core.AuthorizationRequest{
		ServiceName: service,
		UserID:      req.UserID,
		State:       state,
		Extra:       paramsToAny(req.Params),
	})
	if err != nil {
		return Result{}, err
	}

	// Handshake material the service produced mid-flight (request token
	// secrets and the like) gets folded into the blob so the verify step can
	// recover it without a server-side state store.
	if len(redirect.Metadata) > 0 {
		for key, value := range redirect.Metadata {
			if key = strings.TrimSpace(key); key == "" {
				continue
			}
			stateParams[key] = value
		}
		if codec := d.keyring.StateCodec(); codec != nil {
			encoded, encodeErr := codec.Encode(stateParams)
			if encodeErr != nil {
				return Result{}, dispatchWrapError(
					encodeErr,
					goerrors.CategoryInternal,
					"dispatch: encode handshake state",
					http.StatusInternalServerError,
					core.KeyringErrorInternal,
					map[string]any{"service_name": service},
				)
			}
			state = encoded
		}
	}
	return Result{RedirectURL: redirect.URL, State: state}, nil
}

func (d *Dispatcher) runVerify(ctx context.Context, req Request, service string) (Result, error) {
	callback := core.CallbackRequest{
		ServiceName: service,
		UserID:      req.UserID,
		Code:        firstParam(req.Params, "code"),
		Verifier:    firstParam(req.Params, "oauth_verifier", "verifier"),
		RequestKey:  firstParam(req.Params, "oauth_token", "request_token"),
		Params:      req.Params,
	}
	ref, err := d.keyring.FinishAuthorization(ctx, callback)
	if err != nil {
		return Result{}, err
	}

	// Continue into the created announcement without re-running the nonce
	// gate: verify already proved the caller's intent for this handshake.
	d.emit(ctx, core.ActionEvent{
		Name:        core.PreActionEventName(service, ActionCreated),
		ServiceName: service,
		Action:      ActionCreated,
		UserID:      req.UserID,
		TokenID:     ref.ID,
	})

	return Result{TokenRef: &ref}, nil
}

func (d *Dispatcher) runDelete(ctx context.Context, req Request, service string) (Result, error) {
	tokenID := strings.TrimSpace(req.TokenID)
	if tokenID == "" {
		tokenID = firstParam(req.Params, paramTokenID, "token_id")
	}
	deleted, err := d.keyring.DeleteToken(ctx, service, req.UserID, tokenID)
	if err != nil {
		return Result{}, err
	}
	return Result{Deleted: deleted}, nil
}

func (d *Dispatcher) runManage(ctx context.Context, req Request, service string) (Result, error) {
	tokens, err := d.keyring.ListTokens(ctx, core.TokenFilter{
		ServiceName: service,
		UserID:      req.UserID,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Tokens: tokens}, nil
}

func (d *Dispatcher) verifyNonce(req Request, service, action string) error {
	nonces := d.keyring.NonceService()
	if nonces == nil {
		return dispatchInternal("dispatch: nonce service unavailable", map[string]any{
			"service_name": service,
		})
	}
	if err := nonces.Verify(req.Nonce, action, req.UserID); err != nil {
		return dispatchWrapError(
			err,
			goerrors.CategoryAuth,
			fmt.Sprintf("dispatch: nonce rejected for action %q", action),
			http.StatusUnauthorized,
			core.KeyringErrorInvalidNonce,
			map[string]any{"service_name": service, "action": action},
		)
	}
	return nil
}

// unpackState decodes the signed blob and folds its parameters back into
// the request. Parameters already present on the request win; the blob only
// fills gaps. A blob that fails validation kills the whole step.
func (d *Dispatcher) unpackState(req *Request) error {
	codec := d.keyring.StateCodec()
	if codec == nil {
		return dispatchInternal("dispatch: state codec unavailable", nil)
	}
	params, err := codec.Decode(req.State)
	if err != nil {
		category := goerrors.CategoryAuth
		textCode := core.KeyringErrorStateSignature
		switch {
		case goerrors.Is(err, core.ErrStateNoHash):
			textCode = core.KeyringErrorStateNoHash
		case goerrors.Is(err, core.ErrStateExpired):
			textCode = core.KeyringErrorStateExpired
		}
		return dispatchWrapError(
			err,
			category,
			"dispatch: state blob rejected",
			http.StatusUnauthorized,
			textCode,
			nil,
		)
	}

	if req.Params == nil {
		req.Params = map[string]string{}
	}
	for key, value := range params {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := req.Params[key]; exists {
			continue
		}
		req.Params[key] = trimAny(value)
	}
	d.promoteParams(req)
	return nil
}

// promoteParams lifts routing fields out of Params into their dedicated
// slots without overwriting values the caller already set.
func (d *Dispatcher) promoteParams(req *Request) {
	if req.Service == "" {
		req.Service = firstParam(req.Params, paramService)
	}
	if req.Action == "" {
		req.Action = firstParam(req.Params, paramAction)
	}
	if req.Nonce == "" {
		req.Nonce = firstParam(req.Params, paramNonce)
	}
	if req.UserID == "" {
		req.UserID = firstParam(req.Params, paramUserID)
	}
	if req.TokenID == "" {
		req.TokenID = firstParam(req.Params, paramTokenID, "token_id")
	}
	if req.State == "" {
		req.State = firstParam(req.Params, "state")
	}
}

func (d *Dispatcher) recognizes(action string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.actions[action]
	return ok
}

func (d *Dispatcher) emit(ctx context.Context, event core.ActionEvent) {
	hooks := d.keyring.Hooks()
	if hooks == nil {
		return
	}
	if err := hooks.Emit(ctx, event); err != nil {
		d.logger.Error("action hooks failed", "event", event.Name, "error", err.Error())
	}
}

func (d *Dispatcher) emitError(ctx context.Context, req Request, cause error) {
	d.emit(ctx, core.ActionEvent{
		Name:        core.EventError,
		ServiceName: normalizeToken(req.Service),
		Action:      normalizeToken(req.Action),
		UserID:      req.UserID,
		OccurredAt:  time.Now().UTC(),
		Payload: map[string]any{
			"error": cause.Error(),
		},
	})
}

// NormalizeParams strips the double-encoded "amp;" key prefix. When both
// the mangled and the clean key arrive, the clean key wins.
func NormalizeParams(params map[string]string) map[string]string {
	if len(params) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(params))
	for key, value := range params {
		if strings.HasPrefix(key, doubleEncodedPrefix) {
			continue
		}
		out[key] = value
	}
	for key, value := range params {
		if !strings.HasPrefix(key, doubleEncodedPrefix) {
			continue
		}
		clean := strings.TrimPrefix(key, doubleEncodedPrefix)
		if clean == "" {
			continue
		}
		if _, exists := out[clean]; exists {
			continue
		}
		out[clean] = value
	}
	return out
}

func firstParam(params map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(params[key]); value != "" {
			return value
		}
	}
	return ""
}

func paramsToAny(params map[string]string) map[string]any {
	if len(params) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		out[key] = value
	}
	return out
}

func normalizeToken(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

func trimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
