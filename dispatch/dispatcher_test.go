package dispatch

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-keyring/core"
)

type fakeService struct {
	name          string
	requiresToken bool
	beginErr      error
	finishErr     error

	mu          sync.Mutex
	beginCalls  int
	finishCalls int
}

func (s *fakeService) Name() string        { return s.name }
func (s *fakeService) Label() string       { return s.name }
func (s *fakeService) RequiresToken() bool { return s.requiresToken }

func (s *fakeService) BeginAuthorization(_ context.Context, req core.AuthorizationRequest) (core.AuthorizationRedirect, error) {
	s.mu.Lock()
	s.beginCalls++
	s.mu.Unlock()
	if s.beginErr != nil {
		return core.AuthorizationRedirect{}, s.beginErr
	}
	return core.AuthorizationRedirect{
		URL:   "https://remote.example/authorize?state=" + req.State,
		State: req.State,
	}, nil
}

func (s *fakeService) FinishAuthorization(_ context.Context, req core.CallbackRequest) (core.Token, error) {
	s.mu.Lock()
	s.finishCalls++
	s.mu.Unlock()
	if s.finishErr != nil {
		return core.Token{}, s.finishErr
	}
	expires := time.Now().UTC().Add(time.Hour)
	return core.NewToken(s.name, core.TokenKindAccess, core.TokenPayload{
		AccessToken: "access-for-" + req.Code,
		TokenType:   "bearer",
		ExpiresAt:   &expires,
	}), nil
}

func (s *fakeService) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginCalls, s.finishCalls
}

type recordingHook struct {
	mu     sync.Mutex
	events []core.ActionEvent
}

func (h *recordingHook) Name() string { return "recording" }

func (h *recordingHook) OnEvent(_ context.Context, event core.ActionEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHook) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, event := range h.events {
		if event.Name == name {
			total++
		}
	}
	return total
}

type harness struct {
	keyring    *core.Keyring
	dispatcher *Dispatcher
	service    *fakeService
	hook       *recordingHook
	nonces     core.NonceService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	service := &fakeService{name: "example", requiresToken: true}
	hook := &recordingHook{}
	hooks := core.NewActionHookCoordinator()
	hooks.Register(hook)

	keyring, err := core.New(
		core.Config{ServiceName: "dispatch-test"},
		core.WithSigningSecret([]byte("dispatch-secret")),
		core.WithHooks(hooks),
	)
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	if err := keyring.Registry().Register(service); err != nil {
		t.Fatalf("register service: %v", err)
	}
	return &harness{
		keyring:    keyring,
		dispatcher: NewDispatcher(keyring),
		service:    service,
		hook:       hook,
		nonces:     keyring.NonceService(),
	}
}

func TestNormalizeParams_CleanKeyWins(t *testing.T) {
	params := NormalizeParams(map[string]string{
		"amp;service": "mangled",
		"service":     "clean",
		"amp;code":    "only-mangled",
	})
	if params["service"] != "clean" {
		t.Fatalf("expected clean key to win, got %q", params["service"])
	}
	if params["code"] != "only-mangled" {
		t.Fatalf("expected mangled-only key recovered, got %q", params["code"])
	}
	if _, ok := params["amp;service"]; ok {
		t.Fatalf("expected mangled key removed")
	}
}

func TestDispatch_UnknownServiceIsSilentNoOp(t *testing.T) {
	h := newHarness(t)
	result, err := h.dispatcher.Dispatch(context.Background(), Request{
		Service: "unknown",
		Action:  ActionRequest,
		UserID:  "user-1",
		Nonce:   h.nonces.Issue(ActionRequest, "user-1"),
	})
	if err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if result.Handled {
		t.Fatalf("expected unhandled result")
	}
}

func TestDispatch_UnknownActionIsSilentNoOp(t *testing.T) {
	h := newHarness(t)
	result, err := h.dispatcher.Dispatch(context.Background(), Request{
		Service: "example",
		Action:  "frobnicate",
		UserID:  "user-1",
	})
	if err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if result.Handled {
		t.Fatalf("expected unhandled result")
	}
	if begin, finish := h.service.calls(); begin != 0 || finish != 0 {
		t.Fatalf("expected no service calls, got begin=%d finish=%d", begin, finish)
	}
}

func TestDispatch_MissingUserIsRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.dispatcher.Dispatch(context.Background(), Request{
		Service: "example",
		Action:  ActionRequest,
		Nonce:   h.nonces.Issue(ActionRequest, ""),
	})
	if err == nil {
		t.Fatalf("expected missing user failure")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != core.KeyringErrorBadInput {
		t.Fatalf("expected bad input error, got %v", err)
	}
	if begin, finish := h.service.calls(); begin != 0 || finish != 0 {
		t.Fatalf("service must not run without a user, got begin=%d finish=%d", begin, finish)
	}
	if h.hook.count(core.EventError) != 1 {
		t.Fatalf("expected one error event")
	}
}

func TestDispatch_MissingNonceFailsClosed(t *testing.T) {
	h := newHarness(t)
	_, err := h.dispatcher.Dispatch(context.Background(), Request{
		Service: "example",
		Action:  ActionRequest,
		UserID:  "user-1",
	})
	if err == nil {
		t.Fatalf("expected nonce failure")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != core.KeyringErrorInvalidNonce {
		t.Fatalf("expected invalid nonce error, got %v", err)
	}
	if begin, _ := h.service.calls(); begin != 0 {
		t.Fatalf("service must not run behind a bad nonce")
	}
	if h.hook.count(core.EventError) != 1 {
		t.Fatalf("expected one error event")
	}

	count, countErr := h.keyring.CountTokens(context.Background(), "example", "user-1")
	if countErr != nil {
		t.Fatalf("count: %v", countErr)
	}
	if count != 0 {
		t.Fatalf("store must stay untouched, got %d tokens", count)
	}
}

func TestDispatch_WrongActionNonceRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.dispatcher.Dispatch(context.Background(), Request{
		Service: "example",
		Action:  ActionDelete,
		UserID:  "user-1",
		Nonce:   h.nonces.Issue(ActionManage, "user-1"),
	})
	if !errorTextCode(err, core.KeyringErrorInvalidNonce) {
		t.Fatalf("expected nonce scoped to action, got %v", err)
	}
}

func TestDispatch_TamperedStateFailsClosed(t *testing.T) {
	h := newHarness(t)

	blob, err := h.keyring.StateCodec().Encode(map[string]any{
		paramService: "example",
		paramAction:  ActionVerify,
		paramUserID:  "user-1",
	})
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	// Flip one character inside the blob.
	tampered := []byte(blob)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}

	_, err = h.dispatcher.Dispatch(context.Background(), Request{State: string(tampered)})
	if err == nil {
		t.Fatalf("expected tampered state rejection")
	}
	if _, finish := h.service.calls(); finish != 0 {
		t.Fatalf("service must not run behind a bad state blob")
	}
	if h.hook.count(core.EventError) != 1 {
		t.Fatalf("expected one error event")
	}
}

func TestDispatch_RequestEmitsLifecycleEvents(t *testing.T) {
	h := newHarness(t)
	result, err := h.dispatcher.Dispatch(context.Background(), Request{
		Service: "example",
		Action:  ActionRequest,
		UserID:  "user-1",
		Nonce:   h.nonces.Issue(ActionRequest, "user-1"),
	})
	if err != nil {
		t.Fatalf("dispatch request: %v", err)
	}
	if !result.Handled || result.RedirectURL == "" {
		t.Fatalf("expected handled redirect, got %+v", result)
	}
	if h.hook.count("pre_example_request") != 1 || h.hook.count("example_request") != 1 {
		t.Fatalf("expected pre and post events for request")
	}
}

func TestDispatch_DeleteRemovesTokenAndAnnounces(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ref, err := h.keyring.FinishAuthorization(ctx, core.CallbackRequest{
		ServiceName: "example",
		UserID:      "user-1",
		Code:        "seed",
	})
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}

	result, err := h.dispatcher.Dispatch(ctx, Request{
		Service: "example",
		Action:  ActionDelete,
		UserID:  "user-1",
		TokenID: ref.ID,
		Nonce:   h.nonces.Issue(ActionDelete, "user-1"),
	})
	if err != nil {
		t.Fatalf("dispatch delete: %v", err)
	}
	if !result.Deleted {
		t.Fatalf("expected deletion")
	}
	if h.hook.count(core.EventConnectionDeleted) != 1 {
		t.Fatalf("expected connection_deleted event")
	}

	// Same delete again: handled, nothing removed, no second announcement.
	result, err = h.dispatcher.Dispatch(ctx, Request{
		Service: "example",
		Action:  ActionDelete,
		UserID:  "user-1",
		TokenID: ref.ID,
		Nonce:   h.nonces.Issue(ActionDelete, "user-1"),
	})
	if err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if result.Deleted {
		t.Fatalf("expected idempotent no-op")
	}
	if h.hook.count(core.EventConnectionDeleted) != 1 {
		t.Fatalf("no-op delete must not announce again")
	}
}

func TestDispatch_ManageListsTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.keyring.FinishAuthorization(ctx, core.CallbackRequest{
		ServiceName: "example",
		UserID:      "user-1",
		Code:        "seed",
	}); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	result, err := h.dispatcher.Dispatch(ctx, Request{
		Service: "example",
		Action:  ActionManage,
		UserID:  "user-1",
		Nonce:   h.nonces.Issue(ActionManage, "user-1"),
	})
	if err != nil {
		t.Fatalf("dispatch manage: %v", err)
	}
	if len(result.Tokens) != 1 {
		t.Fatalf("expected one token listed, got %d", len(result.Tokens))
	}
}

// The full round trip: request produces a signed state blob, the callback
// comes back with only that blob plus the grant code, and verify ends with
// exactly one stored token and one created announcement.
func TestDispatch_EndToEndHandshake(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	requestResult, err := h.dispatcher.Dispatch(ctx, Request{
		Service: "example",
		Action:  ActionRequest,
		UserID:  "user-1",
		Nonce:   h.nonces.Issue(ActionRequest, "user-1"),
	})
	if err != nil {
		t.Fatalf("request step: %v", err)
	}

	// The remote service echoes the state back on its callback.
	state := stateFromRedirect(t, requestResult.RedirectURL)

	verifyResult, err := h.dispatcher.Dispatch(ctx, Request{
		State: state,
		Params: map[string]string{
			"amp;code": "grant-123",
		},
	})
	if err != nil {
		t.Fatalf("verify step: %v", err)
	}
	if !verifyResult.Handled || verifyResult.Action != ActionVerify {
		t.Fatalf("expected verify to run off the state blob, got %+v", verifyResult)
	}
	if verifyResult.TokenRef == nil || verifyResult.TokenRef.ID == "" {
		t.Fatalf("expected a stored token ref")
	}

	count, err := h.keyring.CountTokens(ctx, "example", "user-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one token, got %d", count)
	}
	if h.hook.count("example_created") != 1 {
		t.Fatalf("expected exactly one created event, got %d", h.hook.count("example_created"))
	}

	token, err := h.keyring.GetToken(ctx, "example", "user-1", verifyResult.TokenRef.ID)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if token.Payload.AccessToken != "access-for-grant-123" {
		t.Fatalf("expected the callback code to flow into the exchange, got %q", token.Payload.AccessToken)
	}
}

func TestDispatch_RemoteFailureLeavesNoToken(t *testing.T) {
	h := newHarness(t)
	h.service.finishErr = errors.New("remote service returned status 502")
	ctx := context.Background()

	_, err := h.dispatcher.Dispatch(ctx, Request{
		Service: "example",
		Action:  ActionVerify,
		UserID:  "user-1",
		Nonce:   h.nonces.Issue(ActionVerify, "user-1"),
		Params:  map[string]string{"code": "grant"},
	})
	if err == nil {
		t.Fatalf("expected remote failure to surface")
	}

	count, countErr := h.keyring.CountTokens(ctx, "example", "user-1")
	if countErr != nil {
		t.Fatalf("count: %v", countErr)
	}
	if count != 0 {
		t.Fatalf("expected no partial writes, got %d", count)
	}
}

func errorTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func stateFromRedirect(t *testing.T, redirectURL string) string {
	t.Helper()
	parsed, err := url.Parse(redirectURL)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	state := parsed.Query().Get("state")
	if state == "" {
		t.Fatalf("expected state in redirect %q", redirectURL)
	}
	return state
}
