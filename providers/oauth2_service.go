package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-keyring/core"
)

// OAuth2Config configures an authorization-code flow service. ClientSecret
// rides in the Authorization header unless ClientSecretInBody is set; some
// remotes only accept it in the form body.
type OAuth2Config struct {
	Name               string
	Label              string
	AuthURL            string
	TokenURL           string
	ClientID           string
	ClientSecret       string
	ClientSecretInBody bool
	Scopes             []string
	TokenTTL           time.Duration
	RequestTimeout     time.Duration
	Now                func() time.Time
	HTTPClient         HTTPDoer
}

type OAuth2Service struct {
	cfg        OAuth2Config
	httpClient HTTPDoer
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func NewOAuth2Service(cfg OAuth2Config) (*OAuth2Service, error) {
	cfg.Name = strings.TrimSpace(strings.ToLower(cfg.Name))
	if cfg.Name == "" {
		return nil, fmt.Errorf("providers: service name is required")
	}
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return nil, fmt.Errorf("providers: auth url is required for service %q", cfg.Name)
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for service %q", cfg.Name)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("providers: client id is required for service %q", cfg.Name)
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.Scopes = normalizeScopes(cfg.Scopes)
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &OAuth2Service{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (s *OAuth2Service) Name() string {
	if s == nil {
		return ""
	}
	return s.cfg.Name
}

func (s *OAuth2Service) Label() string {
	if s == nil {
		return ""
	}
	return serviceLabel(s.cfg.Label, s.cfg.Name)
}

func (*OAuth2Service) RequiresToken() bool {
	return true
}

func (s *OAuth2Service) BeginAuthorization(_ context.Context, req core.AuthorizationRequest) (core.AuthorizationRedirect, error) {
	if s == nil {
		return core.AuthorizationRedirect{}, fmt.Errorf("providers: oauth2 service is nil")
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return core.AuthorizationRedirect{}, fmt.Errorf("providers: state is required for service %q", s.cfg.Name)
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", s.cfg.ClientID)
	if redirectURI := strings.TrimSpace(req.CallbackURL); redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	if len(s.cfg.Scopes) > 0 {
		values.Set("scope", strings.Join(s.cfg.Scopes, " "))
	}
	values.Set("state", state)

	return core.AuthorizationRedirect{
		URL:   appendQuery(s.cfg.AuthURL, values.Encode()),
		State: state,
		Metadata: map[string]any{
			"service": s.cfg.Name,
		},
	}, nil
}

func (s *OAuth2Service) FinishAuthorization(ctx context.Context, req core.CallbackRequest) (core.Token, error) {
	if s == nil {
		return core.Token{}, fmt.Errorf("providers: oauth2 service is nil")
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return core.Token{}, fmt.Errorf("providers: auth code is required for service %q", s.cfg.Name)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI := strings.TrimSpace(readExtraString(req.Extra, "callback_url")); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	payload, err := s.fetchToken(ctx, form)
	if err != nil {
		return core.Token{}, err
	}

	now := s.cfg.Now().UTC()
	token := core.NewToken(s.cfg.Name, core.TokenKindAccess, core.TokenPayload{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		TokenType:    normalizeTokenType(payload.TokenType),
		Scope:        s.grantedScopes(payload.Scope),
		ExpiresAt:    s.resolveExpiresAt(now, payload.ExpiresIn),
	})
	return token.WithMeta(map[string]any{
		"token_url": s.cfg.TokenURL,
	}), nil
}

func (s *OAuth2Service) grantedScopes(scope string) []string {
	granted := parseScopeList(scope)
	if len(granted) == 0 {
		granted = append([]string(nil), s.cfg.Scopes...)
	}
	return granted
}

func (s *OAuth2Service) fetchToken(ctx context.Context, form url.Values) (tokenEndpointPayload, error) {
	if s.httpClient == nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: oauth2 http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	form.Set("client_id", s.cfg.ClientID)
	if s.cfg.ClientSecretInBody && s.cfg.ClientSecret != "" {
		form.Set("client_secret", s.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		s.cfg.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !s.cfg.ClientSecretInBody && s.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret)
	}

	response, err := s.httpClient.Do(httpReq)
	if err != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: read token response: %w", readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token response exceeds %d bytes", maxResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return tokenEndpointPayload{}, fmt.Errorf(
			"providers: remote service returned status %d: %s",
			response.StatusCode,
			describeTokenError(payload),
		)
	}
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint error: %s", describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint response missing access token")
	}
	return payload, nil
}

func (s *OAuth2Service) resolveExpiresAt(now time.Time, expiresIn int64) *time.Time {
	ttl := s.cfg.TokenTTL
	if expiresIn > 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	if ttl <= 0 {
		return nil
	}
	expiresAt := now.Add(ttl)
	return &expiresAt
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func readExtraString(extra map[string]any, key string) string {
	if len(extra) == 0 {
		return ""
	}
	value, ok := extra[key]
	if !ok || value == nil {
		return ""
	}
	return readAnyString(value)
}

var _ core.Service = (*OAuth2Service)(nil)
