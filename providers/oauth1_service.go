package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-keyring/core"
)

// OAuth1Config configures a three-legged OAuth 1.0a service signed with
// HMAC-SHA1.
type OAuth1Config struct {
	Name            string
	Label           string
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
	ConsumerKey     string
	ConsumerSecret  string
	RequestTimeout  time.Duration
	Now             func() time.Time
	Nonce           func() (string, error)
	HTTPClient      HTTPDoer
}

// OAuth1Service runs the request-token, authorize, access-token dance. The
// request-token secret is handed back in the redirect metadata; the caller
// round-trips it inside the signed state blob and it comes back on the
// verify step's parameters.
type OAuth1Service struct {
	cfg        OAuth1Config
	httpClient HTTPDoer
}

const (
	oauth1ParamToken       = "oauth_token"
	oauth1ParamTokenSecret = "oauth_token_secret"
)

func NewOAuth1Service(cfg OAuth1Config) (*OAuth1Service, error) {
	cfg.Name = strings.TrimSpace(strings.ToLower(cfg.Name))
	if cfg.Name == "" {
		return nil, fmt.Errorf("providers: service name is required")
	}
	if strings.TrimSpace(cfg.RequestTokenURL) == "" {
		return nil, fmt.Errorf("providers: request token url is required for service %q", cfg.Name)
	}
	if strings.TrimSpace(cfg.AuthorizeURL) == "" {
		return nil, fmt.Errorf("providers: authorize url is required for service %q", cfg.Name)
	}
	if strings.TrimSpace(cfg.AccessTokenURL) == "" {
		return nil, fmt.Errorf("providers: access token url is required for service %q", cfg.Name)
	}
	if strings.TrimSpace(cfg.ConsumerKey) == "" {
		return nil, fmt.Errorf("providers: consumer key is required for service %q", cfg.Name)
	}

	cfg.RequestTokenURL = strings.TrimSpace(cfg.RequestTokenURL)
	cfg.AuthorizeURL = strings.TrimSpace(cfg.AuthorizeURL)
	cfg.AccessTokenURL = strings.TrimSpace(cfg.AccessTokenURL)
	cfg.ConsumerKey = strings.TrimSpace(cfg.ConsumerKey)
	cfg.ConsumerSecret = strings.TrimSpace(cfg.ConsumerSecret)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}
	if cfg.Nonce == nil {
		cfg.Nonce = generateOAuth1Nonce
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &OAuth1Service{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (s *OAuth1Service) Name() string {
	if s == nil {
		return ""
	}
	return s.cfg.Name
}

func (s *OAuth1Service) Label() string {
	if s == nil {
		return ""
	}
	return serviceLabel(s.cfg.Label, s.cfg.Name)
}

func (*OAuth1Service) RequiresToken() bool {
	return true
}

func (s *OAuth1Service) BeginAuthorization(ctx context.Context, req core.AuthorizationRequest) (core.AuthorizationRedirect, error) {
	if s == nil {
		return core.AuthorizationRedirect{}, fmt.Errorf("providers: oauth1 service is nil")
	}

	callback := strings.TrimSpace(req.CallbackURL)
	if callback == "" {
		callback = "oob"
	}
	response, err := s.signedCall(ctx, s.cfg.RequestTokenURL, map[string]string{
		"oauth_callback": callback,
	}, "")
	if err != nil {
		return core.AuthorizationRedirect{}, err
	}

	requestToken := response.Get(oauth1ParamToken)
	requestSecret := response.Get(oauth1ParamTokenSecret)
	if requestToken == "" {
		return core.AuthorizationRedirect{}, fmt.Errorf(
			"providers: request token response missing oauth_token for service %q", s.cfg.Name)
	}
	if response.Get("oauth_callback_confirmed") != "true" {
		return core.AuthorizationRedirect{}, fmt.Errorf(
			"providers: remote did not confirm the callback for service %q", s.cfg.Name)
	}

	values := url.Values{}
	values.Set(oauth1ParamToken, requestToken)

	return core.AuthorizationRedirect{
		URL:   appendQuery(s.cfg.AuthorizeURL, values.Encode()),
		State: req.State,
		Metadata: map[string]any{
			oauth1ParamToken:       requestToken,
			oauth1ParamTokenSecret: requestSecret,
		},
	}, nil
}

func (s *OAuth1Service) FinishAuthorization(ctx context.Context, req core.CallbackRequest) (core.Token, error) {
	if s == nil {
		return core.Token{}, fmt.Errorf("providers: oauth1 service is nil")
	}
	requestToken := strings.TrimSpace(req.RequestKey)
	if requestToken == "" {
		requestToken = strings.TrimSpace(req.Params[oauth1ParamToken])
	}
	verifier := strings.TrimSpace(req.Verifier)
	if requestToken == "" || verifier == "" {
		return core.Token{}, fmt.Errorf(
			"providers: oauth_token and oauth_verifier are required for service %q", s.cfg.Name)
	}
	requestSecret := strings.TrimSpace(req.Params[oauth1ParamTokenSecret])
	if requestSecret == "" {
		requestSecret = strings.TrimSpace(readExtraString(req.Extra, oauth1ParamTokenSecret))
	}

	response, err := s.signedCall(ctx, s.cfg.AccessTokenURL, map[string]string{
		oauth1ParamToken: requestToken,
		"oauth_verifier": verifier,
	}, requestSecret)
	if err != nil {
		return core.Token{}, err
	}

	accessKey := response.Get(oauth1ParamToken)
	accessSecret := response.Get(oauth1ParamTokenSecret)
	if accessKey == "" || accessSecret == "" {
		return core.Token{}, fmt.Errorf(
			"providers: access token response incomplete for service %q", s.cfg.Name)
	}

	token := core.NewToken(s.cfg.Name, core.TokenKindKeyPair, core.TokenPayload{
		Key:    accessKey,
		Secret: accessSecret,
	})

	meta := map[string]any{}
	if screenName := response.Get("screen_name"); screenName != "" {
		meta["username"] = screenName
	}
	if externalID := response.Get("user_id"); externalID != "" {
		meta["external_id"] = externalID
	}
	if len(meta) == 0 {
		return token, nil
	}
	return token.WithMeta(meta), nil
}

// signedCall POSTs to an OAuth1 endpoint with the oauth_* protocol
// parameters in the Authorization header and parses the form-encoded body.
func (s *OAuth1Service) signedCall(ctx context.Context, endpoint string, extra map[string]string, tokenSecret string) (url.Values, error) {
	if s.httpClient == nil {
		return nil, fmt.Errorf("providers: oauth1 http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	nonce, err := s.cfg.Nonce()
	if err != nil {
		return nil, err
	}
	oauthParams := map[string]string{
		"oauth_consumer_key":     s.cfg.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.cfg.Now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	for key, value := range extra {
		oauthParams[key] = value
	}

	baseString, err := signatureBaseString(http.MethodPost, endpoint, oauthParams)
	if err != nil {
		return nil, err
	}
	oauthParams["oauth_signature"] = signHMACSHA1(baseString, s.cfg.ConsumerSecret, tokenSecret)

	requestCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", authorizationHeader(oauthParams))
	httpReq.Header.Set("Accept", "application/x-www-form-urlencoded")

	response, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("providers: oauth1 request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return nil, fmt.Errorf("providers: read oauth1 response: %w", readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return nil, fmt.Errorf("providers: oauth1 response exceeds %d bytes", maxResponseBodyBytes)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf(
			"providers: remote service returned status %d: %s",
			response.StatusCode,
			strings.TrimSpace(string(body)),
		)
	}

	values, parseErr := url.ParseQuery(strings.TrimSpace(string(body)))
	if parseErr != nil {
		return nil, fmt.Errorf("providers: decode oauth1 response: %w", parseErr)
	}
	return values, nil
}

var _ core.Service = (*OAuth1Service)(nil)
