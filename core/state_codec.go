package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	stateHashKey     = "hash"
	stateIssuedAtKey = "issued_at"
)

// HMACStateCodec round-trips request parameters as an opaque blob the
// remote service echoes back untouched. The hash and issue timestamp ride
// inside the encoded parameters themselves, so a blob is self-validating:
// no server-side state survives between the outbound redirect and the
// callback, and a blob older than the ttl is rejected on decode.
type HMACStateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewHMACStateCodec(secret []byte, ttl time.Duration) (*HMACStateCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("core: state codec secret is required")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &HMACStateCodec{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (c *HMACStateCodec) Encode(params map[string]any) (string, error) {
	if c == nil || len(c.secret) == 0 {
		return "", fmt.Errorf("core: state codec is not configured")
	}
	clean := copyAnyMap(params)
	delete(clean, stateHashKey)
	clean[stateIssuedAtKey] = c.now().Unix()

	digest, err := c.signParams(clean)
	if err != nil {
		return "", err
	}
	clean[stateHashKey] = digest

	encoded, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("core: encode state parameters: %w", err)
	}
	return base64.StdEncoding.EncodeToString(encoded), nil
}

func (c *HMACStateCodec) Decode(blob string) (map[string]any, error) {
	if c == nil || len(c.secret) == 0 {
		return nil, fmt.Errorf("core: state codec is not configured")
	}
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, fmt.Errorf("core: state blob is required")
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("core: decode state blob: %w", err)
	}
	params := map[string]any{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("core: decode state parameters: %w", err)
	}

	presented, ok := params[stateHashKey].(string)
	if !ok || strings.TrimSpace(presented) == "" {
		return nil, ErrStateNoHash
	}
	delete(params, stateHashKey)

	expected, err := c.signParams(params)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(expected), []byte(presented)) {
		return nil, ErrStateSignatureMismatch
	}

	// Freshness is checked only after the signature holds.
	issuedAt, ok := params[stateIssuedAtKey].(float64)
	if !ok {
		return nil, ErrStateExpired
	}
	delete(params, stateIssuedAtKey)
	if c.now().Sub(time.Unix(int64(issuedAt), 0)) > c.ttl {
		return nil, ErrStateExpired
	}
	return params, nil
}

// signParams hashes the canonical JSON form of the parameters. Map keys
// marshal in sorted order, so the digest is stable regardless of insertion
// order.
func (c *HMACStateCodec) signParams(params map[string]any) (string, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("core: canonicalize state parameters: %w", err)
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(encoded)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
