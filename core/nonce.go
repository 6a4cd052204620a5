package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	defaultNonceTTL = 24 * time.Hour
	defaultStateTTL = 15 * time.Minute

	nonceActionPrefix = "keyring-"
	nonceLength       = 12
)

// HMACNonceService issues action-scoped nonces on a rolling time window.
// A nonce stays valid for the current and the previous half-window, so the
// effective lifetime falls between ttl/2 and ttl. Nonces are deliberately
// not single-use: the same user may hold several tabs open on the same
// action inside one window.
type HMACNonceService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewHMACNonceService(secret []byte, ttl time.Duration) (*HMACNonceService, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("core: nonce secret is required")
	}
	if ttl <= 0 {
		ttl = defaultNonceTTL
	}
	return &HMACNonceService{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *HMACNonceService) Issue(action, userID string) string {
	if s == nil {
		return ""
	}
	return s.nonceAt(s.window(0), action, userID)
}

func (s *HMACNonceService) Verify(nonce, action, userID string) error {
	if s == nil {
		return ErrInvalidNonce
	}
	nonce = strings.TrimSpace(nonce)
	if nonce == "" {
		return ErrInvalidNonce
	}
	for _, offset := range []int64{0, -1} {
		candidate := s.nonceAt(s.window(offset), action, userID)
		if hmac.Equal([]byte(candidate), []byte(nonce)) {
			return nil
		}
	}
	return ErrInvalidNonce
}

func (s *HMACNonceService) window(offset int64) int64 {
	half := int64(s.ttl / 2 / time.Second)
	if half <= 0 {
		half = 1
	}
	return s.now().Unix()/half + offset
}

func (s *HMACNonceService) nonceAt(window int64, action, userID string) string {
	scope := nonceActionPrefix + strings.TrimSpace(action)
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d|%s|%s", window, scope, strings.TrimSpace(userID))
	digest := hex.EncodeToString(mac.Sum(nil))
	return digest[:nonceLength]
}
