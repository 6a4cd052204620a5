package providers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// rfc3986Encode percent-encodes per RFC 5849 section 3.6: unreserved
// characters pass through, everything else becomes uppercase %XX.
func rfc3986Encode(value string) string {
	var out strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'A' && c <= 'Z',
			c >= 'a' && c <= 'z',
			c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			out.WriteByte(c)
		default:
			out.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return out.String()
}

// signatureBaseString builds the RFC 5849 section 3.4.1 base string:
// METHOD & encoded-base-URL & encoded-sorted-parameters.
func signatureBaseString(method, rawURL string, params map[string]string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("providers: parse oauth1 url: %w", err)
	}

	merged := map[string][]string{}
	for key, values := range parsed.Query() {
		merged[key] = append(merged[key], values...)
	}
	for key, value := range params {
		if key == "oauth_signature" {
			continue
		}
		merged[key] = append(merged[key], value)
	}

	type pair struct{ key, value string }
	pairs := make([]pair, 0, len(merged))
	for key, values := range merged {
		for _, value := range values {
			pairs = append(pairs, pair{rfc3986Encode(key), rfc3986Encode(value)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	encoded := make([]string, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, p.key+"="+p.value)
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	// RFC 5849 section 3.4.1.2: the scheme's default port never appears in
	// the base string URI.
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	baseURL := scheme + "://" + host + parsed.EscapedPath()
	return strings.ToUpper(method) + "&" +
		rfc3986Encode(baseURL) + "&" +
		rfc3986Encode(strings.Join(encoded, "&")), nil
}

// signHMACSHA1 produces the base64 HMAC-SHA1 signature. tokenSecret is empty
// during the request-token step.
func signHMACSHA1(baseString, consumerSecret, tokenSecret string) string {
	key := rfc3986Encode(consumerSecret) + "&" + rfc3986Encode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func generateOAuth1Nonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("providers: generate oauth1 nonce: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// authorizationHeader renders the OAuth header with sorted, encoded
// parameters.
func authorizationHeader(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, rfc3986Encode(key)+"=\""+rfc3986Encode(params[key])+"\"")
	}
	return "OAuth " + strings.Join(parts, ", ")
}
