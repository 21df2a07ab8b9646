package fatsecret

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
	"time"
)

// RequestSigner signs outgoing request parameters. It is injected into
// the client so signing stays unit-testable without HTTP transport.
type RequestSigner interface {
	Sign(method, requestURL string, params url.Values) url.Values
}

// OAuth1Signer implements two-legged OAuth 1.0 HMAC-SHA1 signing, the
// scheme the FatSecret platform API requires.
type OAuth1Signer struct {
	ConsumerKey    string
	ConsumerSecret string

	// Injectable for deterministic tests.
	Nonce func() string
	Now   func() time.Time
}

// NewOAuth1Signer creates a signer with random nonces and the wall
// clock.
func NewOAuth1Signer(consumerKey, consumerSecret string) *OAuth1Signer {
	return &OAuth1Signer{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		Nonce:          randomNonce,
		Now:            time.Now,
	}
}

// Sign returns params extended with the oauth_* protocol parameters and
// the computed signature.
func (s *OAuth1Signer) Sign(method, requestURL string, params url.Values) url.Values {
	signed := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			signed.Add(k, v)
		}
	}

	signed.Set("oauth_consumer_key", s.ConsumerKey)
	signed.Set("oauth_nonce", s.Nonce())
	signed.Set("oauth_signature_method", "HMAC-SHA1")
	signed.Set("oauth_timestamp", fmt.Sprintf("%d", s.Now().Unix()))
	signed.Set("oauth_version", "1.0")

	base := signatureBase(method, requestURL, signed)
	signed.Set("oauth_signature", s.signature(base))
	return signed
}

// signature computes base64(HMAC-SHA1(base)). Two-legged requests have
// no token secret, so the key ends with a bare ampersand.
func (s *OAuth1Signer) signature(base string) string {
	key := percentEncode(s.ConsumerSecret) + "&"
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signatureBase builds the RFC 5849 signature base string: method,
// request URL, and the percent-encoded parameters sorted by name, then
// by value for repeated names.
func signatureBase(method, requestURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		values := make([]string, 0, len(params[k]))
		for _, v := range params[k] {
			values = append(values, percentEncode(v))
		}
		sort.Strings(values)
		for _, v := range values {
			pairs = append(pairs, percentEncode(k)+"="+v)
		}
	}

	return strings.Join([]string{
		strings.ToUpper(method),
		percentEncode(requestURL),
		percentEncode(strings.Join(pairs, "&")),
	}, "&")
}

// percentEncode applies RFC 3986 encoding with the unreserved set OAuth
// mandates (url.QueryEscape is close but encodes space as '+').
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a time-derived nonce; uniqueness is what matters.
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
