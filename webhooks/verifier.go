package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goliatone/go-buildhealth/core"
)

// InboundRequest is the transport-neutral shape of one delivery.
type InboundRequest struct {
	Headers map[string]string
	Body    []byte
}

// Verifier authenticates one inbound delivery.
type Verifier interface {
	Verify(ctx context.Context, req InboundRequest) error
}

// HeaderHMACVerifier checks an HMAC-SHA256 signature carried in a
// header. Comparison is constant time on the decoded digest.
type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req InboundRequest) error {
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return core.NewValidationError("signature",
			fmt.Sprintf("webhooks: %s signature header is required", strings.TrimSpace(v.Header)))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return core.NewConfigurationError("webhooks: signature secret is required", nil)
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return core.NewValidationError("signature", "webhooks: signature value is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return core.NewValidationError("signature", "webhooks: decode base64 signature failed")
		}
	default:
		decoded, err = hex.DecodeString(signature)
		if err != nil {
			return core.NewValidationError("signature", "webhooks: decode hex signature failed")
		}
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return core.NewValidationError("signature", "webhooks: signature verification failed")
	}
	return nil
}

// HeaderTokenVerifier checks a shared token carried in a header. Used
// for sources without payload signing.
type HeaderTokenVerifier struct {
	Header string
	Token  string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, req InboundRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return core.NewConfigurationError("webhooks: verification token is required", nil)
	}
	actual := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if actual == "" {
		return core.NewValidationError("token",
			fmt.Sprintf("webhooks: %s verification header is required", strings.TrimSpace(v.Header)))
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return core.NewValidationError("token", "webhooks: verification token mismatch")
	}
	return nil
}

// NewGitHubVerifier matches GitHub's X-Hub-Signature-256 scheme:
// hex digest prefixed with "sha256=".
func NewGitHubVerifier(secret string) Verifier {
	return HeaderHMACVerifier{
		Header:   "X-Hub-Signature-256",
		Prefix:   "sha256=",
		Secret:   strings.TrimSpace(secret),
		Encoding: "hex",
	}
}

// NewJenkinsVerifier matches the notification-plugin convention of a
// shared token header.
func NewJenkinsVerifier(token string) Verifier {
	return HeaderTokenVerifier{
		Header: "X-Jenkins-Token",
		Token:  strings.TrimSpace(token),
	}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
