package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/tidwall/gjson"

	"github.com/mweidner/JadeFrame/internal/pkg/env"
)

// SignatureVerifier decides whether a webhook delivery is authentic.
// Verification is best-effort by contract: a false result never blocks
// audit storage, it only annotates the stored event.
type SignatureVerifier interface {
	Verify(ctx context.Context, payload []byte, signatureHeader string) bool
}

// VerifyWebhookSignature checks the X-JadePay-Signature header, an
// HMAC-SHA256 hex digest of the raw body.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}

// Verifier combines the local HMAC check with JadePay's remote verification
// endpoint. The remote call confirms deliveries even when the local secret
// rotated; when it is unreachable the local result stands.
type Verifier struct {
	Secret     string
	VerifyURL  string
	HTTPClient *http.Client
}

// NewVerifierFromEnv builds a verifier from operator configuration.
func NewVerifierFromEnv() *Verifier {
	return &Verifier{
		Secret:    env.GetEnv("PAYMENT_WEBHOOK_SECRET", ""),
		VerifyURL: strings.TrimSpace(env.GetEnv("PAYMENT_VERIFY_URL", "")),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (v *Verifier) Verify(ctx context.Context, payload []byte, signatureHeader string) bool {
	local := VerifyWebhookSignature(payload, signatureHeader, v.Secret)

	if v.VerifyURL == "" {
		return local
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, bytes.NewReader(payload))
	if err != nil {
		return local
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-JadePay-Signature", strings.TrimSpace(signatureHeader))

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		log.Warnf("[Billing] remote signature verification unavailable: %v", err)
		return local
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warnf("[Billing] remote signature verification returned status %d", resp.StatusCode)
		return local
	}
	return gjson.GetBytes(body, "verified").Bool()
}
