package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"
)

// timestampLayout is ISO-8601 UTC with millisecond precision, as OKX expects
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Signer produces OK-ACCESS-* authentication headers
type Signer struct {
	apiKey     string
	secretKey  string
	passphrase string
	now        func() time.Time
}

// NewSigner creates a signer for the given credentials
func NewSigner(apiKey, secretKey, passphrase string) *Signer {
	return &Signer{
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		now:        time.Now,
	}
}

// Sign returns base64(HMAC-SHA256(secret, timestamp+method+requestPath+body))
func (s *Signer) Sign(timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Apply sets the authentication headers on req. requestPath must include the query string.
func (s *Signer) Apply(req *http.Request, requestPath, body string) {
	timestamp := s.now().UTC().Format(timestampLayout)
	req.Header.Set("OK-ACCESS-KEY", s.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", s.Sign(timestamp, req.Method, requestPath, body))
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", s.passphrase)
}
