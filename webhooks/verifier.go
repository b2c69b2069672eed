package webhooks

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"strings"
	"time"

	"github.com/goliatone/go-riskauth/core"
)

const (
	// SignatureHeader and TimestampHeader are the inbound header names the
	// transport layer extracts before calling Verify.
	SignatureHeader = "X-Event-Signature"
	TimestampHeader = "X-Event-Timestamp"
)

// Verifier validates webhook event signatures against the current key in the
// store. It is stateless apart from the injected store and clock; it never
// writes keys.
type Verifier struct {
	Keys  core.KeyStore
	Grace time.Duration
	Now   func() time.Time
}

func NewVerifier(keys core.KeyStore) *Verifier {
	return &Verifier{
		Keys:  keys,
		Grace: core.DefaultGraceWindow,
	}
}

// Verify checks the declared timestamp's freshness and the RSA PKCS#1 v1.5
// signature over SHA256(timestamp bytes || payload bytes). The timestamp is
// hashed exactly as received: signer and verifier must agree byte-for-byte,
// so no re-serialization happens here.
func (v *Verifier) Verify(signature string, timestamp string, payload []byte) error {
	if v == nil || v.Keys == nil {
		return core.NewPublicKeyMissing("webhooks: verifier has no key store")
	}

	if strings.TrimSpace(signature) == "" {
		return core.NewSignatureInvalid("webhooks: signature is missing")
	}
	signatureBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return core.NewSignatureInvalid("webhooks: signature is not valid base64")
	}

	material, ok := v.Keys.Get()
	if !ok {
		return core.NewPublicKeyMissing("webhooks: no public key has been loaded")
	}

	now := v.clock()
	if !material.ValidUntil.IsZero() && material.ValidUntil.Before(now) {
		return core.NewPublicKeyExpired("webhooks: public key validity window has lapsed")
	}

	parsed, err := x509.ParsePKIXPublicKey(material.DER)
	if err != nil {
		return core.NewSignatureInvalid("webhooks: stored public key is not valid DER")
	}
	publicKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return core.NewSignatureInvalid("webhooks: stored public key is not an RSA key")
	}

	eventTime, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return core.NewSignatureInvalid("webhooks: timestamp is not a valid RFC3339 instant")
	}

	grace := v.Grace
	if grace <= 0 {
		grace = core.DefaultGraceWindow
	}
	delta := now.Sub(eventTime)
	if delta > grace {
		return core.NewTimestampTooOld("webhooks: event timestamp is outside the grace window")
	}
	if delta < -grace {
		return core.NewTimestampTooNew("webhooks: event timestamp is ahead of the grace window")
	}

	hasher := sha256.New()
	hasher.Write([]byte(timestamp))
	hasher.Write(payload)
	digest := hasher.Sum(nil)

	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, digest, signatureBytes); err != nil {
		return core.NewSignatureInvalid("webhooks: signature does not match payload")
	}
	return nil
}

func (v *Verifier) clock() time.Time {
	if v != nil && v.Now != nil {
		return v.Now().UTC()
	}
	return time.Now().UTC()
}
