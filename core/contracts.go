package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// TokenStore holds the current access token. The store performs no validation
// and no expiry bookkeeping of its own; there is exactly one writer (the token
// issuer) and any number of concurrent readers.
type TokenStore interface {
	Get() (string, bool)
	Set(token string)
	Reset()
}

// PublicKeyMaterial is a DER-encoded public key plus the authority-declared
// end of its validity window. A zero ValidUntil means the window is unknown:
// the key may still be used for verification but must be refreshed as soon
// as the scheduler runs.
type PublicKeyMaterial struct {
	DER        []byte
	ValidUntil time.Time
}

// KeyStore holds the current webhook verification key. Same write discipline
// as TokenStore: one writer (the key issuer), many readers.
type KeyStore interface {
	Get() (PublicKeyMaterial, bool)
	Set(der []byte, validUntil time.Time)
	Reset()
}

// TokenIssuer obtains a fresh access token from the remote authority and
// writes it into the token store before returning it.
type TokenIssuer interface {
	Issue(ctx context.Context) (string, error)
}

// KeyIssuer obtains the current verification key from the remote authority
// and writes it into the key store.
type KeyIssuer interface {
	Issue(ctx context.Context) error
}
