package webhooks

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-riskauth/core"
)

// Handler consumes a verified webhook payload.
type Handler interface {
	HandleEvent(ctx context.Context, payload []byte) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, payload []byte) error

func (fn HandlerFunc) HandleEvent(ctx context.Context, payload []byte) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, payload)
}

// InboundRequest carries one webhook delivery as received on the wire.
type InboundRequest struct {
	DeliveryID string
	Signature  string
	Timestamp  string
	Payload    []byte
}

// InboundResult reports how a delivery was dispositioned.
type InboundResult struct {
	Status    int
	Accepted  bool
	Duplicate bool
	ClaimID   string
	Reason    string
}

// Processor verifies, deduplicates, and dispatches inbound webhook deliveries.
type Processor struct {
	Verifier *Verifier
	Ledger   ReplayLedger
	Handler  Handler
	DedupTTL time.Duration
	Now      func() time.Time
}

func NewProcessor(verifier *Verifier, handler Handler) *Processor {
	return &Processor{
		Verifier: verifier,
		Ledger:   NewMemoryReplayLedger(0),
		Handler:  handler,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Process runs the delivery through signature verification first, then replay
// dedupe, then the handler. Verification failures never reach the handler.
func (p *Processor) Process(ctx context.Context, req InboundRequest) (InboundResult, error) {
	if p == nil || p.Verifier == nil {
		err := core.NewPublicKeyMissing("webhook processor is not configured")
		return InboundResult{Status: StatusForError(err), Reason: rejectionReason(err)}, err
	}
	if err := p.Verifier.Verify(req.Signature, req.Timestamp, req.Payload); err != nil {
		return InboundResult{Status: StatusForError(err), Reason: rejectionReason(err)}, err
	}

	result := InboundResult{Status: http.StatusOK, Accepted: true}
	if p.Ledger != nil {
		key := strings.TrimSpace(req.DeliveryID)
		if key == "" {
			key = req.Timestamp + ":" + req.Signature
		}
		claimID, claimed, err := p.Ledger.Claim(ctx, key, p.DedupTTL)
		if err != nil {
			mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
			return InboundResult{Status: http.StatusInternalServerError, Reason: "processing failed"}, mapped
		}
		result.ClaimID = claimID
		if !claimed {
			result.Duplicate = true
			return result, nil
		}
	}

	if p.Handler != nil {
		if err := p.Handler.HandleEvent(ctx, req.Payload); err != nil {
			mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
			return InboundResult{Status: http.StatusInternalServerError, Reason: "processing failed"}, mapped
		}
	}
	return result, nil
}

// StatusForError maps verification errors to the HTTP status an inbound
// endpoint should answer with. Sender-side faults map to 400, receiver-side
// key faults map to 500.
func StatusForError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code > 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

// rejectionReason keeps refusal bodies generic so callers cannot use the
// endpoint as a verification oracle.
func rejectionReason(err error) string {
	switch core.TextCode(err) {
	case core.ErrorSignatureInvalid, core.ErrorTimestampTooOld, core.ErrorTimestampTooNew:
		return "rejected"
	case core.ErrorPublicKeyMissing, core.ErrorPublicKeyExpired:
		return "verification unavailable"
	default:
		return "processing failed"
	}
}
