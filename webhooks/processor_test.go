package webhooks

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-riskauth/core"
)

type recordingHandler struct {
	calls    int
	lastBody []byte
	err      error
}

func (h *recordingHandler) HandleEvent(_ context.Context, payload []byte) error {
	h.calls++
	h.lastBody = payload
	return h.err
}

func newTestProcessor(t *testing.T, now time.Time) (*Processor, *rsa.PrivateKey, *recordingHandler) {
	t.Helper()
	verifier, key, _ := newSignedVerifier(t, now)
	handler := &recordingHandler{}
	processor := NewProcessor(verifier, handler)
	processor.Now = func() time.Time { return now }
	if ledger, ok := processor.Ledger.(*MemoryReplayLedger); ok {
		ledger.Now = func() time.Time { return now }
	}
	return processor, key, handler
}

func TestProcessor_DispatchesVerifiedDelivery(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	processor, key, handler := newTestProcessor(t, now)
	event := signEvent(t, key, now.Format(time.RFC3339), []byte(`{"id":"evt_1"}`))

	result, err := processor.Process(context.Background(), InboundRequest{
		DeliveryID: "evt_1",
		Signature:  event.signature,
		Timestamp:  event.timestamp,
		Payload:    event.payload,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Accepted || result.Duplicate {
		t.Fatalf("expected accepted non-duplicate result, got %+v", result)
	}
	if result.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.Status)
	}
	if result.ClaimID == "" {
		t.Fatalf("expected claim id")
	}
	if handler.calls != 1 || string(handler.lastBody) != `{"id":"evt_1"}` {
		t.Fatalf("expected handler to receive the payload once, calls=%d body=%s", handler.calls, handler.lastBody)
	}
}

func TestProcessor_VerificationFailureNeverReachesHandler(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	processor, key, handler := newTestProcessor(t, now)
	event := signEvent(t, key, now.Format(time.RFC3339), []byte("payload"))

	result, err := processor.Process(context.Background(), InboundRequest{
		Signature: event.signature,
		Timestamp: event.timestamp,
		Payload:   []byte("tampered"),
	})
	if !core.IsSignatureInvalid(err) {
		t.Fatalf("expected signature-invalid, got %v", err)
	}
	if handler.calls != 0 {
		t.Fatalf("expected handler untouched, got %d calls", handler.calls)
	}
	if result.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for sender fault, got %d", result.Status)
	}
	if result.Reason != "rejected" {
		t.Fatalf("expected generic rejection reason, got %q", result.Reason)
	}
}

func TestProcessor_MissingKeyReportsReceiverFault(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	verifier, key, keys := newSignedVerifier(t, now)
	keys.Reset()
	handler := &recordingHandler{}
	processor := NewProcessor(verifier, handler)
	event := signEvent(t, key, now.Format(time.RFC3339), []byte("payload"))

	result, err := processor.Process(context.Background(), InboundRequest{
		Signature: event.signature,
		Timestamp: event.timestamp,
		Payload:   event.payload,
	})
	if !core.IsPublicKeyMissing(err) {
		t.Fatalf("expected public-key-missing, got %v", err)
	}
	if result.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 for receiver fault, got %d", result.Status)
	}
	if result.Reason != "verification unavailable" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
	if handler.calls != 0 {
		t.Fatalf("expected handler untouched")
	}
}

func TestProcessor_DuplicateDeliveryShortCircuits(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	processor, key, handler := newTestProcessor(t, now)
	event := signEvent(t, key, now.Format(time.RFC3339), []byte("payload"))
	req := InboundRequest{
		DeliveryID: "evt_1",
		Signature:  event.signature,
		Timestamp:  event.timestamp,
		Payload:    event.payload,
	}

	first, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected duplicate flag")
	}
	if second.ClaimID != first.ClaimID {
		t.Fatalf("expected duplicate to report original claim id")
	}
	if handler.calls != 1 {
		t.Fatalf("expected handler to run once, got %d", handler.calls)
	}
}

func TestProcessor_FallsBackToSignatureKeyWhenDeliveryIDMissing(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	processor, key, handler := newTestProcessor(t, now)
	event := signEvent(t, key, now.Format(time.RFC3339), []byte("payload"))
	req := InboundRequest{
		Signature: event.signature,
		Timestamp: event.timestamp,
		Payload:   event.payload,
	}

	if _, err := processor.Process(context.Background(), req); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if !result.Duplicate {
		t.Fatalf("expected timestamp+signature replay to be deduplicated")
	}
	if handler.calls != 1 {
		t.Fatalf("expected handler to run once, got %d", handler.calls)
	}
}

func TestProcessor_HandlerErrorSurfacesAsProcessingFailure(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	processor, key, handler := newTestProcessor(t, now)
	handler.err = fmt.Errorf("downstream unavailable")
	event := signEvent(t, key, now.Format(time.RFC3339), []byte("payload"))

	result, err := processor.Process(context.Background(), InboundRequest{
		DeliveryID: "evt_1",
		Signature:  event.signature,
		Timestamp:  event.timestamp,
		Payload:    event.payload,
	})
	if err == nil {
		t.Fatalf("expected handler failure to propagate")
	}
	if result.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", result.Status)
	}
	if result.Reason != "processing failed" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestStatusForError(t *testing.T) {
	if got := StatusForError(nil); got != http.StatusOK {
		t.Fatalf("expected 200 for nil error, got %d", got)
	}
	if got := StatusForError(core.NewSignatureInvalid("bad")); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
	if got := StatusForError(fmt.Errorf("plain")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 for plain error, got %d", got)
	}
}
