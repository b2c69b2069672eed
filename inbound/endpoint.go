package inbound

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-riskauth/webhooks"
)

const defaultMaxBodyBytes = 1 << 20

const DeliveryIDHeader = "X-Event-Id"

// Endpoint is the HTTP surface for inbound webhook deliveries. It extracts
// the signature headers, hands the raw body to the processor, and answers
// with the processor's disposition.
type Endpoint struct {
	Processor    *webhooks.Processor
	Logger       glog.Logger
	MaxBodyBytes int64
}

func NewEndpoint(processor *webhooks.Processor, logger glog.Logger) *Endpoint {
	return &Endpoint{
		Processor:    processor,
		Logger:       glog.Ensure(logger),
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

type endpointResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e == nil || e.Processor == nil {
		writeResponse(w, http.StatusInternalServerError, endpointResponse{Status: "error", Reason: "processing failed"})
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeResponse(w, http.StatusMethodNotAllowed, endpointResponse{Status: "error", Reason: "method not allowed"})
		return
	}

	limit := e.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		writeResponse(w, http.StatusBadRequest, endpointResponse{Status: "error", Reason: "rejected"})
		return
	}
	if int64(len(payload)) > limit {
		writeResponse(w, http.StatusRequestEntityTooLarge, endpointResponse{Status: "error", Reason: "payload too large"})
		return
	}

	req := webhooks.InboundRequest{
		DeliveryID: strings.TrimSpace(r.Header.Get(DeliveryIDHeader)),
		Signature:  r.Header.Get(webhooks.SignatureHeader),
		Timestamp:  r.Header.Get(webhooks.TimestampHeader),
		Payload:    payload,
	}
	result, err := e.Processor.Process(r.Context(), req)
	if err != nil {
		e.logger().WithContext(r.Context()).Warn("webhook delivery refused",
			"status", result.Status,
			"delivery_id", req.DeliveryID,
		)
		writeResponse(w, result.Status, endpointResponse{Status: "error", Reason: result.Reason})
		return
	}
	if result.Duplicate {
		writeResponse(w, result.Status, endpointResponse{Status: "duplicate"})
		return
	}
	writeResponse(w, result.Status, endpointResponse{Status: "ok"})
}

func (e *Endpoint) logger() glog.Logger {
	if e != nil && e.Logger != nil {
		return e.Logger
	}
	return glog.Ensure(nil)
}

func writeResponse(w http.ResponseWriter, status int, body endpointResponse) {
	if status <= 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

var _ http.Handler = (*Endpoint)(nil)
