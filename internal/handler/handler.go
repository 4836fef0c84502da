// Package handler exposes the stock ledger and order admission pipeline over
// HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/catalog"
	"github.com/codemedavid/rownel-foodelivery/internal/domain/order"
)

// Admitter is the admission entrypoint. In production this is the rate guard
// wrapping the pipeline; tests may plug the pipeline in directly.
type Admitter interface {
	Admit(ctx context.Context, req order.AdmitRequest) (*order.AdmitResult, error)
}

// Handler routes ledger and admission requests to the domain services.
type Handler struct {
	admitter   Admitter
	ledger     *catalog.Ledger
	items      catalog.Repository
	decrements order.Decrementer
}

// New constructs a Handler with the required domain dependencies.
func New(admitter Admitter, ledger *catalog.Ledger, items catalog.Repository, decrements order.Decrementer) *Handler {
	return &Handler{
		admitter:   admitter,
		ledger:     ledger,
		items:      items,
		decrements: decrements,
	}
}

// Register attaches all public API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/items/{id}", h.getItem)
	mux.HandleFunc("PUT /api/items/{id}/tracking", h.setTracking)
	mux.HandleFunc("PUT /api/items/{id}/stock", h.setStock)
	mux.HandleFunc("PUT /api/items/{id}/threshold", h.setThreshold)
}

// RegisterInternal attaches the privileged decrement RPC. It is meant for an
// internal listener, not the public API surface.
func (h *Handler) RegisterInternal(mux *http.ServeMux) {
	mux.HandleFunc("POST /internal/decrement", h.decrement)
}

// writeJSON writes an encoded jx buffer with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the shared error envelope: {"code":N,"message":"..."}.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}
