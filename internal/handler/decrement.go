package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/order"
)

// decrement handles POST /internal/decrement: the privileged batch deduction
// RPC. The body is an array of {"id":"...","quantity":N} pairs; the whole
// batch applies in one transaction or not at all.
func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOrderBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	deductions, err := decodeDeductions(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed decrement request: "+err.Error())
		return
	}

	if err := h.decrements.Decrement(r.Context(), deductions); err != nil {
		zctx.From(r.Context()).Error("batch decrement failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "decrement failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeDeductions(body []byte) ([]order.Deduction, error) {
	var deductions []order.Deduction

	d := jx.DecodeBytes(body)
	if err := d.Arr(func(d *jx.Decoder) error {
		var ded order.Deduction
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				v, err := d.Str()
				ded.ItemID = v
				return err
			case "quantity":
				v, err := d.Int()
				ded.Quantity = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		if ded.ItemID == "" {
			return errors.New("id required")
		}
		deductions = append(deductions, ded)
		return nil
	}); err != nil {
		return nil, err
	}
	return deductions, nil
}
