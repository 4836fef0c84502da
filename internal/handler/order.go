package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/order"
)

// maxOrderBody caps checkout request bodies at 1 MiB.
const maxOrderBody = 1 << 20

// placeOrder handles POST /api/orders: decodes the cart submission, runs the
// guarded admission pipeline, and maps domain failures onto the error
// taxonomy the storefront understands.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOrderBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	req, err := decodeAdmitRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed order request: "+err.Error())
		return
	}

	result, err := h.admitter.Admit(r.Context(), *req)
	if err != nil {
		h.writeAdmitError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderIds")
	e.ArrStart()
	for _, id := range result.OrderIDs {
		e.Str(id)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

// writeAdmitError maps admission failures to HTTP responses. Insufficient
// stock names the offending item; rate-limit and unexpected failures stay
// generic so internal state is not leaked.
func (h *Handler) writeAdmitError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, order.ErrEmptyCart) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
		return
	}

	var uiErr *order.UnknownItemError
	if errors.As(err, &uiErr) {
		writeError(w, http.StatusUnprocessableEntity, uiErr.Error())
		return
	}

	var isErr *order.InsufficientStockError
	if errors.As(err, &isErr) {
		var e jx.Encoder
		e.ObjStart()
		e.FieldStart("code")
		e.Int(http.StatusConflict)
		e.FieldStart("message")
		e.Str("insufficient stock for " + isErr.ItemName)
		e.FieldStart("item")
		e.Str(isErr.ItemName)
		e.ObjEnd()
		writeJSON(w, http.StatusConflict, &e)
		return
	}

	var rlErr *order.RateLimitedError
	if errors.As(err, &rlErr) {
		retryAfter := int(rlErr.RetryAfter / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "please wait before submitting another order")
		return
	}

	zctx.From(r.Context()).Error("order admission failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "please wait and try again")
}

// decodeAdmitRequest parses the checkout submission:
//
//	{"customerRef":"...","items":[{"merchantId":"...","itemId":"...",
//	 "quantity":1,"unitPrice":"4.50","options":{...}}]}
//
// unitPrice accepts either a JSON string or a bare number; options is kept
// as an opaque raw blob.
func decodeAdmitRequest(body []byte) (*order.AdmitRequest, error) {
	var req order.AdmitRequest

	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customerRef":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "customerRef")
			}
			req.CustomerRef = v
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				line, err := decodeCartLine(d)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, *line)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}

	if req.CustomerRef == "" {
		return nil, errors.New("customerRef required")
	}
	return &req, nil
}

func decodeCartLine(d *jx.Decoder) (*order.CartLine, error) {
	var line order.CartLine
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "merchantId":
			v, err := d.Str()
			line.MerchantID = v
			return err
		case "itemId":
			v, err := d.Str()
			line.ItemID = v
			return err
		case "quantity":
			v, err := d.Int()
			line.Quantity = v
			return err
		case "unitPrice":
			price, err := decodePrice(d)
			line.UnitPrice = price
			return err
		case "options":
			raw, err := d.Raw()
			line.Options = json.RawMessage(raw)
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}
	return &line, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var s string
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		s = v
	case jx.Number:
		num, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		s = num.String()
	default:
		return decimal.Zero, errors.New("unitPrice must be a number or string")
	}

	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "unitPrice")
	}
	if price.IsNegative() {
		return decimal.Zero, errors.New("unitPrice must not be negative")
	}
	return price, nil
}
