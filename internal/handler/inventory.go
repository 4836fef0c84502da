package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/catalog"
)

// maxInventoryBody caps admin inventory edit bodies.
const maxInventoryBody = 4 << 10

// getItem handles GET /api/items/{id}.
func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeItem(w, http.StatusOK, item)
}

// setTracking handles PUT /api/items/{id}/tracking with {"enabled":bool}.
func (h *Handler) setTracking(w http.ResponseWriter, r *http.Request) {
	enabled, err := decodeBoolField(r, "enabled")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.ledger.SetTracking(r.Context(), r.PathValue("id"), enabled)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeItem(w, http.StatusOK, item)
}

// setStock handles PUT /api/items/{id}/stock with {"quantity":int}.
func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	quantity, err := decodeIntField(r, "quantity")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.ledger.SetStock(r.Context(), r.PathValue("id"), quantity)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeItem(w, http.StatusOK, item)
}

// setThreshold handles PUT /api/items/{id}/threshold with {"threshold":int}.
func (h *Handler) setThreshold(w http.ResponseWriter, r *http.Request) {
	threshold, err := decodeIntField(r, "threshold")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.ledger.SetThreshold(r.Context(), r.PathValue("id"), threshold)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeItem(w, http.StatusOK, item)
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, catalog.ErrNotTracked):
		writeError(w, http.StatusConflict, "inventory tracking is disabled for this item")
	default:
		zctx.From(r.Context()).Error("ledger operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "please wait and try again")
	}
}

// writeItem renders a ledger row. stockQuantity is null for untracked items.
func writeItem(w http.ResponseWriter, status int, item *catalog.Item) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(item.ID)
	e.FieldStart("merchantId")
	e.Str(item.MerchantID)
	e.FieldStart("name")
	e.Str(item.Name)
	e.FieldStart("price")
	e.Str(item.Price.StringFixed(2))
	e.FieldStart("trackInventory")
	e.Bool(item.Stock.Tracked())
	e.FieldStart("stockQuantity")
	if qty, tracked := item.Stock.Quantity(); tracked {
		e.Int(qty)
	} else {
		e.Null()
	}
	e.FieldStart("lowStockThreshold")
	e.Int(item.Threshold)
	e.FieldStart("available")
	e.Bool(item.Available)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// decodeBoolField reads a single-field JSON body like {"enabled":true}.
func decodeBoolField(r *http.Request, field string) (bool, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInventoryBody))
	if err != nil {
		return false, errors.New("unreadable request body")
	}

	var (
		value bool
		found bool
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		v, err := d.Bool()
		value, found = v, true
		return err
	}); err != nil {
		return false, errors.Wrap(err, "malformed body")
	}
	if !found {
		return false, errors.Errorf("%s required", field)
	}
	return value, nil
}

// decodeIntField reads a single-field JSON body like {"quantity":5}.
func decodeIntField(r *http.Request, field string) (int, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInventoryBody))
	if err != nil {
		return 0, errors.New("unreadable request body")
	}

	var (
		value int
		found bool
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		v, err := d.Int()
		value, found = v, true
		return err
	}); err != nil {
		return 0, errors.Wrap(err, "malformed body")
	}
	if !found {
		return 0, errors.Errorf("%s required", field)
	}
	return value, nil
}
