package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemedavid/rownel-foodelivery/internal/domain/catalog"
	"github.com/codemedavid/rownel-foodelivery/internal/domain/order"
)

// --- Mocks ---

type stubAdmitter struct {
	lastReq order.AdmitRequest
	result  *order.AdmitResult
	err     error
}

func (s *stubAdmitter) Admit(_ context.Context, req order.AdmitRequest) (*order.AdmitResult, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubItemRepo struct {
	byID map[string]*catalog.Item
}

func (s *stubItemRepo) GetByID(_ context.Context, id string) (*catalog.Item, error) {
	it, ok := s.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (s *stubItemRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Item, error) {
	out := make([]catalog.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := s.byID[id]; ok {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *stubItemRepo) UpdateInventory(_ context.Context, id string, st catalog.Stock, threshold int, available bool) error {
	it, ok := s.byID[id]
	if !ok {
		return catalog.ErrNotFound
	}
	it.Stock = st
	it.Threshold = threshold
	it.Available = available
	return nil
}

type stubDecrementer struct {
	last []order.Deduction
	err  error
}

func (s *stubDecrementer) Decrement(_ context.Context, deductions []order.Deduction) error {
	s.last = deductions
	return s.err
}

// --- Helpers ---

type testEnv struct {
	admitter *stubAdmitter
	repo     *stubItemRepo
	dec      *stubDecrementer
	mux      *http.ServeMux
}

func newTestEnv(items ...catalog.Item) *testEnv {
	byID := make(map[string]*catalog.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	repo := &stubItemRepo{byID: byID}
	admitter := &stubAdmitter{result: &order.AdmitResult{OrderIDs: []string{"o1"}}}
	dec := &stubDecrementer{}

	h := New(admitter, catalog.NewLedger(repo), repo, dec)
	mux := http.NewServeMux()
	h.Register(mux)
	h.RegisterInternal(mux)

	return &testEnv{admitter: admitter, repo: repo, dec: dec, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func burger(qty, threshold int) catalog.Item {
	s := catalog.TrackedStock(qty)
	return catalog.Item{
		ID:         "burger",
		MerchantID: "m1",
		Name:       "Burger",
		Price:      decimal.RequireFromString("4.50"),
		Stock:      s,
		Threshold:  threshold,
		Available:  catalog.Availability(s, threshold),
	}
}

const orderBody = `{
	"customerRef": "c1",
	"items": [
		{"merchantId": "m1", "itemId": "burger", "quantity": 2, "unitPrice": "4.50", "options": {"size": "L"}}
	]
}`

// --- Tests ---

func TestPlaceOrder_Created(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/orders", orderBody)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, []any{"o1"}, body["orderIds"])

	req := env.admitter.lastReq
	assert.Equal(t, "c1", req.CustomerRef)
	require.Len(t, req.Lines, 1)
	assert.Equal(t, "burger", req.Lines[0].ItemID)
	assert.Equal(t, 2, req.Lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("4.50").Equal(req.Lines[0].UnitPrice))
	assert.JSONEq(t, `{"size":"L"}`, string(req.Lines[0].Options))
}

func TestPlaceOrder_NumericPrice(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/orders", `{
		"customerRef": "c1",
		"items": [{"merchantId": "m1", "itemId": "burger", "quantity": 1, "unitPrice": 4.5}]
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decimal.RequireFromString("4.5").Equal(env.admitter.lastReq.Lines[0].UnitPrice))
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/orders", `{"items": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_MissingCustomerRef(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/orders", `{"items": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	env := newTestEnv()
	env.admitter.err = order.ErrEmptyCart

	rec := env.do(t, http.MethodPost, "/api/orders", `{"customerRef": "c1", "items": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	env := newTestEnv()
	env.admitter.err = &order.InsufficientStockError{ItemName: "Burger", Requested: 5, InStock: 3}

	rec := env.do(t, http.MethodPost, "/api/orders", orderBody)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Burger", body["item"])
	assert.Contains(t, body["message"], "Burger")
}

func TestPlaceOrder_RateLimited(t *testing.T) {
	env := newTestEnv()
	env.admitter.err = &order.RateLimitedError{RetryAfter: 42 * time.Second}

	rec := env.do(t, http.MethodPost, "/api/orders", orderBody)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	body := decodeBody(t, rec)
	assert.NotContains(t, body["message"], "stock", "rate limiting must not read as a shortage")
}

func TestPlaceOrder_UnknownItem(t *testing.T) {
	env := newTestEnv()
	env.admitter.err = &order.UnknownItemError{ItemID: "ghost"}

	rec := env.do(t, http.MethodPost, "/api/orders", orderBody)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPlaceOrder_UnexpectedErrorIsGeneric(t *testing.T) {
	env := newTestEnv()
	env.admitter.err = assert.AnError

	rec := env.do(t, http.MethodPost, "/api/orders", orderBody)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "please wait and try again", body["message"])
}

func TestGetItem(t *testing.T) {
	env := newTestEnv(burger(10, 2))

	rec := env.do(t, http.MethodGet, "/api/items/burger", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "burger", body["id"])
	assert.Equal(t, true, body["trackInventory"])
	assert.Equal(t, float64(10), body["stockQuantity"])
	assert.Equal(t, true, body["available"])
}

func TestGetItem_NotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/items/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetStock(t *testing.T) {
	env := newTestEnv(burger(10, 10))

	rec := env.do(t, http.MethodPut, "/api/items/burger/stock", `{"quantity": 10}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(10), body["stockQuantity"])
	assert.Equal(t, false, body["available"], "quantity equal to threshold is unavailable")
}

func TestSetStock_Untracked(t *testing.T) {
	it := burger(0, 0)
	it.Stock = catalog.Untracked()
	it.Available = true
	env := newTestEnv(it)

	rec := env.do(t, http.MethodPut, "/api/items/burger/stock", `{"quantity": 5}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSetTracking_DisableNullsQuantity(t *testing.T) {
	env := newTestEnv(burger(10, 2))

	rec := env.do(t, http.MethodPut, "/api/items/burger/tracking", `{"enabled": false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Nil(t, body["stockQuantity"])
	assert.Equal(t, false, body["trackInventory"])
	assert.Equal(t, true, body["available"])
}

func TestSetThreshold_MissingField(t *testing.T) {
	env := newTestEnv(burger(10, 2))

	rec := env.do(t, http.MethodPut, "/api/items/burger/threshold", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecrement(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/internal/decrement",
		`[{"id": "burger", "quantity": 5}, {"id": "salad", "quantity": 3}]`)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []order.Deduction{
		{ItemID: "burger", Quantity: 5},
		{ItemID: "salad", Quantity: 3},
	}, env.dec.last)
}

func TestDecrement_MalformedBody(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/internal/decrement", `{"id": "burger"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecrement_MissingID(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/internal/decrement", `[{"quantity": 5}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
