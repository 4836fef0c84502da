package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one entry of a customer's cart as supplied by the external
// cart manager. Options is an opaque blob (selected add-ons, notes) that is
// stored verbatim and never interpreted here.
type CartLine struct {
	MerchantID string
	ItemID     string
	Quantity   int
	UnitPrice  decimal.Decimal
	Options    json.RawMessage
}

// Line is a persisted order line.
type Line struct {
	ItemID    string
	Quantity  int
	UnitPrice decimal.Decimal
	Options   json.RawMessage
}

// Order is one merchant's share of an admitted checkout. A multi-merchant
// cart produces one Order per merchant, all committed together.
type Order struct {
	ID          string
	MerchantID  string
	CustomerRef string
	Total       decimal.Decimal
	Lines       []Line
	CreatedAt   time.Time
}

// Repository persists admitted orders. CreateAll must commit every order and
// all of their lines in a single transaction: either the whole submission is
// durable or none of it is.
type Repository interface {
	CreateAll(ctx context.Context, orders []*Order) error
}

// Deduction is one entry of a batch stock decrement.
type Deduction struct {
	ItemID   string
	Quantity int
}

// Decrementer applies a batch of stock deductions in one all-or-nothing
// transaction, flooring each tracked quantity at zero and skipping untracked
// items. It is the only component allowed to reduce stock on the checkout
// path.
type Decrementer interface {
	Decrement(ctx context.Context, deductions []Deduction) error
}
