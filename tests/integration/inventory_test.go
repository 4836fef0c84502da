//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestGetItem_NotFound(t *testing.T) {
	resp := doGet(t, "/api/items/no-such-item")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetItem_UntrackedQuantityIsNull(t *testing.T) {
	item := getItem(t, "macaron-mix-of-five")

	if item.TrackInventory {
		t.Error("expected trackInventory=false")
	}
	if item.StockQuantity != nil {
		t.Errorf("stockQuantity: got %v, want null", *item.StockQuantity)
	}
	if !item.Available {
		t.Error("untracked item must be available")
	}
}

func TestSetStock_AvailabilityBoundary(t *testing.T) {
	// threshold 4 on classic-tiramisu: quantity equal to the threshold is
	// unavailable, one above is available again.
	resp := doPut(t, "/api/items/classic-tiramisu/stock", map[string]int{"quantity": 4})
	item := decodeJSON[itemResponse](t, resp)
	resp.Body.Close()
	if item.Available {
		t.Error("quantity at threshold: expected unavailable")
	}

	resp = doPut(t, "/api/items/classic-tiramisu/stock", map[string]int{"quantity": 5})
	item = decodeJSON[itemResponse](t, resp)
	resp.Body.Close()
	if !item.Available {
		t.Error("quantity above threshold: expected available")
	}

	// Restore the seeded quantity for other tests.
	resp = doPut(t, "/api/items/classic-tiramisu/stock", map[string]int{"quantity": 25})
	resp.Body.Close()
}

func TestSetStock_UntrackedRejected(t *testing.T) {
	resp := doPut(t, "/api/items/macaron-mix-of-five/stock", map[string]int{"quantity": 10})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestSetTracking_DisableDropsQuantity(t *testing.T) {
	resp := doPut(t, "/api/items/waffle-with-berries/tracking", map[string]bool{"enabled": false})
	item := decodeJSON[itemResponse](t, resp)
	resp.Body.Close()

	if item.TrackInventory {
		t.Error("expected tracking disabled")
	}
	if item.StockQuantity != nil {
		t.Errorf("stockQuantity: got %v, want null", *item.StockQuantity)
	}
	if !item.Available {
		t.Error("untracked item must be available")
	}

	// Re-enable: the counter restarts at zero, then restore the seed value.
	resp = doPut(t, "/api/items/waffle-with-berries/tracking", map[string]bool{"enabled": true})
	item = decodeJSON[itemResponse](t, resp)
	resp.Body.Close()

	if item.StockQuantity == nil || *item.StockQuantity != 0 {
		t.Errorf("stockQuantity after re-enable: got %v, want 0", item.StockQuantity)
	}
	if item.Available {
		t.Error("zero stock with threshold 5: expected unavailable")
	}

	resp = doPut(t, "/api/items/waffle-with-berries/stock", map[string]int{"quantity": 40})
	resp.Body.Close()
}

func TestSetThreshold_Recomputes(t *testing.T) {
	item := getItem(t, "vanilla-bean-creme-brulee")
	if item.StockQuantity == nil {
		t.Fatal("expected tracked item")
	}

	// Raising the threshold above the current quantity flips availability off.
	resp := doPut(t, "/api/items/vanilla-bean-creme-brulee/threshold", map[string]int{"threshold": *item.StockQuantity})
	updated := decodeJSON[itemResponse](t, resp)
	resp.Body.Close()
	if updated.Available {
		t.Error("threshold at quantity: expected unavailable")
	}

	resp = doPut(t, "/api/items/vanilla-bean-creme-brulee/threshold", map[string]int{"threshold": 3})
	resp.Body.Close()
}

func TestInternalDecrement(t *testing.T) {
	before := getItem(t, "classic-tiramisu")
	if before.StockQuantity == nil {
		t.Fatal("expected tracked item")
	}

	resp := doJSON(t, http.MethodPost, internalURL+"/internal/decrement", []deductionRequest{
		{ID: "classic-tiramisu", Quantity: 3},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	after := getItem(t, "classic-tiramisu")
	if after.StockQuantity == nil {
		t.Fatal("expected tracked item after decrement")
	}
	if got, want := *after.StockQuantity, *before.StockQuantity-3; got != want {
		t.Errorf("stock after decrement: got %d, want %d", got, want)
	}

	// Restore.
	resp = doPut(t, "/api/items/classic-tiramisu/stock", map[string]int{"quantity": *before.StockQuantity})
	resp.Body.Close()
}

func TestInternalDecrement_FloorsAtZero(t *testing.T) {
	resp := doPut(t, "/api/items/vanilla-bean-creme-brulee/stock", map[string]int{"quantity": 2})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, internalURL+"/internal/decrement", []deductionRequest{
		{ID: "vanilla-bean-creme-brulee", Quantity: 10},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	item := getItem(t, "vanilla-bean-creme-brulee")
	if item.StockQuantity == nil || *item.StockQuantity != 0 {
		t.Errorf("stockQuantity: got %v, want 0", item.StockQuantity)
	}
	if item.Available {
		t.Error("zero stock: expected unavailable")
	}

	resp = doPut(t, "/api/items/vanilla-bean-creme-brulee/stock", map[string]int{"quantity": 12})
	resp.Body.Close()
}
