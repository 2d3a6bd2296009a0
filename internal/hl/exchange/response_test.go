package exchange

import "testing"

func orderResponse(status map[string]any) map[string]any {
	return map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{
				"statuses": []any{status},
			},
		},
	}
}

func TestParseOrderResultFilled(t *testing.T) {
	resp := orderResponse(map[string]any{
		"filled": map[string]any{
			"oid":   float64(292577153770),
			"avgPx": "64123.5",
		},
	})
	result, err := ParseOrderResult(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Filled || result.Resting {
		t.Fatalf("expected filled result, got %+v", result)
	}
	if result.OrderID != 292577153770 {
		t.Fatalf("expected order id 292577153770, got %d", result.OrderID)
	}
	if result.AvgPx != 64123.5 {
		t.Fatalf("expected avg px 64123.5, got %f", result.AvgPx)
	}
}

func TestParseOrderResultResting(t *testing.T) {
	resp := orderResponse(map[string]any{
		"resting": map[string]any{"oid": float64(42)},
	})
	result, err := ParseOrderResult(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Filled || !result.Resting {
		t.Fatalf("expected resting result, got %+v", result)
	}
	if result.OrderID != 42 {
		t.Fatalf("expected order id 42, got %d", result.OrderID)
	}
}

func TestParseOrderResultRejection(t *testing.T) {
	resp := orderResponse(map[string]any{
		"error": "Insufficient margin to place order.",
	})
	if _, err := ParseOrderResult(resp); err == nil {
		t.Fatalf("expected rejection error")
	}
}

func TestParseOrderResultTopLevelError(t *testing.T) {
	resp := map[string]any{"status": "err", "response": "nope"}
	if _, err := ParseOrderResult(resp); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestCheckActionResponse(t *testing.T) {
	ok := map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "default",
			"data": map[string]any{"statuses": []any{"success"}},
		},
	}
	if err := CheckActionResponse(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rejected := orderResponse(map[string]any{"error": "Order was never placed."})
	if err := CheckActionResponse(rejected); err == nil {
		t.Fatalf("expected rejection error")
	}
}
