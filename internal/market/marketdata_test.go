package market

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func TestHandleMessageUpdatesMids(t *testing.T) {
	d := New(nil, nil, zap.NewNop())
	msg := map[string]any{
		"channel": "allMids",
		"data": map[string]any{
			"mids": map[string]any{
				"BTC":  "64250.5",
				"@140": "64251",
			},
		},
	}
	raw, _ := json.Marshal(msg)
	d.handleMessage(raw)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.mids["BTC"] != 64250.5 {
		t.Fatalf("expected BTC mid 64250.5, got %f", d.mids["BTC"])
	}
	if d.mids["@140"] != 64251 {
		t.Fatalf("expected @140 mid 64251, got %f", d.mids["@140"])
	}
}

func TestUpdateMidsFlatPayload(t *testing.T) {
	d := New(nil, nil, zap.NewNop())
	d.updateMids(map[string]any{"ETH": "3200.25", "junk": true})

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.mids["ETH"] != 3200.25 {
		t.Fatalf("expected ETH mid 3200.25, got %f", d.mids["ETH"])
	}
	if _, ok := d.mids["junk"]; ok {
		t.Fatalf("expected non-numeric entries to be skipped")
	}
}
