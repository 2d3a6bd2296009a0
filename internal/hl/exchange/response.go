package exchange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// OrderResult is the immediate outcome of a placed order: either it rested
// on the book with an order id or it filled on arrival.
type OrderResult struct {
	OrderID int64
	Filled  bool
	Resting bool
	AvgPx   float64
}

// ParseOrderResult extracts the first order status from an /exchange
// response. A status-level error string is surfaced as an error.
func ParseOrderResult(resp map[string]any) (OrderResult, error) {
	if resp == nil {
		return OrderResult{}, errors.New("empty exchange response")
	}
	if status := stringFromAny(resp["status"]); status != "" && status != "ok" {
		return OrderResult{}, fmt.Errorf("exchange response status %q: %v", status, resp["response"])
	}
	statuses := extractStatuses(resp)
	if len(statuses) == 0 {
		return OrderResult{}, errors.New("exchange response has no order statuses")
	}
	entry, ok := statuses[0].(map[string]any)
	if !ok {
		return OrderResult{}, errors.New("exchange order status is not an object")
	}
	if msg, ok := entry["error"]; ok {
		return OrderResult{}, fmt.Errorf("order rejected: %s", stringFromAny(msg))
	}
	if filled, ok := entry["filled"].(map[string]any); ok {
		return OrderResult{
			OrderID: int64FromAny(filled["oid"]),
			Filled:  true,
			AvgPx:   floatFromAny(filled["avgPx"]),
		}, nil
	}
	if resting, ok := entry["resting"].(map[string]any); ok {
		return OrderResult{
			OrderID: int64FromAny(resting["oid"]),
			Resting: true,
		}, nil
	}
	return OrderResult{}, errors.New("exchange order status missing filled/resting")
}

// CheckActionResponse validates a non-order action response (cancel,
// updateLeverage) where only the top-level status matters.
func CheckActionResponse(resp map[string]any) error {
	if resp == nil {
		return errors.New("empty exchange response")
	}
	if status := stringFromAny(resp["status"]); status != "" && status != "ok" {
		return fmt.Errorf("exchange response status %q: %v", status, resp["response"])
	}
	for _, item := range extractStatuses(resp) {
		if entry, ok := item.(map[string]any); ok {
			if msg, ok := entry["error"]; ok {
				return fmt.Errorf("action rejected: %s", stringFromAny(msg))
			}
		} else if s := stringFromAny(item); s != "" && !strings.EqualFold(s, "success") {
			return fmt.Errorf("action status %q", s)
		}
	}
	return nil
}

func extractStatuses(resp map[string]any) []any {
	response, ok := resp["response"].(map[string]any)
	if !ok {
		return nil
	}
	data, ok := response["data"].(map[string]any)
	if !ok {
		return nil
	}
	statuses, _ := data["statuses"].([]any)
	return statuses
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

func int64FromAny(v any) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case int:
		return int64(val)
	case int64:
		return val
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

func floatFromAny(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}
