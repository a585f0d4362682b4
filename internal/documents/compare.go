package documents

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// priceTolerance is the largest unit price difference still considered equal.
var priceTolerance = decimal.New(1, -2)

// storedCart is the object form of cart_data; a bare array is accepted too.
type storedCart struct {
	Items       []CartLineItem `json:"items"`
	TotalAmount float64        `json:"total_amount"`
}

// ItemsEqual compares two normalized carts position by position. Both sides
// must already be in canonical order.
func ItemsEqual(a, b []NormalizedItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].Type != b[i].Type ||
			a[i].Model != b[i].Model ||
			a[i].Quantity != b[i].Quantity {
			return false
		}
		if !pricesWithinTolerance(a[i].UnitPrice, b[i].UnitPrice) {
			return false
		}
	}
	return true
}

// CompareCartData reports whether the serialized cart_data of a stored
// document holds the same cart as items. Unreadable data never matches.
func CompareCartData(items []NormalizedItem, data []byte) bool {
	stored, ok := parseCartData(data)
	if !ok {
		return false
	}
	return ItemsEqual(items, NormalizeItems(stored))
}

func parseCartData(data []byte) ([]CartLineItem, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, false
	}

	// Carts written by older clients are double encoded.
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, false
		}
		return parseCartData([]byte(inner))
	}

	if data[0] == '[' {
		var items []CartLineItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, false
		}
		return items, true
	}

	var cart storedCart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, false
	}
	return cart.Items, true
}

// encodeCartData serializes the canonical cart stored on a document.
func encodeCartData(items []NormalizedItem, total float64) ([]byte, error) {
	return json.Marshal(struct {
		Items       []NormalizedItem `json:"items"`
		TotalAmount float64          `json:"total_amount"`
	}{Items: items, TotalAmount: total})
}

func pricesWithinTolerance(a, b float64) bool {
	diff := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
	return diff.LessThanOrEqual(priceTolerance)
}
