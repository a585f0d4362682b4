package documents

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// CartLineItem is a raw cart line as submitted by the storefront. Decoding is
// lenient: unknown fields are ignored, numbers may arrive as strings and
// `qty`/`price` are accepted as aliases.
type CartLineItem struct {
	ID        string
	Type      string
	Model     string
	Name      string
	Quantity  *float64
	UnitPrice *float64
}

// NormalizedItem is the canonical comparable form of a cart line.
type NormalizedItem struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Model     string  `json:"model"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

func (n NormalizedItem) sortKey() string {
	return n.Type + ":" + n.Model + ":" + n.ID
}

// UnmarshalJSON never fails on the shape of a single line; anything that is
// not an object decodes to an empty line.
func (c *CartLineItem) UnmarshalJSON(data []byte) error {
	*c = CartLineItem{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	c.ID = rawString(fields["id"])
	c.Type = rawString(fields["type"])
	c.Model = rawString(fields["model"])
	c.Name = rawString(fields["name"])
	c.Quantity = firstNumber(fields["qty"], fields["quantity"])
	c.UnitPrice = firstNumber(fields["unitPrice"], fields["price"])
	return nil
}

// MarshalJSON writes the line back in its canonical key set.
func (c CartLineItem) MarshalJSON() ([]byte, error) {
	payload := map[string]any{
		"id":    c.ID,
		"type":  c.Type,
		"model": c.Model,
	}
	if c.Name != "" {
		payload["name"] = c.Name
	}
	if c.Quantity != nil {
		payload["quantity"] = *c.Quantity
	}
	if c.UnitPrice != nil {
		payload["unitPrice"] = *c.UnitPrice
	}
	return json.Marshal(payload)
}

// Normalize reduces one line to its canonical form.
func (c CartLineItem) Normalize() NormalizedItem {
	model := c.Model
	if strings.TrimSpace(model) == "" {
		model = c.Name
	}

	quantity := 1.0
	if c.Quantity != nil && *c.Quantity != 0 {
		quantity = *c.Quantity
	}

	unitPrice := 0.0
	if c.UnitPrice != nil {
		unitPrice = *c.UnitPrice
	}

	return NormalizedItem{
		ID:        strings.TrimSpace(c.ID),
		Type:      strings.ToLower(strings.TrimSpace(c.Type)),
		Model:     strings.ToLower(strings.TrimSpace(model)),
		Quantity:  quantity,
		UnitPrice: unitPrice,
	}
}

// NormalizeItems returns a new slice of canonical items ordered by
// type:model:id using a byte-wise comparison.
func NormalizeItems(items []CartLineItem) []NormalizedItem {
	normalized := make([]NormalizedItem, 0, len(items))
	for _, item := range items {
		normalized = append(normalized, item.Normalize())
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].sortKey() < normalized[j].sortKey()
	})
	return normalized
}

func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// firstNumber returns the first non-zero candidate, falling back to an explicit zero.
func firstNumber(candidates ...json.RawMessage) *float64 {
	var zero *float64
	for _, raw := range candidates {
		value, ok := rawNumber(raw)
		if !ok {
			continue
		}
		if value != 0 {
			return &value
		}
		if zero == nil {
			zero = &value
		}
	}
	return zero
}

func rawNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if parseErr == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			return parsed, true
		}
	}
	return 0, false
}
