package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Product is a catalog entry as served by the upstream marketplace.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	VendorID    string   `json:"vendor_id,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// Category is a display section of the catalog.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnitPrice is the price used in subtotal math: finite and non-negative, else 0.
func (p Product) UnitPrice() float64 {
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
		return 0
	}
	return p.Price
}

// CanMessageVendor reports whether the product page offers a "message vendor" action.
func (p Product) CanMessageVendor() bool { return p.VendorID != "" }

// MarshalJSON adds the derived can_message_vendor flag.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		CanMessageVendor bool `json:"can_message_vendor"`
	}{plain(p), p.CanMessageVendor()})
}

// UnmarshalJSON accepts the shapes the upstream has been seen to send:
// "_id" or "id", prices as numbers or numeric strings, and the vendor
// either as an id or as an embedded object. Missing fields stay zero.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string          `json:"id"`
		MongoID     string          `json:"_id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       json.RawMessage `json:"price"`
		Category    json.RawMessage `json:"category"`
		Vendor      json.RawMessage `json:"vendor"`
		VendorID    string          `json:"vendor_id"`
		Images      []string        `json:"images"`
		Image       string          `json:"image"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Product{
		ID:          firstNonEmpty(raw.ID, raw.MongoID),
		Name:        raw.Name,
		Description: raw.Description,
		Price:       decodeNumber(raw.Price),
		Category:    decodeRef(raw.Category, "name"),
		VendorID:    firstNonEmpty(raw.VendorID, decodeRef(raw.Vendor, "_id", "id")),
		Images:      raw.Images,
	}
	if len(p.Images) == 0 && raw.Image != "" {
		p.Images = []string{raw.Image}
	}
	return nil
}

// UnmarshalJSON accepts "_id" or "id".
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Category{ID: firstNonEmpty(raw.ID, raw.MongoID), Name: raw.Name}
	return nil
}

func decodeNumber(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

// decodeRef reads either a bare string or the first present key of an object.
func decodeRef(raw json.RawMessage, keys ...string) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj map[string]any
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	for _, k := range keys {
		if v, ok := obj[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
