package order

import (
	"encoding/json"
	"strings"
	"time"
)

// OrderStatus represents the delivery lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Lifecycle lists statuses in board column order.
var Lifecycle = []OrderStatus{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// Order is one row of the delivery dashboard table.
type Order struct {
	ID           string      `json:"id"`
	OrderNumber  string      `json:"order_number,omitempty"`
	Status       OrderStatus `json:"status"`
	CustomerName string      `json:"customer_name,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	Address      string      `json:"address,omitempty"`
	Items        int         `json:"items"`
	Total        float64     `json:"total"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// UnmarshalJSON accepts the upstream's "_id", "orderStatus" and nested
// shipping address shapes. Status is upper-cased.
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string          `json:"id"`
		MongoID     string          `json:"_id"`
		OrderNumber string          `json:"order_number"`
		OrderNo     string          `json:"orderNumber"`
		Status      string          `json:"status"`
		OrderStatus string          `json:"orderStatus"`
		Customer    string          `json:"customer_name"`
		User        json.RawMessage `json:"user"`
		Phone       string          `json:"phone"`
		Address     json.RawMessage `json:"address"`
		Shipping    json.RawMessage `json:"shippingAddress"`
		Items       json.RawMessage `json:"items"`
		Total       float64         `json:"total"`
		TotalAmount float64         `json:"totalAmount"`
		UpdatedAt   time.Time       `json:"updated_at"`
		UpdatedCame time.Time       `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Order{
		ID:           first(raw.ID, raw.MongoID),
		OrderNumber:  first(raw.OrderNumber, raw.OrderNo),
		Status:       OrderStatus(strings.ToUpper(first(raw.Status, raw.OrderStatus))),
		CustomerName: first(raw.Customer, userName(raw.User)),
		Phone:        raw.Phone,
		Address:      first(addressLine(raw.Address), addressLine(raw.Shipping)),
		Items:        itemCount(raw.Items),
		Total:        max(raw.Total, raw.TotalAmount),
		UpdatedAt:    raw.UpdatedAt,
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = raw.UpdatedCame
	}
	return nil
}

func userName(raw json.RawMessage) string {
	var u struct {
		Name      string `json:"name"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &u) != nil {
		return ""
	}
	return first(u.Name, strings.TrimSpace(u.FirstName+" "+u.LastName))
}

func addressLine(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var a struct {
		Street string `json:"street"`
		City   string `json:"city"`
	}
	if json.Unmarshal(raw, &a) != nil {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{a.Street, a.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// itemCount sums "quantity" over an item list, counting items without one as 1.
func itemCount(raw json.RawMessage) int {
	var items []struct {
		Quantity *int `json:"quantity"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return 0
	}
	n := 0
	for _, it := range items {
		if it.Quantity != nil {
			n += max(*it.Quantity, 0)
			continue
		}
		n++
	}
	return n
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// UpdateStatusRequest is the payload for advancing an order's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// StatusGroup is one column of the delivery board.
type StatusGroup struct {
	Status OrderStatus `json:"status"`
	Count  int         `json:"count"`
	Orders []Order     `json:"orders"`
}
