package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/georgemunganga/printa-storefront/internal/remote"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Service defines the delivery dashboard's order operations.
type Service interface {
	// ListDeliveryOrders returns the orders assigned to a delivery user.
	ListDeliveryOrders(ctx context.Context, c remote.Caller, deliveryID string) ([]Order, error)

	// UpdateStatus advances one of the delivery user's orders to a new status.
	UpdateStatus(ctx context.Context, c remote.Caller, deliveryID, orderID string, req UpdateStatusRequest) (*Order, error)
}

type service struct{}

// NewService creates a new order service.
func NewService() Service {
	return &service{}
}

// validTransitions defines the allowed status state machine.
var validTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *service) ListDeliveryOrders(ctx context.Context, c remote.Caller, deliveryID string) ([]Order, error) {
	var raw struct {
		Orders []Order `json:"orders"`
		Data   []Order `json:"data"`
	}
	var list []Order
	err := c.Call(ctx, remote.EPDeliveryOrders, map[string]string{"deliveryId": deliveryID}, nil, &rawOrList{list: &list, wrapped: &raw})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = append(append([]Order{}, raw.Orders...), raw.Data...)
	}
	return list, nil
}

func (s *service) UpdateStatus(ctx context.Context, c remote.Caller, deliveryID, orderID string, req UpdateStatusRequest) (*Order, error) {
	newStatus := OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if _, known := validTransitions[newStatus]; !known {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, req.Status)
	}

	orders, err := s.ListDeliveryOrders(ctx, c, deliveryID)
	if err != nil {
		return nil, err
	}
	var o *Order
	for i := range orders {
		if orders[i].ID == orderID {
			o = &orders[i]
			break
		}
	}
	if o == nil {
		return nil, ErrNotFound
	}
	if !CanTransition(o.Status, newStatus) {
		return nil, fmt.Errorf("%w: cannot transition order from %s to %s", ErrInvalidTransition, o.Status, newStatus)
	}

	body := map[string]string{"status": strings.ToLower(string(newStatus))}
	if err := c.Call(ctx, remote.EPOrderStatus, map[string]string{"orderId": orderID}, body, nil); err != nil {
		return nil, err
	}
	o.Status = newStatus
	return o, nil
}

// Board groups orders into lifecycle columns. Statuses outside the
// lifecycle get their own trailing columns in first-seen order.
func Board(orders []Order) []StatusGroup {
	groups := make([]StatusGroup, 0, len(Lifecycle))
	index := make(map[OrderStatus]int, len(Lifecycle))
	for _, st := range Lifecycle {
		index[st] = len(groups)
		groups = append(groups, StatusGroup{Status: st, Orders: []Order{}})
	}
	for _, o := range orders {
		i, ok := index[o.Status]
		if !ok {
			i = len(groups)
			index[o.Status] = i
			groups = append(groups, StatusGroup{Status: o.Status, Orders: []Order{}})
		}
		groups[i].Orders = append(groups[i].Orders, o)
		groups[i].Count++
	}
	return groups
}

// ByStatus keeps orders whose status matches status, case-insensitively.
// An empty status keeps everything.
func ByStatus(orders []Order, status string) []Order {
	if status == "" {
		return orders
	}
	want := OrderStatus(strings.ToUpper(status))
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == want {
			out = append(out, o)
		}
	}
	return out
}

// rawOrList decodes either a bare JSON array or an {"orders"|"data": [...]} wrapper.
type rawOrList struct {
	list    *[]Order
	wrapped any
}

func (r *rawOrList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []Order
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if list == nil {
			list = []Order{}
		}
		*r.list = list
		return nil
	}
	return json.Unmarshal(data, r.wrapped)
}
