package remote

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Endpoint is one named upstream route. Path may contain {param} placeholders.
type Endpoint struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
}

// Endpoints maps endpoint names to routes.
type Endpoints map[string]Endpoint

// Endpoint names used across the storefront.
const (
	EPProducts        = "products"
	EPCategories      = "categories"
	EPVendors         = "vendors"
	EPFollowings      = "followings"
	EPFollowCheck     = "follow_check"
	EPFollowToggle    = "follow_toggle"
	EPFollowerCount   = "follower_count"
	EPLogin           = "login"
	EPLogout          = "logout"
	EPRegister        = "register"
	EPDeliveryOrders  = "delivery_orders"
	EPOrderStatus     = "order_status"
	EPWalletFund      = "wallet_fund"
	EPWalletBalance   = "wallet_balance"
	EPSubscriptionPay = "subscription_pay"
)

// DefaultEndpoints returns the built-in endpoint table.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		EPProducts:        {http.MethodGet, "/product/"},
		EPCategories:      {http.MethodGet, "/category/"},
		EPVendors:         {http.MethodGet, "/vendor/stats/"},
		EPFollowings:      {http.MethodGet, "/follow/followings/{userId}"},
		EPFollowCheck:     {http.MethodPost, "/follow/check"},
		EPFollowToggle:    {http.MethodPost, "/follow"},
		EPFollowerCount:   {http.MethodGet, "/follow/my-followers/{vendorId}"},
		EPLogin:           {http.MethodPost, "/auth/login"},
		EPLogout:          {http.MethodPost, "/auth/logout"},
		EPRegister:        {http.MethodPost, "/auth/register"},
		EPDeliveryOrders:  {http.MethodGet, "/order/delivery/{deliveryId}"},
		EPOrderStatus:     {http.MethodPut, "/order/{orderId}/status"},
		EPWalletFund:      {http.MethodPost, "/wallet/fund"},
		EPWalletBalance:   {http.MethodGet, "/wallet/{userId}"},
		EPSubscriptionPay: {http.MethodPost, "/subscription/pay"},
	}
}

// LoadEndpoints returns the default table with entries from the YAML file at
// path layered on top. An empty path yields the defaults.
//
//	vendors:
//	  method: GET
//	  path: /v2/vendor/stats/
func LoadEndpoints(path string) (Endpoints, error) {
	eps := DefaultEndpoints()
	if path == "" {
		return eps, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("remote: reading endpoints: %w", err)
	}
	var overrides Endpoints
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("remote: parsing endpoints: %w", err)
	}
	for name, ep := range overrides {
		if ep.Path == "" {
			return nil, fmt.Errorf("remote: endpoint %q has no path", name)
		}
		if ep.Method == "" {
			ep.Method = http.MethodGet
		}
		ep.Method = strings.ToUpper(ep.Method)
		eps[name] = ep
	}
	return eps, nil
}

// Expand substitutes {param} placeholders, escaping each value as a path segment.
func (e Endpoint) Expand(params map[string]string) (string, error) {
	path := e.Path
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(params[k]))
	}
	if i := strings.IndexByte(path, '{'); i >= 0 {
		return "", fmt.Errorf("remote: unfilled parameter in %s", e.Path)
	}
	return path, nil
}
