package models

import (
	"encoding/json"
	"fmt"
)

// ResourceType identifies a quota-countable resource
type ResourceType string

// Quota-countable resource types
const (
	ResourceProducts  ResourceType = "products"
	ResourceOrders    ResourceType = "orders"
	ResourcePages     ResourceType = "pages"
	ResourceBlogs     ResourceType = "blogs"
	ResourceStaff     ResourceType = "staff"
	ResourceCustomers ResourceType = "customers"
	ResourceStorageMB ResourceType = "storage_mb"
)

// AllResourceTypes lists every resource type in dashboard display order
var AllResourceTypes = []ResourceType{
	ResourceProducts,
	ResourceOrders,
	ResourcePages,
	ResourceBlogs,
	ResourceStaff,
	ResourceCustomers,
	ResourceStorageMB,
}

// Limit is a plan limit for one resource type: either unlimited or bounded.
// The zero value is unlimited, which matches the defaulting rule for plans
// that omit a resource key entirely.
type Limit struct {
	bounded bool
	value   int64
}

// Unlimited returns the unlimited limit
func Unlimited() Limit {
	return Limit{}
}

// Bounded returns a limit capped at n
func Bounded(n int64) Limit {
	return Limit{bounded: true, value: n}
}

// IsUnlimited reports whether the limit imposes no cap
func (l Limit) IsUnlimited() bool {
	return !l.bounded
}

// Value returns the cap and whether one exists
func (l Limit) Value() (int64, bool) {
	return l.value, l.bounded
}

// Allows reports whether one more resource may be created given the current count
func (l Limit) Allows(current int64) bool {
	return !l.bounded || current < l.value
}

// String renders the limit for log lines and denial messages
func (l Limit) String() string {
	if !l.bounded {
		return "unlimited"
	}
	return fmt.Sprintf("%d", l.value)
}

// MarshalJSON renders unlimited as null and bounded as the number,
// which is the shape the dashboard usage endpoint exposes
func (l Limit) MarshalJSON() ([]byte, error) {
	if !l.bounded {
		return []byte("null"), nil
	}
	return json.Marshal(l.value)
}

// UnmarshalJSON accepts null (unlimited), -1 (legacy unlimited) or a bound
func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unlimited()
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n < 0 {
		*l = Unlimited()
		return nil
	}
	*l = Bounded(n)
	return nil
}

// PlanLimits is the validated, typed view of a plan's feature map.
// It is populated once at plan load time; quota decisions never re-interpret
// the raw JSON blob.
type PlanLimits struct {
	Products  Limit `json:"max_products"`
	Orders    Limit `json:"max_orders"`
	Pages     Limit `json:"max_pages"`
	Blogs     Limit `json:"max_blogs"`
	Staff     Limit `json:"max_staff"`
	Customers Limit `json:"max_customers"`
	StorageMB Limit `json:"max_storage_mb"`
}

// For returns the limit for a resource type
func (pl PlanLimits) For(resource ResourceType) Limit {
	switch resource {
	case ResourceProducts:
		return pl.Products
	case ResourceOrders:
		return pl.Orders
	case ResourcePages:
		return pl.Pages
	case ResourceBlogs:
		return pl.Blogs
	case ResourceStaff:
		return pl.Staff
	case ResourceCustomers:
		return pl.Customers
	case ResourceStorageMB:
		return pl.StorageMB
	default:
		return Unlimited()
	}
}

// Limits parses the plan's persisted feature map into typed limits.
// Absent keys and legacy -1 values both mean unlimited.
func (p *Plan) Limits() (PlanLimits, error) {
	var limits PlanLimits
	if len(p.Features) == 0 {
		return limits, nil
	}
	if err := json.Unmarshal(p.Features, &limits); err != nil {
		return PlanLimits{}, fmt.Errorf("invalid feature map on plan %s: %w", p.Name, err)
	}
	return limits, nil
}

// SetLimits serializes typed limits back into the persisted feature map
func (p *Plan) SetLimits(limits PlanLimits) error {
	data, err := json.Marshal(limits)
	if err != nil {
		return err
	}
	p.Features = JSONB(data)
	return nil
}
