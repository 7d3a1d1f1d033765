package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JSONB is a custom type for PostgreSQL JSONB fields
// It can hold any valid JSON value (objects, arrays, primitives)
type JSONB json.RawMessage

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = JSONB(v)
		return nil
	case string:
		*j = JSONB([]byte(v))
		return nil
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*j = nil
		return nil
	}
	*j = JSONB(data)
	return nil
}

// NewJSONB creates a JSONB from any value
func NewJSONB(v interface{}) (JSONB, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONB(data), nil
}

// Product status values
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
	ProductStatusDraft    = "draft"
	ProductStatusArchived = "archived"
)

// Order status values. Transitions are enforced by the order service,
// never by direct field writes.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Payment status values (parallel machine to order status)
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Tenant represents a single store/merchant account on the platform
type Tenant struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Name      string     `json:"name" gorm:"not null" validate:"required,min=2,max=255"`
	Slug      string     `json:"slug" gorm:"type:varchar(50);uniqueIndex;not null"`
	PlanID    *uuid.UUID `json:"plan_id" gorm:"type:uuid;index"`
	Plan      *Plan      `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
	PlanCache JSONB      `json:"plan_cache,omitempty" gorm:"type:jsonb;default:'{}'"`
	IsActive  bool       `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Plan represents a subscription tier defining resource quotas and price.
// Features is the persisted form; use Limits() for the validated typed view.
type Plan struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Name           string    `json:"name" gorm:"not null;uniqueIndex" validate:"required,min=2,max=100"`
	PriceCents     int64     `json:"price_cents" gorm:"not null;default:0"`
	Currency       string    `json:"currency" gorm:"type:varchar(3);default:'USD'"`
	DurationMonths int       `json:"duration_months" gorm:"default:1"`
	TrialDays      int       `json:"trial_days" gorm:"default:0"`
	Features       JSONB     `json:"features" gorm:"type:jsonb;default:'{}'"`
	IsActive       bool      `json:"is_active" gorm:"default:true"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Product represents a sellable item belonging to a tenant.
// StockQuantity is authoritative only while the product has no variants;
// with variants it is maintained by the stock reconciler as the variant sum.
type Product struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID       uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Name           string    `json:"name" gorm:"not null" validate:"required,min=1,max=255"`
	Description    string    `json:"description"`
	PriceCents     int64     `json:"price_cents" gorm:"not null"`
	SalePriceCents *int64    `json:"sale_price_cents"`
	StockQuantity  int       `json:"stock_quantity" gorm:"not null;default:0;check:stock_quantity >= 0"`
	Status         string    `json:"status" gorm:"type:varchar(20);default:'draft';index" validate:"oneof=active inactive draft archived"`
	Variants       []Variant `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasSale reports whether the product has a valid sale price
func (p *Product) HasSale() bool {
	return p.SalePriceCents != nil && *p.SalePriceCents < p.PriceCents
}

// EffectivePriceCents returns the price a buyer pays right now
func (p *Product) EffectivePriceCents() int64 {
	if p.HasSale() {
		return *p.SalePriceCents
	}
	return p.PriceCents
}

// Variant represents a product sub-unit (size/color combination) with its
// own stock and optional price override
type Variant struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ProductID      uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	Name           string    `json:"name" gorm:"not null" validate:"required,min=1,max=255"`
	SKU            *string   `json:"sku,omitempty" gorm:"type:varchar(100)"`
	PriceCents     *int64    `json:"price_cents,omitempty"`
	StockQuantity  int       `json:"stock_quantity" gorm:"not null;default:0;check:stock_quantity >= 0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Order represents a customer order moving through the lifecycle machine
type Order struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID      uuid.UUID      `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_orders_tenant_number,priority:1"`
	OrderNumber   string         `json:"order_number" gorm:"type:varchar(32);not null;uniqueIndex:idx_orders_tenant_number,priority:2"`
	Status        string         `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentStatus string         `json:"payment_status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentMethod string         `json:"payment_method" gorm:"type:varchar(30)"`
	PaymentRef    string         `json:"payment_ref,omitempty" gorm:"type:varchar(255)"`
	SubtotalCents int64          `json:"subtotal_cents" gorm:"not null;default:0"`
	DiscountCents int64          `json:"discount_cents" gorm:"not null;default:0"`
	TotalCents    int64          `json:"total_cents" gorm:"not null;default:0"`
	CouponCode    *string        `json:"coupon_code,omitempty" gorm:"type:varchar(50)"`
	ShippingAddr  datatypes.JSON `json:"shipping_address" gorm:"type:jsonb"`
	BillingAddr   datatypes.JSON `json:"billing_address,omitempty" gorm:"type:jsonb"`
	TrackingNo    string         `json:"tracking_number,omitempty" gorm:"type:varchar(100)"`
	Carrier       string         `json:"carrier,omitempty" gorm:"type:varchar(100)"`
	CancelReason  string         `json:"cancel_reason,omitempty"`
	StockReleased bool           `json:"stock_released" gorm:"default:false"`
	Items         []OrderItem    `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// OrderItem is an immutable snapshot of a product/variant at order time.
// Later price changes on the product must not change historical totals.
type OrderItem struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	OrderID        uuid.UUID  `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;index"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty" gorm:"type:uuid;index"`
	ProductName    string     `json:"product_name" gorm:"not null"`
	VariantName    string     `json:"variant_name,omitempty"`
	Quantity       int        `json:"quantity" gorm:"not null;check:quantity > 0"`
	UnitPriceCents int64      `json:"unit_price_cents" gorm:"not null"`
	LineTotalCents int64      `json:"line_total_cents" gorm:"not null"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Coupon discount types
const (
	CouponTypePercent = "percent"
	CouponTypeFixed   = "fixed"
)

// Coupon represents a discount code redeemable at checkout
type Coupon struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID     uuid.UUID  `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_coupons_tenant_code,priority:1"`
	Code         string     `json:"code" gorm:"type:varchar(50);not null;uniqueIndex:idx_coupons_tenant_code,priority:2"`
	DiscountType string     `json:"discount_type" gorm:"type:varchar(10);not null" validate:"oneof=percent fixed"`
	Amount       int64      `json:"amount" gorm:"not null"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsRedeemable reports whether the coupon can be applied at the given time
func (c *Coupon) IsRedeemable(at time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && at.After(*c.ExpiresAt) {
		return false
	}
	return true
}

// DiscountFor computes the discount in cents for a given subtotal,
// never exceeding the subtotal itself
func (c *Coupon) DiscountFor(subtotalCents int64) int64 {
	var discount int64
	switch c.DiscountType {
	case CouponTypePercent:
		discount = subtotalCents * c.Amount / 100
	case CouponTypeFixed:
		discount = c.Amount
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Page represents a tenant storefront page (quota-counted resource)
type Page struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID  uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Title     string    `json:"title" gorm:"not null"`
	Slug      string    `json:"slug" gorm:"type:varchar(100);not null"`
	Content   string    `json:"content"`
	Published bool      `json:"published" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BlogPost represents a tenant blog entry (quota-counted resource)
type BlogPost struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID  uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Title     string    `json:"title" gorm:"not null"`
	Slug      string    `json:"slug" gorm:"type:varchar(100);not null"`
	Body      string    `json:"body"`
	Published bool      `json:"published" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffMember represents a dashboard user under a tenant (quota-counted resource)
type StaffMember struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID  uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_staff_tenant_email,priority:1"`
	Email     string    `json:"email" gorm:"not null;uniqueIndex:idx_staff_tenant_email,priority:2" validate:"required,email"`
	Name      string    `json:"name"`
	Role      string    `json:"role" gorm:"type:varchar(30);default:'staff'"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer represents a storefront customer account (quota-counted resource)
type Customer struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID  uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Email     string    `json:"email" gorm:"not null;index"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Address is the structured shipping/billing address stored on orders
type Address struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}
