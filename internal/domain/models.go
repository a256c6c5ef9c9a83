package domain

import "time"

type Product struct {
	ID             string    `json:"id"`
	SKU            string    `json:"sku"`
	Barcode        string    `json:"barcode,omitempty"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	CostPriceCents int64     `json:"cost_price_cents"`
	SalePriceCents int64     `json:"sale_price_cents"`
	Stock          int       `json:"stock"`
	MinStock       int       `json:"min_stock"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	SKU            string `json:"sku"`
	Barcode        string `json:"barcode,omitempty"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	CostPriceCents int64  `json:"cost_price_cents"`
	SalePriceCents int64  `json:"sale_price_cents"`
	InitialStock   int    `json:"initial_stock"`
	MinStock       int    `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	Category       *string `json:"category,omitempty"`
	Barcode        *string `json:"barcode,omitempty"`
	CostPriceCents *int64  `json:"cost_price_cents,omitempty"`
	SalePriceCents *int64  `json:"sale_price_cents,omitempty"`
	MinStock       *int    `json:"min_stock,omitempty"`
	Active         *bool   `json:"active,omitempty"`
}

type PaymentMethod struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentMethodCreateRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CardFeeSchedule holds acquirer fee percentages. InstallmentFees maps the
// installment count (2..12) to the total fee percent for that plan.
type CardFeeSchedule struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	CreditFee       float64         `json:"credit_fee_percent"`
	DebitFee        float64         `json:"debit_fee_percent"`
	PixFee          float64         `json:"pix_fee_percent"`
	InstallmentFees map[int]float64 `json:"installment_fees"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
}

type FeeScheduleCreateRequest struct {
	Name            string          `json:"name"`
	CreditFee       float64         `json:"credit_fee_percent"`
	DebitFee        float64         `json:"debit_fee_percent"`
	PixFee          float64         `json:"pix_fee_percent"`
	InstallmentFees map[int]float64 `json:"installment_fees,omitempty"`
}

type CartItem struct {
	ProductID     string `json:"product_id"`
	Qty           int    `json:"qty"`
	DiscountCents int64  `json:"discount_cents,omitempty"`
}

type CartPayment struct {
	PaymentMethodID string `json:"payment_method_id"`
	AmountCents     int64  `json:"amount_cents"`
	Installments    int    `json:"installments,omitempty"`
}

// CheckoutRequest carries one cart. IdempotencyKey is optional; when a
// terminal retries a checkout with the same key, the original sale is
// returned instead of charging the cart twice.
type CheckoutRequest struct {
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CustomerID     string        `json:"customer_id,omitempty"`
	DiscountType   string        `json:"discount_type,omitempty"`
	DiscountValue  int64         `json:"discount_value_cents,omitempty"`
	DiscountPct    float64       `json:"discount_percent,omitempty"`
	Items          []CartItem    `json:"items"`
	Payments       []CartPayment `json:"payments"`
	Notes          string        `json:"notes,omitempty"`
}

type CheckoutResponse struct {
	Sale     Sale          `json:"sale"`
	Items    []SaleItem    `json:"items"`
	Payments []SalePayment `json:"payments"`
}

type Sale struct {
	ID                  string    `json:"id"`
	Code                string    `json:"code"`
	IdempotencyKey      string    `json:"idempotency_key,omitempty"`
	CustomerID          string    `json:"customer_id,omitempty"`
	OperatorUsername    string    `json:"operator_username"`
	Status              string    `json:"status"`
	SubtotalCents       int64     `json:"subtotal_cents"`
	DiscountType        string    `json:"discount_type,omitempty"`
	DiscountValueCents  int64     `json:"discount_value_cents,omitempty"`
	DiscountPercent     float64   `json:"discount_percent,omitempty"`
	DiscountAmountCents int64     `json:"discount_amount_cents"`
	TotalCents          int64     `json:"total_cents"`
	TotalCostCents      int64     `json:"total_cost_cents"`
	GrossProfitCents    int64     `json:"gross_profit_cents"`
	TotalFeesCents      int64     `json:"total_fees_cents"`
	NetProfitCents      int64     `json:"net_profit_cents"`
	Notes               string    `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type SaleItem struct {
	SaleID         string `json:"sale_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	UnitCostCents  int64  `json:"unit_cost_cents"`
	DiscountCents  int64  `json:"discount_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type SalePayment struct {
	SaleID          string `json:"sale_id"`
	PaymentMethodID string `json:"payment_method_id"`
	MethodType      string `json:"method_type"`
	AmountCents     int64  `json:"amount_cents"`
	Installments    int    `json:"installments"`
	FeeCents        int64  `json:"fee_cents"`
	NetAmountCents  int64  `json:"net_amount_cents"`
}

type SaleDetailResponse struct {
	Sale     Sale          `json:"sale"`
	Items    []SaleItem    `json:"items"`
	Payments []SalePayment `json:"payments"`
}

type StockMovement struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	Type             string    `json:"type"`
	Qty              int       `json:"qty"`
	PreviousStock    int       `json:"previous_stock"`
	NewStock         int       `json:"new_stock"`
	Reason           string    `json:"reason"`
	SaleID           string    `json:"sale_id,omitempty"`
	OperatorUsername string    `json:"operator_username"`
	CreatedAt        time.Time `json:"created_at"`
}

type StockEntryRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	Reason    string `json:"reason"`
}

type StockAdjustmentRequest struct {
	ProductID  string `json:"product_id"`
	CountedQty int    `json:"counted_qty"`
	Reason     string `json:"reason"`
}

type LowStockProduct struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	MinStock  int    `json:"min_stock"`
}

type FinancialEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	SaleID      string    `json:"sale_id,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type FinancialEntryCreateRequest struct {
	Type        string `json:"type"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

type Customer struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone,omitempty"`
	TotalPurchasesCents int64      `json:"total_purchases_cents"`
	PurchaseCount       int64      `json:"purchase_count"`
	LastPurchaseAt      *time.Time `json:"last_purchase_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type DailyReportPayment struct {
	MethodType string `json:"method_type"`
	Sales      int64  `json:"sales"`
	TotalCents int64  `json:"total_cents"`
	FeesCents  int64  `json:"fees_cents"`
}

type DailyReport struct {
	Date             string               `json:"date"`
	Sales            int64                `json:"sales"`
	GrossSalesCents  int64                `json:"gross_sales_cents"`
	DiscountCents    int64                `json:"discount_cents"`
	TotalCostCents   int64                `json:"total_cost_cents"`
	GrossProfitCents int64                `json:"gross_profit_cents"`
	TotalFeesCents   int64                `json:"total_fees_cents"`
	NetProfitCents   int64                `json:"net_profit_cents"`
	ByPayment        []DailyReportPayment `json:"by_payment"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type OperatorCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type PasswordResetRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"new_password"`
}

type OperatorUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	PaymentTypeCash     = "cash"
	PaymentTypePix      = "pix"
	PaymentTypeCredit   = "credit"
	PaymentTypeDebit    = "debit"
	PaymentTypeTransfer = "transfer"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusPending   = "pending"
	SaleStatusCancelled = "cancelled"
	SaleStatusRefunded  = "refunded"
)

const (
	DiscountTypeValue   = "VALUE"
	DiscountTypePercent = "PERCENT"
)

const (
	MovementTypeEntry      = "entry"
	MovementTypeSale       = "sale"
	MovementTypeAdjustment = "adjustment"
)

const (
	FinancialTypeIncome  = "income"
	FinancialTypeExpense = "expense"

	FinancialStatusPaid    = "paid"
	FinancialStatusPending = "pending"
)

const MaxInstallments = 12
