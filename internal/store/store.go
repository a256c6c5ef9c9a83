package store

import (
	"context"
	"errors"
	"time"

	"lojapos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPaymentMismatch   = errors.New("payment mismatch")
	ErrInvalidDiscount   = errors.New("invalid discount")
	ErrInvalidSale       = errors.New("invalid sale")
)

// SaleRecord is the full set of records one checkout persists. CreateSale
// writes all of it, or none of it; stock movements are synthesized by the
// store from the items so they always match the decrement actually applied.
type SaleRecord struct {
	Sale           domain.Sale
	Items          []domain.SaleItem
	Payments       []domain.SalePayment
	FinancialEntry domain.FinancialEntry
}

type Repository interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product, movement domain.StockMovement) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	ListLowStockProducts(ctx context.Context) ([]domain.LowStockProduct, error)

	ApplyStockMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error)
	ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error)

	CreatePaymentMethod(ctx context.Context, method domain.PaymentMethod) (*domain.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	GetPaymentMethodsByIDs(ctx context.Context, ids []string) (map[string]domain.PaymentMethod, error)

	CreateFeeSchedule(ctx context.Context, schedule domain.CardFeeSchedule) (*domain.CardFeeSchedule, error)
	ListFeeSchedules(ctx context.Context) ([]domain.CardFeeSchedule, error)
	GetActiveFeeSchedule(ctx context.Context) (*domain.CardFeeSchedule, error)
	ActivateFeeSchedule(ctx context.Context, id string) (*domain.CardFeeSchedule, error)

	CreateSale(ctx context.Context, record SaleRecord) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, []domain.SaleItem, []domain.SalePayment, error)
	GetSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, []domain.SaleItem, []domain.SalePayment, error)
	ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error)

	CreateFinancialEntry(ctx context.Context, entry domain.FinancialEntry) (*domain.FinancialEntry, error)
	ListFinancialEntries(ctx context.Context, from time.Time, to time.Time, entryType string, limit int) ([]domain.FinancialEntry, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error)

	GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
