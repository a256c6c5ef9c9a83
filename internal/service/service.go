package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lojapos/backend/internal/cache"
	"lojapos/backend/internal/domain"
	"lojapos/backend/internal/fees"
	"lojapos/backend/internal/pricing"
	"lojapos/backend/internal/store"
	"lojapos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	feeCache cache.FeeScheduleCache
	feeTTL   time.Duration
}

func New(repo store.Repository, feeCache cache.FeeScheduleCache, feeTTL time.Duration) *Service {
	if feeCache == nil {
		feeCache = cache.NoopFeeScheduleCache{}
	}
	if feeTTL < time.Second {
		feeTTL = 5 * time.Minute
	}

	return &Service{
		repo:     repo,
		feeCache: feeCache,
		feeTTL:   feeTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// PriceCheck resolves a product by SKU for the customer-facing price
// terminal. Inactive products are reported as not found.
func (s *Service) PriceCheck(ctx context.Context, sku string) (domain.Product, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.Product{}, fmt.Errorf("%w: sku is required", store.ErrInvalidSale)
	}
	product, err := s.repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}
	if !product.Active {
		return domain.Product{}, fmt.Errorf("%w: %s", store.ErrProductNotFound, sku)
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Barcode = strings.TrimSpace(req.Barcode)

	if req.SKU == "" || req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrInvalidSale
	}
	if req.SalePriceCents < 1 || req.CostPriceCents < 0 || req.InitialStock < 0 || req.MinStock < 0 {
		return domain.Product{}, store.ErrInvalidSale
	}

	product := domain.Product{
		SKU:            req.SKU,
		Barcode:        req.Barcode,
		Name:           req.Name,
		Category:       req.Category,
		CostPriceCents: req.CostPriceCents,
		SalePriceCents: req.SalePriceCents,
		Stock:          req.InitialStock,
		MinStock:       req.MinStock,
		Active:         true,
	}

	created, err := s.repo.CreateProduct(ctx, product, domain.StockMovement{
		Type:             domain.MovementTypeEntry,
		Reason:           "initial stock",
		OperatorUsername: actor.Username,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("sku=%s,price=%d,stock=%d", created.SKU, created.SalePriceCents, created.Stock))

	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidSale
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Category = category
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.SalePriceCents != nil {
		if *req.SalePriceCents < 1 {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.SalePriceCents = *req.SalePriceCents
	}
	if req.CostPriceCents != nil {
		if *req.CostPriceCents < 0 {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.CostPriceCents = *req.CostPriceCents
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.MinStock = *req.MinStock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%d,cost=%d", saved.Active, saved.SalePriceCents, saved.CostPriceCents))

	return *saved, nil
}

func (s *Service) RecordStockEntry(ctx context.Context, req domain.StockEntryRequest) (domain.StockMovement, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.StockMovement{}, fmt.Errorf("authentication required")
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.ProductID == "" || req.Qty < 1 {
		return domain.StockMovement{}, store.ErrInvalidSale
	}
	if req.Reason == "" {
		req.Reason = "stock entry"
	}

	applied, err := s.repo.ApplyStockMovement(ctx, domain.StockMovement{
		ProductID:        req.ProductID,
		Type:             domain.MovementTypeEntry,
		Qty:              req.Qty,
		Reason:           req.Reason,
		OperatorUsername: actor.Username,
	})
	if err != nil {
		return domain.StockMovement{}, err
	}

	s.logAudit(ctx, "stock_entry", "product", req.ProductID, fmt.Sprintf("qty=%d,new_stock=%d", applied.Qty, applied.NewStock))

	return *applied, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.StockMovement, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.StockMovement{}, fmt.Errorf("admin role required")
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.ProductID == "" || req.CountedQty < 0 {
		return domain.StockMovement{}, store.ErrInvalidSale
	}
	if req.Reason == "" {
		req.Reason = "stock count"
	}

	applied, err := s.repo.ApplyStockMovement(ctx, domain.StockMovement{
		ProductID:        req.ProductID,
		Type:             domain.MovementTypeAdjustment,
		Qty:              req.CountedQty,
		Reason:           req.Reason,
		OperatorUsername: actor.Username,
	})
	if err != nil {
		return domain.StockMovement{}, err
	}

	s.logAudit(ctx, "stock_adjust", "product", req.ProductID, fmt.Sprintf("counted=%d,delta=%d", applied.NewStock, applied.Qty))

	return *applied, nil
}

func (s *Service) ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	return s.repo.ListStockMovements(ctx, strings.TrimSpace(productID), limit)
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.LowStockProduct, error) {
	return s.repo.ListLowStockProducts(ctx)
}

func (s *Service) CreatePaymentMethod(ctx context.Context, method domain.PaymentMethod) (domain.PaymentMethod, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.PaymentMethod{}, fmt.Errorf("admin role required")
	}

	method.Name = strings.TrimSpace(method.Name)
	method.Type = strings.ToLower(strings.TrimSpace(method.Type))

	created, err := s.repo.CreatePaymentMethod(ctx, method)
	if err != nil {
		return domain.PaymentMethod{}, err
	}

	s.logAudit(ctx, "payment_method_create", "payment_method", created.ID, fmt.Sprintf("name=%s,type=%s", created.Name, created.Type))

	return *created, nil
}

func (s *Service) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx)
}

func (s *Service) CreateFeeSchedule(ctx context.Context, schedule domain.CardFeeSchedule) (domain.CardFeeSchedule, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CardFeeSchedule{}, fmt.Errorf("admin role required")
	}

	schedule.Name = strings.TrimSpace(schedule.Name)

	created, err := s.repo.CreateFeeSchedule(ctx, schedule)
	if err != nil {
		return domain.CardFeeSchedule{}, err
	}

	s.logAudit(ctx, "fee_schedule_create", "fee_schedule", created.ID, fmt.Sprintf("name=%s,credit=%.2f,debit=%.2f", created.Name, created.CreditFee, created.DebitFee))

	return *created, nil
}

func (s *Service) ListFeeSchedules(ctx context.Context) ([]domain.CardFeeSchedule, error) {
	return s.repo.ListFeeSchedules(ctx)
}

func (s *Service) ActivateFeeSchedule(ctx context.Context, id string) (domain.CardFeeSchedule, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CardFeeSchedule{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.CardFeeSchedule{}, store.ErrInvalidSale
	}

	activated, err := s.repo.ActivateFeeSchedule(ctx, id)
	if err != nil {
		return domain.CardFeeSchedule{}, err
	}

	if err := s.feeCache.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: failed to invalidate fee schedule cache: %v", err)
	}

	s.logAudit(ctx, "fee_schedule_activate", "fee_schedule", id, fmt.Sprintf("name=%s", activated.Name))

	return *activated, nil
}

// ActiveFeeSchedule returns the schedule checkout should price card fees with,
// or nil when none is configured. Reads go through the cache first.
func (s *Service) ActiveFeeSchedule(ctx context.Context) (*domain.CardFeeSchedule, error) {
	if cached, found, err := s.feeCache.Get(ctx); err == nil && found {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: fee schedule cache read failed: %v", err)
	}

	schedule, err := s.repo.GetActiveFeeSchedule(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: no active fee schedule; card payments will carry zero fees")
			return nil, nil
		}
		return nil, err
	}

	if err := s.feeCache.Set(ctx, schedule, s.feeTTL); err != nil {
		log.Printf("[service] WARN: fee schedule cache write failed: %v", err)
	}

	return schedule, nil
}

// Checkout turns a cart into one durable sale: priced items, validated
// payments with card fees, stock decrements with their movements, a financial
// entry, and the customer aggregate, written atomically by the repository.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CheckoutResponse{}, fmt.Errorf("authentication required")
	}

	if len(req.Items) == 0 {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: cart has no items", store.ErrInvalidSale)
	}
	if len(req.Payments) == 0 {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: at least one payment required", store.ErrInvalidSale)
	}

	// A retried checkout with the same idempotency key replays the original
	// sale instead of charging the cart again.
	idemKey := strings.TrimSpace(req.IdempotencyKey)
	if idemKey != "" {
		existing, items, payments, err := s.repo.GetSaleByIdempotencyKey(ctx, idemKey)
		if err == nil {
			return domain.CheckoutResponse{Sale: *existing, Items: items, Payments: payments}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.CheckoutResponse{}, err
		}
	}

	productIDs := make([]string, 0, len(req.Items))
	needed := make(map[string]int, len(req.Items))
	for i, item := range req.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" || item.Qty < 1 || item.DiscountCents < 0 {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: item %d invalid", store.ErrInvalidSale, i)
		}
		req.Items[i] = item
		productIDs = append(productIDs, item.ProductID)
		needed[item.ProductID] += item.Qty
	}

	products, err := s.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	for _, item := range req.Items {
		product, exists := products[item.ProductID]
		if !exists || !product.Active {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: %s", store.ErrProductNotFound, item.ProductID)
		}
		// Advisory fast-fail; the store re-checks under its own lock.
		if product.Stock < needed[item.ProductID] {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: product %s has %d, need %d", store.ErrInsufficientStock, item.ProductID, product.Stock, needed[item.ProductID])
		}
		lines = append(lines, pricing.Line{
			ProductID:      product.ID,
			Qty:            item.Qty,
			UnitPriceCents: product.SalePriceCents,
			UnitCostCents:  product.CostPriceCents,
			DiscountCents:  item.DiscountCents,
		})
	}

	totals, err := pricing.Price(lines, req.DiscountType, req.DiscountValue, req.DiscountPct)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidDiscount) {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidDiscount, err)
		}
		return domain.CheckoutResponse{}, err
	}

	methodIDs := make([]string, 0, len(req.Payments))
	for _, payment := range req.Payments {
		methodIDs = append(methodIDs, strings.TrimSpace(payment.PaymentMethodID))
	}
	methods, err := s.repo.GetPaymentMethodsByIDs(ctx, methodIDs)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	schedule, err := s.ActiveFeeSchedule(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	salePayments := make([]domain.SalePayment, 0, len(req.Payments))
	totalFees := int64(0)
	for i, payment := range req.Payments {
		method, exists := methods[strings.TrimSpace(payment.PaymentMethodID)]
		if !exists || !method.Active {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: payment method %s not available", store.ErrInvalidSale, payment.PaymentMethodID)
		}
		if payment.AmountCents < 1 {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: payment %d has no amount", store.ErrInvalidSale, i)
		}

		fee, err := fees.ForPayment(payment.AmountCents, method.Type, payment.Installments, schedule)
		if err != nil {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidSale, err)
		}

		installments := payment.Installments
		if installments < 1 {
			installments = 1
		}
		totalFees += fee
		salePayments = append(salePayments, domain.SalePayment{
			PaymentMethodID: method.ID,
			MethodType:      method.Type,
			AmountCents:     payment.AmountCents,
			Installments:    installments,
			FeeCents:        fee,
			NetAmountCents:  payment.AmountCents - fee,
		})
	}

	now := time.Now().UTC()
	sale := domain.Sale{
		ID:                  xid.New("sale"),
		Code:                generateSaleCode(now),
		IdempotencyKey:      idemKey,
		CustomerID:          strings.TrimSpace(req.CustomerID),
		OperatorUsername:    actor.Username,
		Status:              domain.SaleStatusCompleted,
		SubtotalCents:       totals.SubtotalCents,
		DiscountType:        req.DiscountType,
		DiscountValueCents:  req.DiscountValue,
		DiscountPercent:     req.DiscountPct,
		DiscountAmountCents: totals.DiscountAmountCents,
		TotalCents:          totals.TotalCents,
		TotalCostCents:      totals.TotalCostCents,
		GrossProfitCents:    totals.GrossProfitCents,
		TotalFeesCents:      totalFees,
		NetProfitCents:      totals.GrossProfitCents - totalFees,
		Notes:               strings.TrimSpace(req.Notes),
		CreatedAt:           now,
	}

	saleItems := make([]domain.SaleItem, 0, len(req.Items))
	for i, item := range req.Items {
		product := products[item.ProductID]
		saleItems = append(saleItems, domain.SaleItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Qty:            item.Qty,
			UnitPriceCents: product.SalePriceCents,
			UnitCostCents:  product.CostPriceCents,
			DiscountCents:  item.DiscountCents,
			LineTotalCents: totals.LineTotals[i],
		})
	}

	created, err := s.repo.CreateSale(ctx, store.SaleRecord{
		Sale:     sale,
		Items:    saleItems,
		Payments: salePayments,
		FinancialEntry: domain.FinancialEntry{
			Type:        domain.FinancialTypeIncome,
			Status:      domain.FinancialStatusPaid,
			Description: "sale " + sale.Code,
			AmountCents: sale.TotalCents,
			CreatedBy:   actor.Username,
		},
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	if created.ID != sale.ID {
		// Lost an idempotent-retry race; return the stored sale untouched.
		_, items, payments, detailErr := s.repo.GetSaleByID(ctx, created.ID)
		if detailErr != nil {
			return domain.CheckoutResponse{}, detailErr
		}
		return domain.CheckoutResponse{Sale: *created, Items: items, Payments: payments}, nil
	}

	s.logAudit(ctx, "checkout", "sale", created.ID, fmt.Sprintf("code=%s,total=%d,fees=%d,payments=%d", created.Code, created.TotalCents, created.TotalFeesCents, len(salePayments)))

	for i := range saleItems {
		saleItems[i].SaleID = created.ID
	}
	for i := range salePayments {
		salePayments[i].SaleID = created.ID
	}

	return domain.CheckoutResponse{
		Sale:     *created,
		Items:    saleItems,
		Payments: salePayments,
	}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleDetailResponse, error) {
	sale, items, payments, err := s.repo.GetSaleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.SaleDetailResponse{}, err
	}
	return domain.SaleDetailResponse{
		Sale:     *sale,
		Items:    items,
		Payments: payments,
	}, nil
}

func (s *Service) ListSales(ctx context.Context, date string, limit int) ([]domain.Sale, error) {
	from, to, err := dayRange(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, from, to, limit)
}

func (s *Service) CreateFinancialEntry(ctx context.Context, req domain.FinancialEntryCreateRequest) (domain.FinancialEntry, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.FinancialEntry{}, fmt.Errorf("admin role required")
	}

	entry := domain.FinancialEntry{
		Type:        strings.ToLower(strings.TrimSpace(req.Type)),
		Status:      strings.ToLower(strings.TrimSpace(req.Status)),
		Description: strings.TrimSpace(req.Description),
		AmountCents: req.AmountCents,
		CreatedBy:   actor.Username,
	}

	created, err := s.repo.CreateFinancialEntry(ctx, entry)
	if err != nil {
		return domain.FinancialEntry{}, err
	}

	s.logAudit(ctx, "financial_entry_create", "financial_entry", created.ID, fmt.Sprintf("type=%s,amount=%d", created.Type, created.AmountCents))

	return *created, nil
}

func (s *Service) ListFinancialEntries(ctx context.Context, date string, entryType string, limit int) ([]domain.FinancialEntry, error) {
	from, to, err := dayRange(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFinancialEntries(ctx, from, to, strings.ToLower(strings.TrimSpace(entryType)), limit)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return domain.Customer{}, fmt.Errorf("authentication required")
	}

	customer := domain.Customer{
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, fmt.Sprintf("name=%s", created.Name))

	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, limit)
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	from, to, err := dayRange(date)
	if err != nil {
		return domain.DailyReport{}, err
	}

	report, err := s.repo.GetDailyReport(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	report.Date = from.Format("2006-01-02")
	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	from, to, err := dayRange(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// Authenticate checks a username/password pair against the stored bcrypt hash
// and returns the actor on success.
func (s *Service) Authenticate(ctx context.Context, username string, password string) (domain.Actor, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return domain.Actor{}, fmt.Errorf("invalid credentials")
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return domain.Actor{}, err
	}

	for _, user := range users {
		if user.Username != username || !user.Active {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
			return domain.Actor{}, fmt.Errorf("invalid credentials")
		}
		return domain.Actor{Username: user.Username, Role: user.Role}, nil
	}

	return domain.Actor{}, fmt.Errorf("invalid credentials")
}

func (s *Service) CreateOperator(ctx context.Context, req domain.OperatorCreateRequest) (domain.OperatorUser, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.OperatorUser{}, fmt.Errorf("admin role required")
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" || len(req.Password) < 8 {
		return domain.OperatorUser{}, fmt.Errorf("%w: username and a password of at least 8 chars required", store.ErrInvalidSale)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.OperatorUser{}, err
	}

	user := domain.UserAccount{
		Username:  req.Username,
		Password:  string(hash),
		Role:      "operator",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.OperatorUser{}, err
	}

	s.logAudit(ctx, "operator_create", "user", req.Username, "role=operator")

	return domain.OperatorUser{Username: user.Username, Role: user.Role, Active: user.Active}, nil
}

// ResetUserPassword lets an admin set a new password for an existing
// account, e.g. when an operator is locked out.
func (s *Service) ResetUserPassword(ctx context.Context, req domain.PasswordResetRequest) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" || len(req.NewPassword) < 8 {
		return fmt.Errorf("%w: username and a password of at least 8 chars required", store.ErrInvalidSale)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, req.Username, string(hash)); err != nil {
		return err
	}

	s.logAudit(ctx, "password_reset", "user", req.Username, "")

	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// dayRange resolves an optional YYYY-MM-DD filter into a UTC [from, to) day
// window; an empty date means today.
func dayRange(date string) (time.Time, time.Time, error) {
	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidSale)
		}
		day = parsed.UTC()
	}
	return day, day.Add(24 * time.Hour), nil
}

func generateSaleCode(at time.Time) string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("V%s-%d", at.Format("20060102"), at.UnixNano()%10000)
	}
	return fmt.Sprintf("V%s-%s", at.Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}
