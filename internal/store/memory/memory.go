package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lojapos/backend/internal/domain"
	"lojapos/backend/internal/store"
	"lojapos/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	productsByID     map[string]domain.Product
	productIDBySKU   map[string]string
	movements        []domain.StockMovement
	methodsByID      map[string]domain.PaymentMethod
	schedulesByID    map[string]domain.CardFeeSchedule
	salesByID        map[string]domain.Sale
	saleIDByIdemKey  map[string]string
	saleItemsByID    map[string][]domain.SaleItem
	salePaymentsByID map[string][]domain.SalePayment
	financialEntries []domain.FinancialEntry
	customersByID    map[string]domain.Customer
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	operatorPwd := envOr("SEED_OPERATOR_PASSWORD", "operator123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_OPERATOR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"operator", operatorPwd, "operator"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-arroz-01", SKU: "ARZ-5KG", Barcode: "7891000100103", Name: "Arroz Branco 5kg", Category: "mercearia", CostPriceCents: 1850, SalePriceCents: 2790, Stock: 80, MinStock: 15, Active: true, CreatedAt: now},
		{ID: "prod-feijao-01", SKU: "FEI-1KG", Barcode: "7891000100110", Name: "Feijao Carioca 1kg", Category: "mercearia", CostPriceCents: 620, SalePriceCents: 949, Stock: 90, MinStock: 20, Active: true, CreatedAt: now},
		{ID: "prod-cafe-01", SKU: "CAF-500", Barcode: "7891000100127", Name: "Cafe Torrado 500g", Category: "mercearia", CostPriceCents: 1420, SalePriceCents: 2190, Stock: 60, MinStock: 12, Active: true, CreatedAt: now},
		{ID: "prod-leite-01", SKU: "LEI-1L", Barcode: "7891000100134", Name: "Leite Integral 1L", Category: "laticinios", CostPriceCents: 390, SalePriceCents: 599, Stock: 120, MinStock: 24, Active: true, CreatedAt: now},
		{ID: "prod-oleo-01", SKU: "OLE-900", Barcode: "7891000100141", Name: "Oleo de Soja 900ml", Category: "mercearia", CostPriceCents: 510, SalePriceCents: 789, Stock: 70, MinStock: 14, Active: true, CreatedAt: now},
		{ID: "prod-acucar-01", SKU: "ACU-1KG", Barcode: "7891000100158", Name: "Acucar Refinado 1kg", Category: "mercearia", CostPriceCents: 320, SalePriceCents: 529, Stock: 85, MinStock: 18, Active: true, CreatedAt: now},
		{ID: "prod-sabao-01", SKU: "SAB-5UN", Barcode: "7891000100165", Name: "Sabao em Barra 5un", Category: "limpeza", CostPriceCents: 680, SalePriceCents: 1099, Stock: 45, MinStock: 10, Active: true, CreatedAt: now},
		{ID: "prod-refri-01", SKU: "REF-2L", Barcode: "7891000100172", Name: "Refrigerante Cola 2L", Category: "bebidas", CostPriceCents: 450, SalePriceCents: 899, Stock: 100, MinStock: 20, Active: true, CreatedAt: now},
		{ID: "prod-biscoito-01", SKU: "BIS-140", Barcode: "7891000100189", Name: "Biscoito Recheado 140g", Category: "doces", CostPriceCents: 180, SalePriceCents: 349, Stock: 150, MinStock: 30, Active: true, CreatedAt: now},
		{ID: "prod-deterg-01", SKU: "DET-500", Barcode: "7891000100196", Name: "Detergente 500ml", Category: "limpeza", CostPriceCents: 130, SalePriceCents: 279, Stock: 95, MinStock: 20, Active: true, CreatedAt: now},
	}

	methods := []domain.PaymentMethod{
		{ID: "pm-cash", Name: "Dinheiro", Type: domain.PaymentTypeCash, Active: true, CreatedAt: now},
		{ID: "pm-pix", Name: "Pix", Type: domain.PaymentTypePix, Active: true, CreatedAt: now},
		{ID: "pm-credit", Name: "Cartao de Credito", Type: domain.PaymentTypeCredit, Active: true, CreatedAt: now},
		{ID: "pm-debit", Name: "Cartao de Debito", Type: domain.PaymentTypeDebit, Active: true, CreatedAt: now},
		{ID: "pm-transfer", Name: "Transferencia", Type: domain.PaymentTypeTransfer, Active: true, CreatedAt: now},
	}

	schedule := domain.CardFeeSchedule{
		ID:        "fee-default",
		Name:      "Maquininha Padrao",
		CreditFee: 3.19,
		DebitFee:  1.39,
		PixFee:    0.99,
		InstallmentFees: map[int]float64{
			2: 4.59, 3: 5.99, 4: 6.79, 5: 7.59, 6: 8.39,
			7: 9.19, 8: 9.99, 9: 10.79, 10: 11.59, 11: 12.39, 12: 13.19,
		},
		Active:    true,
		CreatedAt: now,
	}

	productsByID := make(map[string]domain.Product, len(products))
	productIDBySKU := make(map[string]string, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
		productIDBySKU[p.SKU] = p.ID
	}
	methodsByID := make(map[string]domain.PaymentMethod, len(methods))
	for _, m := range methods {
		methodsByID[m.ID] = m
	}

	return &Store{
		productsByID:     productsByID,
		productIDBySKU:   productIDBySKU,
		movements:        make([]domain.StockMovement, 0, 256),
		methodsByID:      methodsByID,
		schedulesByID:    map[string]domain.CardFeeSchedule{schedule.ID: cloneSchedule(schedule)},
		salesByID:        make(map[string]domain.Sale),
		saleIDByIdemKey:  make(map[string]string),
		saleItemsByID:    make(map[string][]domain.SaleItem),
		salePaymentsByID: make(map[string][]domain.SalePayment),
		financialEntries: make([]domain.FinancialEntry, 0, 128),
		customersByID:    make(map[string]domain.Customer),
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if activeOnly && !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product, movement domain.StockMovement) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.SalePriceCents < 1 {
		return nil, store.ErrInvalidSale
	}
	if product.CostPriceCents < 0 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidSale
	}
	if _, exists := s.productIDBySKU[product.SKU]; exists {
		return nil, fmt.Errorf("%w: sku %s already registered", store.ErrInvalidSale, product.SKU)
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	s.productsByID[product.ID] = product
	s.productIDBySKU[product.SKU] = product.ID

	if product.Stock > 0 {
		movement.ID = xid.New("mov")
		movement.ProductID = product.ID
		movement.Type = domain.MovementTypeEntry
		movement.Qty = product.Stock
		movement.PreviousStock = 0
		movement.NewStock = product.Stock
		if movement.Reason == "" {
			movement.Reason = "initial stock"
		}
		if movement.CreatedAt.IsZero() {
			movement.CreatedAt = time.Now().UTC()
		}
		s.movements = append(s.movements, movement)
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrProductNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.productIDBySKU[sku]
	if !exists {
		return nil, store.ErrProductNotFound
	}
	product := s.productsByID[id]
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.productsByID[product.ID]
	if !exists {
		return nil, store.ErrProductNotFound
	}
	if product.Name == "" || product.SalePriceCents < 1 || product.CostPriceCents < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidSale
	}

	// Stock only moves through movements; keep whatever is on record.
	product.SKU = current.SKU
	product.Stock = current.Stock
	product.CreatedAt = current.CreatedAt
	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.productsByID[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.LowStockProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LowStockProduct, 0, 16)
	for _, p := range s.productsByID {
		if !p.Active || p.Stock > p.MinStock {
			continue
		}
		result = append(result, domain.LowStockProduct{
			ProductID: p.ID,
			SKU:       p.SKU,
			Name:      p.Name,
			Stock:     p.Stock,
			MinStock:  p.MinStock,
		})
	}
	slices.SortFunc(result, func(a, b domain.LowStockProduct) int {
		if a.Stock == b.Stock {
			return cmpString(a.Name, b.Name)
		}
		if a.Stock < b.Stock {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) ApplyStockMovement(_ context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[movement.ProductID]
	if !exists {
		return nil, store.ErrProductNotFound
	}

	previous := product.Stock
	var next int
	switch movement.Type {
	case domain.MovementTypeEntry:
		if movement.Qty < 1 {
			return nil, fmt.Errorf("%w: entry qty must be positive", store.ErrInvalidSale)
		}
		next = previous + movement.Qty
	case domain.MovementTypeAdjustment:
		// Qty carries the counted absolute quantity; the delta is recorded.
		if movement.Qty < 0 {
			return nil, fmt.Errorf("%w: counted qty cannot be negative", store.ErrInvalidSale)
		}
		next = movement.Qty
		movement.Qty = next - previous
	default:
		return nil, fmt.Errorf("%w: movement type %q not allowed here", store.ErrInvalidSale, movement.Type)
	}

	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	movement.PreviousStock = previous
	movement.NewStock = next

	product.Stock = next
	s.productsByID[product.ID] = product
	s.movements = append(s.movements, movement)

	applied := movement
	return &applied, nil
}

func (s *Store) ListStockMovements(_ context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockMovement, 0, 64)
	for _, m := range s.movements {
		if productID != "" && m.ProductID != productID {
			continue
		}
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.StockMovement) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreatePaymentMethod(_ context.Context, method domain.PaymentMethod) (*domain.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(method.Name) == "" {
		return nil, store.ErrInvalidSale
	}
	switch method.Type {
	case domain.PaymentTypeCash, domain.PaymentTypePix, domain.PaymentTypeCredit, domain.PaymentTypeDebit, domain.PaymentTypeTransfer:
	default:
		return nil, fmt.Errorf("%w: unknown payment type %q", store.ErrInvalidSale, method.Type)
	}
	if method.ID == "" {
		method.ID = xid.New("pm")
	}
	if method.CreatedAt.IsZero() {
		method.CreatedAt = time.Now().UTC()
	}
	method.Active = true
	s.methodsByID[method.ID] = method
	created := method
	return &created, nil
}

func (s *Store) ListPaymentMethods(_ context.Context) ([]domain.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	methods := make([]domain.PaymentMethod, 0, len(s.methodsByID))
	for _, m := range s.methodsByID {
		methods = append(methods, m)
	}
	slices.SortFunc(methods, func(a, b domain.PaymentMethod) int {
		return cmpString(a.Name, b.Name)
	})
	return methods, nil
}

func (s *Store) GetPaymentMethodsByIDs(_ context.Context, ids []string) (map[string]domain.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.PaymentMethod, len(ids))
	for _, id := range ids {
		if m, ok := s.methodsByID[id]; ok {
			result[id] = m
		}
	}
	return result, nil
}

func (s *Store) CreateFeeSchedule(_ context.Context, schedule domain.CardFeeSchedule) (*domain.CardFeeSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(schedule.Name) == "" {
		return nil, store.ErrInvalidSale
	}
	if schedule.CreditFee < 0 || schedule.DebitFee < 0 || schedule.PixFee < 0 {
		return nil, store.ErrInvalidSale
	}
	for n, pct := range schedule.InstallmentFees {
		if n < 2 || n > domain.MaxInstallments || pct < 0 {
			return nil, fmt.Errorf("%w: installment fee for %dx out of range", store.ErrInvalidSale, n)
		}
	}
	if schedule.ID == "" {
		schedule.ID = xid.New("fee")
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}
	schedule.Active = false
	s.schedulesByID[schedule.ID] = cloneSchedule(schedule)
	created := cloneSchedule(schedule)
	return &created, nil
}

func (s *Store) ListFeeSchedules(_ context.Context) ([]domain.CardFeeSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedules := make([]domain.CardFeeSchedule, 0, len(s.schedulesByID))
	for _, sc := range s.schedulesByID {
		schedules = append(schedules, cloneSchedule(sc))
	}
	slices.SortFunc(schedules, func(a, b domain.CardFeeSchedule) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return schedules, nil
}

func (s *Store) GetActiveFeeSchedule(_ context.Context) (*domain.CardFeeSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sc := range s.schedulesByID {
		if sc.Active {
			active := cloneSchedule(sc)
			return &active, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ActivateFeeSchedule(_ context.Context, id string) (*domain.CardFeeSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, exists := s.schedulesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	for scheduleID, sc := range s.schedulesByID {
		if sc.Active && scheduleID != id {
			sc.Active = false
			s.schedulesByID[scheduleID] = sc
		}
	}
	target.Active = true
	s.schedulesByID[id] = target
	activated := cloneSchedule(target)
	return &activated, nil
}

// CreateSale persists one checkout. Every line is validated against live
// stock before anything mutates, so a failed attempt leaves no partial
// state behind.
func (s *Store) CreateSale(_ context.Context, record store.SaleRecord) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale := record.Sale
	if sale.IdempotencyKey != "" {
		if existingID, seen := s.saleIDByIdemKey[sale.IdempotencyKey]; seen {
			existing := s.salesByID[existingID]
			return &existing, nil
		}
	}
	if len(record.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", store.ErrInvalidSale)
	}
	if sale.TotalCents != sale.SubtotalCents-sale.DiscountAmountCents {
		return nil, fmt.Errorf("%w: totals do not reconcile", store.ErrInvalidSale)
	}

	paid := int64(0)
	for _, p := range record.Payments {
		paid += p.AmountCents
	}
	if diff := paid - sale.TotalCents; diff > 1 || diff < -1 {
		return nil, fmt.Errorf("%w: payments sum %d, total %d", store.ErrPaymentMismatch, paid, sale.TotalCents)
	}

	if sale.CustomerID != "" {
		if _, exists := s.customersByID[sale.CustomerID]; !exists {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
		}
	}

	// Validate phase: nothing below may mutate until every line clears.
	// Quantities are aggregated per product first, so a cart repeating the
	// same product across lines cannot pass line-by-line and oversell.
	needed := make(map[string]int, len(record.Items))
	for _, item := range record.Items {
		if item.Qty < 1 {
			return nil, fmt.Errorf("%w: qty must be positive", store.ErrInvalidSale)
		}
		needed[item.ProductID] += item.Qty
	}
	for productID, qty := range needed {
		product, exists := s.productsByID[productID]
		if !exists || !product.Active {
			return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, productID)
		}
		if product.Stock < qty {
			return nil, fmt.Errorf("%w: product %s has %d, need %d", store.ErrInsufficientStock, productID, product.Stock, qty)
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	// Apply phase.
	for _, item := range record.Items {
		product := s.productsByID[item.ProductID]
		previous := product.Stock
		product.Stock = previous - item.Qty
		s.productsByID[item.ProductID] = product

		s.movements = append(s.movements, domain.StockMovement{
			ID:               xid.New("mov"),
			ProductID:        item.ProductID,
			Type:             domain.MovementTypeSale,
			Qty:              item.Qty,
			PreviousStock:    previous,
			NewStock:         product.Stock,
			Reason:           "sale " + sale.Code,
			SaleID:           sale.ID,
			OperatorUsername: sale.OperatorUsername,
			CreatedAt:        sale.CreatedAt,
		})
	}

	items := make([]domain.SaleItem, len(record.Items))
	copy(items, record.Items)
	for i := range items {
		items[i].SaleID = sale.ID
	}
	payments := make([]domain.SalePayment, len(record.Payments))
	copy(payments, record.Payments)
	for i := range payments {
		payments[i].SaleID = sale.ID
	}

	s.salesByID[sale.ID] = sale
	if sale.IdempotencyKey != "" {
		s.saleIDByIdemKey[sale.IdempotencyKey] = sale.ID
	}
	s.saleItemsByID[sale.ID] = items
	s.salePaymentsByID[sale.ID] = payments

	entry := record.FinancialEntry
	if entry.ID == "" {
		entry.ID = xid.New("fin")
	}
	entry.Type = domain.FinancialTypeIncome
	entry.Status = domain.FinancialStatusPaid
	entry.SaleID = sale.ID
	entry.AmountCents = sale.TotalCents
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = sale.CreatedAt
	}
	s.financialEntries = append(s.financialEntries, entry)

	if sale.CustomerID != "" {
		customer := s.customersByID[sale.CustomerID]
		customer.TotalPurchasesCents += sale.TotalCents
		customer.PurchaseCount++
		purchasedAt := sale.CreatedAt
		customer.LastPurchaseAt = &purchasedAt
		s.customersByID[sale.CustomerID] = customer
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, []domain.SaleItem, []domain.SalePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saleWithDetails(id)
}

func (s *Store) GetSaleByIdempotencyKey(_ context.Context, key string) (*domain.Sale, []domain.SaleItem, []domain.SalePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.saleIDByIdemKey[key]
	if !exists {
		return nil, nil, nil, store.ErrNotFound
	}
	return s.saleWithDetails(id)
}

// saleWithDetails expects the read lock to be held.
func (s *Store) saleWithDetails(id string) (*domain.Sale, []domain.SaleItem, []domain.SalePayment, error) {
	sale, exists := s.salesByID[id]
	if !exists {
		return nil, nil, nil, store.ErrNotFound
	}
	items := make([]domain.SaleItem, len(s.saleItemsByID[id]))
	copy(items, s.saleItemsByID[id])
	payments := make([]domain.SalePayment, len(s.salePaymentsByID[id]))
	copy(payments, s.salePaymentsByID[id])
	copySale := sale
	return &copySale, items, payments, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		result = append(result, sale)
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateFinancialEntry(_ context.Context, entry domain.FinancialEntry) (*domain.FinancialEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Type != domain.FinancialTypeIncome && entry.Type != domain.FinancialTypeExpense {
		return nil, fmt.Errorf("%w: unknown entry type %q", store.ErrInvalidSale, entry.Type)
	}
	if entry.AmountCents < 1 || strings.TrimSpace(entry.Description) == "" {
		return nil, store.ErrInvalidSale
	}
	if entry.ID == "" {
		entry.ID = xid.New("fin")
	}
	if entry.Status == "" {
		entry.Status = domain.FinancialStatusPaid
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.financialEntries = append(s.financialEntries, entry)
	created := entry
	return &created, nil
}

func (s *Store) ListFinancialEntries(_ context.Context, from time.Time, to time.Time, entryType string, limit int) ([]domain.FinancialEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FinancialEntry, 0, 64)
	for _, entry := range s.financialEntries {
		if entryType != "" && entry.Type != entryType {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.FinancialEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidSale
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCustomers(_ context.Context, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (s *Store) GetDailyReport(_ context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailyReport{
		Date:      from.Format("2006-01-02"),
		ByPayment: make([]domain.DailyReportPayment, 0, 4),
	}
	byPayment := map[string]*domain.DailyReportPayment{}

	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}

		report.Sales++
		report.GrossSalesCents += sale.TotalCents
		report.DiscountCents += sale.DiscountAmountCents
		report.TotalCostCents += sale.TotalCostCents
		report.GrossProfitCents += sale.GrossProfitCents
		report.TotalFeesCents += sale.TotalFeesCents
		report.NetProfitCents += sale.NetProfitCents

		for _, p := range s.salePaymentsByID[sale.ID] {
			agg := byPayment[p.MethodType]
			if agg == nil {
				agg = &domain.DailyReportPayment{MethodType: p.MethodType}
				byPayment[p.MethodType] = agg
			}
			agg.Sales++
			agg.TotalCents += p.AmountCents
			agg.FeesCents += p.FeeCents
		}
	}

	for _, agg := range byPayment {
		report.ByPayment = append(report.ByPayment, *agg)
	}
	slices.SortFunc(report.ByPayment, func(a, b domain.DailyReportPayment) int {
		return cmpString(a.MethodType, b.MethodType)
	})

	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSale
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidSale
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "operator"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSchedule(src domain.CardFeeSchedule) domain.CardFeeSchedule {
	dup := src
	fees := make(map[int]float64, len(src.InstallmentFees))
	for k, v := range src.InstallmentFees {
		fees[k] = v
	}
	dup.InstallmentFees = fees
	return dup
}
