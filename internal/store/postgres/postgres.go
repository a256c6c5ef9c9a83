package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"lojapos/backend/internal/domain"
	"lojapos/backend/internal/store"
	"lojapos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, COALESCE(barcode,''), name, category, cost_price_cents, sale_price_cents,
			stock, min_stock, active, created_at
		FROM products
		WHERE ($1 = false OR active = true)
		ORDER BY category, name
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Name, &p.Category, &p.CostPriceCents, &p.SalePriceCents, &p.Stock, &p.MinStock, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product, movement domain.StockMovement) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.SalePriceCents < 1 {
		return nil, store.ErrInvalidSale
	}
	if product.CostPriceCents < 0 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidSale
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, sku, barcode, name, category, cost_price_cents, sale_price_cents,
			stock, min_stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
	`, product.ID, product.SKU, nullIfEmpty(product.Barcode), product.Name, product.Category,
		product.CostPriceCents, product.SalePriceCents, product.Stock, product.MinStock, product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku %s already registered", store.ErrInvalidSale, product.SKU)
		}
		return nil, err
	}

	if product.Stock > 0 {
		if movement.Reason == "" {
			movement.Reason = "initial stock"
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, type, qty, previous_stock, new_stock,
				reason, sale_id, operator_username, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,$8,$9)
		`, xid.New("mov"), product.ID, domain.MovementTypeEntry, product.Stock, 0, product.Stock,
			movement.Reason, movement.OperatorUsername, product.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "id", id)
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return s.getProduct(ctx, "sku", sku)
}

func (s *Store) getProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	if column != "id" && column != "sku" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var p domain.Product
	query := fmt.Sprintf(`
		SELECT id, sku, COALESCE(barcode,''), name, category, cost_price_cents, sale_price_cents,
			stock, min_stock, active, created_at
		FROM products
		WHERE %s = $1
	`, column)
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&p.ID, &p.SKU, &p.Barcode, &p.Name, &p.Category, &p.CostPriceCents, &p.SalePriceCents,
		&p.Stock, &p.MinStock, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.SalePriceCents < 1 || product.CostPriceCents < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidSale
	}

	var updated domain.Product
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, barcode = $4, cost_price_cents = $5, sale_price_cents = $6,
			min_stock = $7, active = $8, updated_at = now()
		WHERE id = $1
		RETURNING id, sku, COALESCE(barcode,''), name, category, cost_price_cents, sale_price_cents,
			stock, min_stock, active, created_at
	`, product.ID, product.Name, product.Category, nullIfEmpty(product.Barcode), product.CostPriceCents,
		product.SalePriceCents, product.MinStock, product.Active).Scan(
		&updated.ID, &updated.SKU, &updated.Barcode, &updated.Name, &updated.Category,
		&updated.CostPriceCents, &updated.SalePriceCents, &updated.Stock, &updated.MinStock,
		&updated.Active, &updated.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	updated.CreatedAt = updated.CreatedAt.UTC()
	return &updated, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, COALESCE(barcode,''), name, category, cost_price_cents, sale_price_cents,
			stock, min_stock, active, created_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Name, &p.Category, &p.CostPriceCents, &p.SalePriceCents, &p.Stock, &p.MinStock, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.LowStockProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, stock, min_stock
		FROM products
		WHERE active = true AND stock <= min_stock
		ORDER BY stock ASC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.LowStockProduct, 0, 16)
	for rows.Next() {
		var p domain.LowStockProduct
		if err := rows.Scan(&p.ProductID, &p.SKU, &p.Name, &p.Stock, &p.MinStock); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ApplyStockMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var previous int
	err = tx.QueryRowContext(ctx, `
		SELECT stock
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, movement.ProductID).Scan(&previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}

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

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock = $2, updated_at = now()
		WHERE id = $1
	`, movement.ProductID, next)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, type, qty, previous_stock, new_stock,
			reason, sale_id, operator_username, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,$8,$9)
	`, movement.ID, movement.ProductID, movement.Type, movement.Qty, movement.PreviousStock,
		movement.NewStock, movement.Reason, movement.OperatorUsername, movement.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	applied := movement
	return &applied, nil
}

func (s *Store) ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, type, qty, previous_stock, new_stock, reason,
			COALESCE(sale_id,''), operator_username, created_at
		FROM stock_movements
		WHERE ($1 = '' OR product_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, limit)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Qty, &m.PreviousStock, &m.NewStock, &m.Reason, &m.SaleID, &m.OperatorUsername, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) CreatePaymentMethod(ctx context.Context, method domain.PaymentMethod) (*domain.PaymentMethod, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_methods (id, name, type, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, method.ID, method.Name, method.Type, method.Active, method.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidSale
		}
		return nil, err
	}
	created := method
	return &created, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, active, created_at
		FROM payment_methods
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	methods := make([]domain.PaymentMethod, 0, 8)
	for rows.Next() {
		var m domain.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.Active, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return methods, nil
}

func (s *Store) GetPaymentMethodsByIDs(ctx context.Context, ids []string) (map[string]domain.PaymentMethod, error) {
	result := make(map[string]domain.PaymentMethod, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, active, created_at
		FROM payment_methods
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.Active, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		result[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateFeeSchedule(ctx context.Context, schedule domain.CardFeeSchedule) (*domain.CardFeeSchedule, error) {
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

	feesJSON, err := json.Marshal(schedule.InstallmentFees)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fee_schedules (id, name, credit_fee_percent, debit_fee_percent, pix_fee_percent,
			installment_fees, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, schedule.ID, schedule.Name, schedule.CreditFee, schedule.DebitFee, schedule.PixFee,
		feesJSON, schedule.Active, schedule.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := schedule
	return &created, nil
}

func (s *Store) ListFeeSchedules(ctx context.Context) ([]domain.CardFeeSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, credit_fee_percent, debit_fee_percent, pix_fee_percent,
			installment_fees, active, created_at
		FROM fee_schedules
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]domain.CardFeeSchedule, 0, 8)
	for rows.Next() {
		schedule, err := scanFeeSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (s *Store) GetActiveFeeSchedule(ctx context.Context) (*domain.CardFeeSchedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, credit_fee_percent, debit_fee_percent, pix_fee_percent,
			installment_fees, active, created_at
		FROM fee_schedules
		WHERE active = true
		LIMIT 1
	`)
	schedule, err := scanFeeSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &schedule, nil
}

func (s *Store) ActivateFeeSchedule(ctx context.Context, id string) (*domain.CardFeeSchedule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE fee_schedules
		SET active = false, updated_at = now()
		WHERE active = true AND id <> $1
	`, id)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE fee_schedules
		SET active = true, updated_at = now()
		WHERE id = $1
		RETURNING id, name, credit_fee_percent, debit_fee_percent, pix_fee_percent,
			installment_fees, active, created_at
	`, id)
	schedule, err := scanFeeSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// CreateSale persists one checkout atomically. Product rows are locked with
// FOR UPDATE, stock is re-checked under the lock and decremented in the same
// transaction, so two racing checkouts for the last unit cannot both win.
func (s *Store) CreateSale(ctx context.Context, record store.SaleRecord) (*domain.Sale, error) {
	sale := record.Sale
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

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	if sale.IdempotencyKey != "" {
		existing, _, _, err := s.GetSaleByIdempotencyKey(ctx, sale.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ids := uniqueProductIDs(record.Items)
	productRows, err := tx.QueryContext(ctx, `
		SELECT id, stock, active
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	type productState struct {
		stock  int
		active bool
	}
	locked := make(map[string]productState, len(ids))
	for productRows.Next() {
		var id string
		var state productState
		if err := productRows.Scan(&id, &state.stock, &state.active); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		locked[id] = state
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	// Authoritative re-check under the row locks.
	needed := make(map[string]int, len(ids))
	for _, item := range record.Items {
		if item.Qty < 1 {
			return nil, fmt.Errorf("%w: qty must be positive", store.ErrInvalidSale)
		}
		needed[item.ProductID] += item.Qty
	}
	for _, id := range ids {
		state, exists := locked[id]
		if !exists || !state.active {
			return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, id)
		}
		if state.stock < needed[id] {
			return nil, fmt.Errorf("%w: product %s has %d, need %d", store.ErrInsufficientStock, id, state.stock, needed[id])
		}
	}

	if sale.CustomerID != "" {
		var customerID string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM customers WHERE id = $1 FOR UPDATE
		`, sale.CustomerID).Scan(&customerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
			}
			return nil, err
		}
	}

	for _, item := range record.Items {
		state := locked[item.ProductID]
		previous := state.stock
		next := previous - item.Qty
		state.stock = next
		locked[item.ProductID] = state

		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = $2, updated_at = now()
			WHERE id = $1
		`, item.ProductID, next)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, type, qty, previous_stock, new_stock,
				reason, sale_id, operator_username, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, xid.New("mov"), item.ProductID, domain.MovementTypeSale, item.Qty, previous, next,
			"sale "+sale.Code, sale.ID, sale.OperatorUsername, sale.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, code, idempotency_key, customer_id, operator_username, status, subtotal_cents,
			discount_type, discount_value_cents, discount_percent, discount_amount_cents,
			total_cents, total_cost_cents, gross_profit_cents, total_fees_cents,
			net_profit_cents, notes, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, sale.ID, sale.Code, nullIfEmpty(sale.IdempotencyKey), nullIfEmpty(sale.CustomerID), sale.OperatorUsername, sale.Status,
		sale.SubtotalCents, nullIfEmpty(sale.DiscountType), sale.DiscountValueCents, sale.DiscountPercent,
		sale.DiscountAmountCents, sale.TotalCents, sale.TotalCostCents, sale.GrossProfitCents,
		sale.TotalFeesCents, sale.NetProfitCents, strings.TrimSpace(sale.Notes), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent retry with the same idempotency key lost the
			// insert race; hand back the sale that won.
			if sale.IdempotencyKey != "" && strings.Contains(uniqueConstraintName(err), "idempotency") {
				_ = tx.Rollback()
				existing, _, _, lookupErr := s.GetSaleByIdempotencyKey(ctx, sale.IdempotencyKey)
				if lookupErr == nil {
					return existing, nil
				}
			}
			return nil, fmt.Errorf("%w: sale code %s already used", store.ErrInvalidSale, sale.Code)
		}
		return nil, err
	}

	for _, item := range record.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, qty, unit_price_cents,
				unit_cost_cents, discount_cents, line_total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, sale.ID, item.ProductID, item.ProductName, item.Qty, item.UnitPriceCents,
			item.UnitCostCents, item.DiscountCents, item.LineTotalCents)
		if err != nil {
			return nil, err
		}
	}

	for _, payment := range record.Payments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_payments (sale_id, payment_method_id, method_type, amount_cents,
				installments, fee_cents, net_amount_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, payment.PaymentMethodID, payment.MethodType, payment.AmountCents,
			payment.Installments, payment.FeeCents, payment.NetAmountCents)
		if err != nil {
			return nil, err
		}
	}

	entry := record.FinancialEntry
	if entry.ID == "" {
		entry.ID = xid.New("fin")
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO financial_entries (id, type, status, description, amount_cents, sale_id, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, domain.FinancialTypeIncome, domain.FinancialStatusPaid, entry.Description,
		sale.TotalCents, sale.ID, entry.CreatedBy, sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	if sale.CustomerID != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE customers
			SET total_purchases_cents = total_purchases_cents + $2,
				purchase_count = purchase_count + 1,
				last_purchase_at = $3,
				updated_at = now()
			WHERE id = $1
		`, sale.CustomerID, sale.TotalCents, sale.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, []domain.SaleItem, []domain.SalePayment, error) {
	return s.getSaleWhere(ctx, "id = $1", id)
}

func (s *Store) GetSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, []domain.SaleItem, []domain.SalePayment, error) {
	return s.getSaleWhere(ctx, "idempotency_key = $1", key)
}

func (s *Store) getSaleWhere(ctx context.Context, predicate string, arg string) (*domain.Sale, []domain.SaleItem, []domain.SalePayment, error) {
	var sale domain.Sale
	var customerID sql.NullString
	var discountType sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, COALESCE(idempotency_key,''), customer_id, operator_username, status, subtotal_cents,
			discount_type, discount_value_cents, discount_percent, discount_amount_cents,
			total_cents, total_cost_cents, gross_profit_cents, total_fees_cents,
			net_profit_cents, COALESCE(notes,''), created_at
		FROM sales
		WHERE `+predicate+`
	`, arg).Scan(
		&sale.ID, &sale.Code, &sale.IdempotencyKey, &customerID, &sale.OperatorUsername, &sale.Status, &sale.SubtotalCents,
		&discountType, &sale.DiscountValueCents, &sale.DiscountPercent, &sale.DiscountAmountCents,
		&sale.TotalCents, &sale.TotalCostCents, &sale.GrossProfitCents, &sale.TotalFeesCents,
		&sale.NetProfitCents, &sale.Notes, &sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, store.ErrNotFound
		}
		return nil, nil, nil, err
	}
	if customerID.Valid {
		sale.CustomerID = customerID.String
	}
	if discountType.Valid {
		sale.DiscountType = discountType.String
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, qty, unit_price_cents, unit_cost_cents,
			discount_cents, line_total_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, sale.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	items := make([]domain.SaleItem, 0, 8)
	for itemRows.Next() {
		var item domain.SaleItem
		if err := itemRows.Scan(&item.SaleID, &item.ProductID, &item.ProductName, &item.Qty, &item.UnitPriceCents, &item.UnitCostCents, &item.DiscountCents, &item.LineTotalCents); err != nil {
			_ = itemRows.Close()
			return nil, nil, nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, nil, nil, err
	}
	_ = itemRows.Close()

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, payment_method_id, method_type, amount_cents, installments,
			fee_cents, net_amount_cents
		FROM sale_payments
		WHERE sale_id = $1
		ORDER BY id ASC
	`, sale.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	payments := make([]domain.SalePayment, 0, 4)
	for paymentRows.Next() {
		var payment domain.SalePayment
		if err := paymentRows.Scan(&payment.SaleID, &payment.PaymentMethodID, &payment.MethodType, &payment.AmountCents, &payment.Installments, &payment.FeeCents, &payment.NetAmountCents); err != nil {
			_ = paymentRows.Close()
			return nil, nil, nil, err
		}
		payments = append(payments, payment)
	}
	if err := paymentRows.Err(); err != nil {
		_ = paymentRows.Close()
		return nil, nil, nil, err
	}
	_ = paymentRows.Close()

	return &sale, items, payments, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, customer_id, operator_username, status, subtotal_cents,
			discount_type, discount_value_cents, discount_percent, discount_amount_cents,
			total_cents, total_cost_cents, gross_profit_cents, total_fees_cents,
			net_profit_cents, COALESCE(notes,''), created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		var customerID sql.NullString
		var discountType sql.NullString
		if err := rows.Scan(
			&sale.ID, &sale.Code, &customerID, &sale.OperatorUsername, &sale.Status, &sale.SubtotalCents,
			&discountType, &sale.DiscountValueCents, &sale.DiscountPercent, &sale.DiscountAmountCents,
			&sale.TotalCents, &sale.TotalCostCents, &sale.GrossProfitCents, &sale.TotalFeesCents,
			&sale.NetProfitCents, &sale.Notes, &sale.CreatedAt,
		); err != nil {
			return nil, err
		}
		if customerID.Valid {
			sale.CustomerID = customerID.String
		}
		if discountType.Valid {
			sale.DiscountType = discountType.String
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) CreateFinancialEntry(ctx context.Context, entry domain.FinancialEntry) (*domain.FinancialEntry, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO financial_entries (id, type, status, description, amount_cents, sale_id, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Type, entry.Status, entry.Description, entry.AmountCents,
		nullIfEmpty(entry.SaleID), entry.CreatedBy, entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := entry
	return &created, nil
}

func (s *Store) ListFinancialEntries(ctx context.Context, from time.Time, to time.Time, entryType string, limit int) ([]domain.FinancialEntry, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, status, description, amount_cents, COALESCE(sale_id,''), created_by, created_at
		FROM financial_entries
		WHERE created_at >= $1 AND created_at < $2
			AND ($3 = '' OR type = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, from, to, entryType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.FinancialEntry, 0, limit)
	for rows.Next() {
		var entry domain.FinancialEntry
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Status, &entry.Description, &entry.AmountCents, &entry.SaleID, &entry.CreatedBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, total_purchases_cents, purchase_count, last_purchase_at, created_at, updated_at)
		VALUES ($1,$2,$3,0,0,NULL,$4,now())
	`, customer.ID, customer.Name, strings.TrimSpace(customer.Phone), customer.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	var lastPurchase sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone,''), total_purchases_cents, purchase_count, last_purchase_at, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.TotalPurchasesCents, &customer.PurchaseCount, &lastPurchase, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if lastPurchase.Valid {
		at := lastPurchase.Time.UTC()
		customer.LastPurchaseAt = &at
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone,''), total_purchases_cents, purchase_count, last_purchase_at, created_at
		FROM customers
		ORDER BY name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var customer domain.Customer
		var lastPurchase sql.NullTime
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.TotalPurchasesCents, &customer.PurchaseCount, &lastPurchase, &customer.CreatedAt); err != nil {
			return nil, err
		}
		if lastPurchase.Valid {
			at := lastPurchase.Time.UTC()
			customer.LastPurchaseAt = &at
		}
		customer.CreatedAt = customer.CreatedAt.UTC()
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	report := domain.DailyReport{
		Date:      from.Format("2006-01-02"),
		ByPayment: make([]domain.DailyReportPayment, 0, 4),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)::bigint,
			COALESCE(SUM(total_cents),0)::bigint,
			COALESCE(SUM(discount_amount_cents),0)::bigint,
			COALESCE(SUM(total_cost_cents),0)::bigint,
			COALESCE(SUM(gross_profit_cents),0)::bigint,
			COALESCE(SUM(total_fees_cents),0)::bigint,
			COALESCE(SUM(net_profit_cents),0)::bigint
		FROM sales
		WHERE created_at >= $1
			AND created_at < $2
			AND status = $3
	`, from, to, domain.SaleStatusCompleted).Scan(
		&report.Sales,
		&report.GrossSalesCents,
		&report.DiscountCents,
		&report.TotalCostCents,
		&report.GrossProfitCents,
		&report.TotalFeesCents,
		&report.NetProfitCents,
	)
	if err != nil {
		return report, err
	}

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT sp.method_type, COUNT(*)::bigint, COALESCE(SUM(sp.amount_cents),0)::bigint,
			COALESCE(SUM(sp.fee_cents),0)::bigint
		FROM sale_payments sp
		JOIN sales s ON s.id = sp.sale_id
		WHERE s.created_at >= $1
			AND s.created_at < $2
			AND s.status = $3
		GROUP BY sp.method_type
		ORDER BY sp.method_type
	`, from, to, domain.SaleStatusCompleted)
	if err != nil {
		return report, err
	}
	for paymentRows.Next() {
		var row domain.DailyReportPayment
		if err := paymentRows.Scan(&row.MethodType, &row.Sales, &row.TotalCents, &row.FeesCents); err != nil {
			_ = paymentRows.Close()
			return report, err
		}
		report.ByPayment = append(report.ByPayment, row)
	}
	if err := paymentRows.Err(); err != nil {
		_ = paymentRows.Close()
		return report, err
	}
	_ = paymentRows.Close()

	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSale
	}
	if user.Role == "" {
		user.Role = "operator"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidSale
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeeSchedule(row rowScanner) (domain.CardFeeSchedule, error) {
	var schedule domain.CardFeeSchedule
	var feesJSON []byte
	err := row.Scan(&schedule.ID, &schedule.Name, &schedule.CreditFee, &schedule.DebitFee,
		&schedule.PixFee, &feesJSON, &schedule.Active, &schedule.CreatedAt)
	if err != nil {
		return schedule, err
	}
	schedule.InstallmentFees = map[int]float64{}
	if len(feesJSON) > 0 {
		if err := json.Unmarshal(feesJSON, &schedule.InstallmentFees); err != nil {
			return schedule, err
		}
	}
	schedule.CreatedAt = schedule.CreatedAt.UTC()
	return schedule, nil
}

func uniqueProductIDs(items []domain.SaleItem) []string {
	set := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		if _, ok := set[item.ProductID]; ok {
			continue
		}
		set[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func uniqueConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
